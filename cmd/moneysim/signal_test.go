//go:build unix

package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestRootCmd_interruptPrintsReport(t *testing.T) {
	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGTERM} {
		t.Run(sig.String(), func(t *testing.T) {
			// Keeps the test process alive should the signal land before the
			// command has subscribed to it.
			guard := make(chan os.Signal, 1)
			signal.Notify(guard, sig)
			defer signal.Stop(guard)

			timer := time.AfterFunc(300*time.Millisecond, func() {
				_ = syscall.Kill(os.Getpid(), sig)
			})
			defer timer.Stop()

			start := time.Now()
			stdout, stderr, err := execute(t, "60", "multi")
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if elapsed := time.Since(start); elapsed > 30*time.Second {
				t.Fatalf("run took %s; the signal did not end it", elapsed)
			}

			lines := strings.Split(strings.TrimSpace(stdout), "\n")
			if len(lines) != 2 ||
				!strings.HasPrefix(lines[0], "Total operations: ") ||
				!strings.HasPrefix(lines[1], "Total cash in bank: ") {
				t.Errorf("unexpected report: %q", stdout)
			}
			if !strings.Contains(stderr, "simulation interrupted") {
				t.Error("interruption was not logged")
			}
		})
	}
}
