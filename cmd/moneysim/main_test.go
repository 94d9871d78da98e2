package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmerrifield20/moneysim/internal/agent"
	"github.com/jmerrifield20/moneysim/internal/simulation"
	"github.com/spf13/viper"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCmd_usageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"missing mode", []string{"1"}},
		{"too many arguments", []string{"1", "single", "extra"}},
		{"zero duration", []string{"0", "single"}},
		{"negative duration", []string{"--", "-3", "multi"}},
		{"non-numeric duration", []string{"soon", "multi"}},
		{"unknown mode", []string{"1", "threads"}},
		{"unknown flag", []string{"--turbo", "1", "single"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			var uerr usageErr
			if !errors.As(err, &uerr) {
				t.Errorf("expected a usage error, got %T: %v", err, err)
			}
			if !strings.Contains(stderr, "Usage:") {
				t.Errorf("usage missing from stderr: %q", stderr)
			}
			if stdout != "" {
				t.Errorf("nothing should be printed to stdout, got %q", stdout)
			}
		})
	}
}

func TestRootCmd_unknownModeWrapsErrInvalidMode(t *testing.T) {
	_, _, err := execute(t, "1", "both")
	if !errors.Is(err, simulation.ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
}

func TestRootCmd_runsAndReports(t *testing.T) {
	for _, mode := range []string{"single", "multi"} {
		t.Run(mode, func(t *testing.T) {
			stdout, _, err := execute(t, "1", mode, "--log-level", "error")
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			lines := strings.Split(strings.TrimSpace(stdout), "\n")
			if len(lines) != 2 {
				t.Fatalf("expected 2 report lines, got %q", stdout)
			}
			if !strings.HasPrefix(lines[0], "Total operations: ") {
				t.Errorf("first line = %q", lines[0])
			}
			if !strings.HasPrefix(lines[1], "Total cash in bank: ") {
				t.Errorf("second line = %q", lines[1])
			}
		})
	}
}

func TestRootCmd_runtimeErrorsAreNotUsageErrors(t *testing.T) {
	_, _, err := execute(t, "1", "single", "--log-level", "loud")
	if err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
	var uerr usageErr
	if errors.As(err, &uerr) {
		t.Errorf("runtime error reported as usage error: %v", err)
	}

	_, _, err = execute(t, "1", "single", "--log-level", "error", "--initial-cash", "-5")
	if err == nil {
		t.Fatal("expected an error for negative initial cash")
	}
}

func TestSimulationConfig_defaultsAndOverrides(t *testing.T) {
	v := viper.New()
	if err := loadConfig(v, ""); err != nil {
		t.Fatal(err)
	}

	cfg, err := simulationConfig(v, time.Second, simulation.ModeMulti)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InitialCash != simulation.DefaultInitialCash {
		t.Errorf("initial cash = %d, want %d", cfg.InitialCash, simulation.DefaultInitialCash)
	}
	if !cfg.Journal {
		t.Error("journal should default to enabled")
	}
	for _, r := range agent.Roles {
		if cfg.Intervals[r] != agent.DefaultIntervals[r] {
			t.Errorf("%s interval = %v, want %v", r, cfg.Intervals[r], agent.DefaultIntervals[r])
		}
	}

	v.Set("agents.merchant.interval", "2s")
	cfg, err = simulationConfig(v, time.Second, simulation.ModeMulti)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Intervals[agent.RoleMerchant] != 2*time.Second {
		t.Errorf("merchant interval = %v, want 2s", cfg.Intervals[agent.RoleMerchant])
	}

	v.Set("agents.employer.interval", "often")
	if _, err := simulationConfig(v, time.Second, simulation.ModeMulti); err == nil {
		t.Error("expected error for an unparsable interval")
	}
}

func TestLoadConfig_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	content := "simulation:\n  initial_cash: 2500\n  journal: false\nagents:\n  cash-spender:\n    interval: 50ms\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if err := loadConfig(v, path); err != nil {
		t.Fatal(err)
	}
	cfg, err := simulationConfig(v, time.Second, simulation.ModeSingle)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InitialCash != 2500 || cfg.Journal {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Intervals[agent.RoleCashSpender] != 50*time.Millisecond {
		t.Errorf("cash-spender interval = %v, want 50ms", cfg.Intervals[agent.RoleCashSpender])
	}

	if err := loadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}
