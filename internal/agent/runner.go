package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Runner drives one agent's cycle loop.
//
// Cycles are paced by a token bucket holding a single token that refills
// every Interval, so the first cycle starts immediately and later ones start
// no sooner than Interval after the previous start. Waiting for the pacer is
// the only point at which the loop observes cancellation; a cycle that has
// started always runs to completion.
type Runner struct {
	agent    Agent
	pacer    *rate.Limiter
	logger   *zap.Logger
	recorder Recorder

	cycles   atomic.Uint64
	failures atomic.Uint64
}

// NewRunner creates a Runner for a. recorder may be nil.
func NewRunner(a Agent, logger *zap.Logger, recorder Recorder) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	limit := rate.Inf
	if a.Interval() > 0 {
		limit = rate.Every(a.Interval())
	}
	return &Runner{
		agent:    a,
		pacer:    rate.NewLimiter(limit, 1),
		logger:   logger.With(zap.String("agent", a.Name()), zap.String("role", string(a.Role()))),
		recorder: recorder,
	}
}

// Agent returns the driven agent.
func (r *Runner) Agent() Agent { return r.agent }

// Cycles returns the number of completed cycles, including failed ones.
func (r *Runner) Cycles() uint64 { return r.cycles.Load() }

// Failures returns the number of cycles aborted by an error or panic.
func (r *Runner) Failures() uint64 { return r.failures.Load() }

// ErrPastDeadline is returned by Step when the agent's next slot falls after
// the context deadline, so no further cycle can start before ctx ends.
var ErrPastDeadline = errors.New("next cycle would start after the deadline")

// Step waits for the agent's next slot and runs one cycle. It returns a
// non-nil error only when no cycle can start: ctx.Err() once ctx is done, or
// ErrPastDeadline while ctx is still live. Errors from the cycle itself are
// logged and swallowed.
func (r *Runner) Step(ctx context.Context) error {
	if err := r.pacer.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			return ErrPastDeadline
		}
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.act(ctx); err != nil {
		r.failures.Add(1)
		r.recorder.RecordFailure(r.agent.Name())
		r.logger.Error("agent cycle failed", zap.Error(err))
	}
	r.cycles.Add(1)
	r.recorder.RecordCycle(r.agent.Name())
	return nil
}

// Run loops Step until ctx is done and returns ctx.Err(). An agent whose
// next slot misses the deadline stays idle until then.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Debug("agent started")
	err := r.Step(ctx)
	for err == nil {
		err = r.Step(ctx)
	}
	if errors.Is(err, ErrPastDeadline) {
		<-ctx.Done()
		err = ctx.Err()
	}
	r.logger.Debug("agent stopped", zap.Uint64("cycles", r.Cycles()), zap.Error(err))
	return err
}

// act runs one cycle, converting a panic into an error.
func (r *Runner) act(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("agent panicked: %v", p)
		}
	}()
	return r.agent.Act(ctx)
}
