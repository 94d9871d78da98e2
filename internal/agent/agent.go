// Package agent implements the simulated actors that trade through the ledger.
//
// Every role runs a fixed script of unchecked ledger calls once per cycle.
// A declined step (insufficient funds or cash) is logged and skipped; any
// other error aborts the rest of the cycle and is returned from Act, where
// the Runner logs it and carries on with the next cycle.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/jmerrifield20/moneysim/internal/ledger"
	"go.uber.org/zap"
)

// Agent is a single simulated actor.
type Agent interface {
	// Name is the display name used in logs and metrics.
	Name() string

	// Role identifies the behaviour the agent implements.
	Role() Role

	// Account is the agent's own account.
	Account() ledger.AccountID

	// Interval is the pause between two cycles.
	Interval() time.Duration

	// Act runs one cycle of the agent's script.
	Act(ctx context.Context) error
}

// Bank is the subset of the ledger agents use.
// *ledger.Ledger satisfies this interface.
type Bank interface {
	OpenAccount() ledger.AccountID
	TryDeposit(id ledger.AccountID, amount ledger.Money) (bool, error)
	TryWithdraw(id ledger.AccountID, amount ledger.Money) (bool, error)
	TryTransfer(src, dst ledger.AccountID, amount ledger.Money) (bool, error)
}

// Recorder receives per-step and per-cycle outcomes.
// *metrics.Metrics satisfies this interface.
type Recorder interface {
	RecordStep(agent, step, outcome string)
	RecordCycle(agent string)
	RecordFailure(agent string)
}

// Step outcomes passed to Recorder.RecordStep.
const (
	OutcomeOK       = "ok"
	OutcomeDeclined = "declined"
	OutcomeError    = "error"
)

// Deps bundles what every agent needs.
type Deps struct {
	Bank     Bank
	Logger   *zap.Logger
	Recorder Recorder

	// Intervals overrides the default pause of individual roles.
	Intervals map[Role]time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	return d
}

type nopRecorder struct{}

func (nopRecorder) RecordStep(string, string, string) {}
func (nopRecorder) RecordCycle(string)                {}
func (nopRecorder) RecordFailure(string)              {}

// actor carries the state shared by every role. It never holds ledger state
// of its own; the account ID is only a handle.
type actor struct {
	name     string
	role     Role
	account  ledger.AccountID
	interval time.Duration
	bank     Bank
	logger   *zap.Logger
	recorder Recorder
}

// newActor opens the agent's account.
func newActor(deps Deps, role Role, name string) actor {
	deps = deps.withDefaults()
	interval, ok := deps.Intervals[role]
	if !ok {
		interval = DefaultIntervals[role]
	}
	return actor{
		name:     name,
		role:     role,
		account:  deps.Bank.OpenAccount(),
		interval: interval,
		bank:     deps.Bank,
		logger:   deps.Logger.With(zap.String("agent", name)),
		recorder: deps.Recorder,
	}
}

func (a *actor) Name() string              { return a.name }
func (a *actor) Role() Role                { return a.role }
func (a *actor) Account() ledger.AccountID { return a.account }
func (a *actor) Interval() time.Duration   { return a.interval }

// action is one scripted ledger call.
type action struct {
	step     string
	amount   ledger.Money
	peer     ledger.AccountID
	done     string
	declined string
	call     func() (bool, error)
}

func (a *actor) transfer(step string, to ledger.AccountID, amount ledger.Money, done, declined string) action {
	return action{
		step: step, amount: amount, peer: to, done: done, declined: declined,
		call: func() (bool, error) { return a.bank.TryTransfer(a.account, to, amount) },
	}
}

func (a *actor) deposit(step string, amount ledger.Money, done, declined string) action {
	return action{
		step: step, amount: amount, done: done, declined: declined,
		call: func() (bool, error) { return a.bank.TryDeposit(a.account, amount) },
	}
}

func (a *actor) withdraw(step string, amount ledger.Money, done, declined string) action {
	return action{
		step: step, amount: amount, done: done, declined: declined,
		call: func() (bool, error) { return a.bank.TryWithdraw(a.account, amount) },
	}
}

// run executes the script in order. It stops at the first hard error.
func (a *actor) run(script ...action) error {
	for _, s := range script {
		fields := []zap.Field{
			zap.String("step", s.step),
			zap.Int64("amount", int64(s.amount)),
		}
		if s.peer != 0 {
			fields = append(fields, zap.Uint64("peer", uint64(s.peer)))
		}

		ok, err := s.call()
		switch {
		case err != nil:
			a.recorder.RecordStep(a.name, s.step, OutcomeError)
			return fmt.Errorf("%s: %s: %w", a.name, s.step, err)
		case ok:
			a.recorder.RecordStep(a.name, s.step, OutcomeOK)
			a.logger.Debug(s.done, fields...)
		default:
			a.recorder.RecordStep(a.name, s.step, OutcomeDeclined)
			a.logger.Info(s.declined, fields...)
		}
	}
	return nil
}
