// Package simulation wires agents to a ledger and runs them.
//
// A Simulation owns the ledger for the whole run. It opens one account per
// agent plus a passive utility account, then drives the agents either
// cooperatively from a single goroutine or with one goroutine per agent.
// Both modes stop when the configured duration elapses or the caller's
// context is cancelled, and Run returns only after every agent has stopped.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/moneysim/internal/agent"
	"github.com/jmerrifield20/moneysim/internal/journal"
	"github.com/jmerrifield20/moneysim/internal/ledger"
	"github.com/jmerrifield20/moneysim/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Mode selects how agents are scheduled.
type Mode string

const (
	// ModeSingle steps every agent in turn from one goroutine.
	ModeSingle Mode = "single"
	// ModeMulti runs each agent in its own goroutine.
	ModeMulti Mode = "multi"
)

// ErrInvalidMode is returned by ParseMode for anything but single or multi.
var ErrInvalidMode = errors.New("invalid mode: use 'single' or 'multi'")

// ParseMode parses a mode selector.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case ModeSingle, ModeMulti:
		return m, nil
	default:
		return "", fmt.Errorf("%w (got %q)", ErrInvalidMode, s)
	}
}

// DefaultInitialCash is the money in circulation when the run starts.
const DefaultInitialCash ledger.Money = 10_000

// Config controls a single run.
type Config struct {
	InitialCash ledger.Money
	Duration    time.Duration
	Mode        Mode

	// Intervals overrides the default pause of individual roles.
	Intervals map[agent.Role]time.Duration

	// Journal enables the audit journal and the end-of-run audit.
	Journal bool
}

// Report is the outcome of a run.
type Report struct {
	RunID      string
	Mode       Mode
	Elapsed    time.Duration
	Operations uint64
	Cash       ledger.Money
	Cycles     map[string]uint64
	Failures   map[string]uint64

	// Interrupted is true when the caller's context ended the run before
	// the configured duration elapsed.
	Interrupted bool

	// AuditErr is the end-of-run journal audit result; nil when the audit
	// passed or the journal is disabled.
	AuditErr error
}

// Simulation is a ledger plus the agents trading through it.
type Simulation struct {
	id      uuid.UUID
	cfg     Config
	ledger  *ledger.Ledger
	journal *journal.Journal
	utility ledger.AccountID
	runners []*agent.Runner
	logger  *zap.Logger
}

// New builds the ledger, opens the accounts and constructs the agents.
// m may be nil.
func New(cfg Config, m *metrics.Metrics, logger *zap.Logger) (*Simulation, error) {
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", cfg.Duration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.New()
	s := &Simulation{
		id:     id,
		cfg:    cfg,
		logger: logger.With(zap.String("run_id", id.String())),
	}

	var observers []ledger.Observer
	if cfg.Journal {
		s.journal = journal.New(cfg.InitialCash)
		observers = append(observers, s.journal)
	}
	if m != nil {
		observers = append(observers, m)
	}

	l, err := ledger.New(cfg.InitialCash, ledger.WithObserver(observers...))
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	s.ledger = l

	deps := agent.Deps{Bank: l, Logger: s.logger, Intervals: cfg.Intervals}
	if m != nil {
		deps.Recorder = m
	}

	// Construction order follows the payment graph: every agent needs the
	// accounts of the peers it pays.
	s.utility = l.OpenAccount()
	merchant := agent.NewMerchant(deps, s.utility)
	household := agent.NewHouseholdSpender(deps, merchant.Account())
	kids := agent.NewCashSpender(deps, merchant.Account())
	earner := agent.NewSalaryPayer(deps, household.Account(), s.utility, kids.Account())
	employer := agent.NewEmployer(deps, earner.Account())

	// Stepping order in single mode.
	for _, a := range []agent.Agent{earner, household, kids, merchant, employer} {
		s.runners = append(s.runners, agent.NewRunner(a, s.logger, deps.Recorder))
	}
	return s, nil
}

// ID returns the run identifier attached to every log line.
func (s *Simulation) ID() string { return s.id.String() }

// Ledger returns the simulation's ledger.
func (s *Simulation) Ledger() *ledger.Ledger { return s.ledger }

// Journal returns the audit journal, or nil when it is disabled.
func (s *Simulation) Journal() *journal.Journal { return s.journal }

// UtilityAccount returns the passive account the utility bills are paid to.
func (s *Simulation) UtilityAccount() ledger.AccountID { return s.utility }

// Agents returns the agents in stepping order.
func (s *Simulation) Agents() []agent.Agent {
	out := make([]agent.Agent, len(s.runners))
	for i, r := range s.runners {
		out[i] = r.Agent()
	}
	return out
}

// Run drives the agents until the configured duration elapses or ctx is
// cancelled, waits for all of them to stop, and reports the final state.
func (s *Simulation) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancel()

	s.logger.Info("simulation starting",
		zap.String("mode", string(s.cfg.Mode)),
		zap.Duration("duration", s.cfg.Duration),
		zap.Int64("initial_cash", int64(s.cfg.InitialCash)),
		zap.Int("agents", len(s.runners)),
	)

	start := time.Now()
	var stop error
	switch s.cfg.Mode {
	case ModeSingle:
		stop = s.runCooperative(ctx)
	case ModeMulti:
		stop = s.runConcurrent(ctx)
	}

	// Every agent has stopped: each figure is read exactly once.
	report := Report{
		RunID:       s.ID(),
		Mode:        s.cfg.Mode,
		Elapsed:     time.Since(start),
		Operations:  s.ledger.OperationCount(),
		Cash:        s.ledger.Cash(),
		Cycles:      make(map[string]uint64, len(s.runners)),
		Failures:    make(map[string]uint64, len(s.runners)),
		Interrupted: errors.Is(stop, context.Canceled),
	}
	for _, r := range s.runners {
		report.Cycles[r.Agent().Name()] = r.Cycles()
		report.Failures[r.Agent().Name()] = r.Failures()
	}

	if s.journal != nil {
		auditCtx, cancelAudit := context.WithTimeout(context.Background(), 30*time.Second)
		report.AuditErr = s.journal.Audit(auditCtx, s.ledger.Snapshot())
		if report.AuditErr != nil {
			s.logger.Error("journal audit FAILED", zap.Error(report.AuditErr))
		} else {
			n, _ := s.journal.Len(auditCtx)
			root, _ := s.journal.Root(auditCtx)
			s.logger.Info("journal audit passed", zap.Int("entries", n), zap.String("root", root))
		}
		cancelAudit()
	}

	s.logger.Info("simulation finished",
		zap.Duration("elapsed", report.Elapsed),
		zap.Uint64("operations", report.Operations),
		zap.Int64("cash", int64(report.Cash)),
		zap.Bool("interrupted", report.Interrupted),
	)
	return report
}

// runCooperative steps every agent once per round from the calling
// goroutine. An agent whose next slot misses the deadline drops out of the
// rounds; the rest keep going. It returns the error that ended ctx.
func (s *Simulation) runCooperative(ctx context.Context) error {
	active := append([]*agent.Runner(nil), s.runners...)
	for len(active) > 0 {
		next := active[:0]
		for _, r := range active {
			err := r.Step(ctx)
			switch {
			case err == nil:
				next = append(next, r)
			case errors.Is(err, agent.ErrPastDeadline):
				// idle until ctx ends
			default:
				return err
			}
		}
		active = next
	}
	<-ctx.Done()
	return ctx.Err()
}

// runConcurrent runs one goroutine per agent and joins them once ctx ends.
// It returns the error that ended the first runner to stop.
func (s *Simulation) runConcurrent(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range s.runners {
		g.Go(func() error { return r.Run(gctx) })
	}
	return g.Wait()
}
