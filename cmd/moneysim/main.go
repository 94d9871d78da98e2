package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jmerrifield20/moneysim/internal/agent"
	"github.com/jmerrifield20/moneysim/internal/journal"
	"github.com/jmerrifield20/moneysim/internal/ledger"
	"github.com/jmerrifield20/moneysim/internal/metrics"
	"github.com/jmerrifield20/moneysim/internal/simulation"
	"github.com/jmerrifield20/moneysim/internal/statusapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		var uerr usageErr
		if !errors.As(err, &uerr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "moneysim <duration-seconds> <single|multi>",
		Short: "Simulate agents trading through a shared ledger",
		Long: `moneysim runs a family of agents that pay wages, bills and groceries
through a shared ledger for the given number of seconds.

In single mode every agent is stepped in turn from one goroutine; in multi
mode each agent runs in its own goroutine. SIGINT and SIGTERM end the run
early. On completion the total operation count and the cash remaining in
circulation are printed to stdout.`,
		Version:       version,
		Args:          validateArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd.Context(), v, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default configs/moneysim.yaml when present)")
	flags.Int64("initial-cash", int64(simulation.DefaultInitialCash), "money in circulation at start")
	flags.Bool("journal", true, "keep an audit journal and verify it at the end of the run")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("status-addr", "", "serve the status API on this address (disabled when empty)")

	_ = v.BindPFlag("simulation.initial_cash", flags.Lookup("initial-cash"))
	_ = v.BindPFlag("simulation.journal", flags.Lookup("journal"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("status.addr", flags.Lookup("status-addr"))

	// Errors from argument validation are usage errors: print them with the
	// usage text on stderr.
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError(c, err)
	})
	return cmd
}

func validateArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return usageError(cmd, fmt.Errorf("expected 2 arguments, got %d", len(args)))
	}
	if _, err := parseDuration(args[0]); err != nil {
		return usageError(cmd, err)
	}
	if _, err := simulation.ParseMode(args[1]); err != nil {
		return usageError(cmd, err)
	}
	return nil
}

// usageErr marks an error that has already been reported with the usage line.
type usageErr struct{ error }

func (e usageErr) Unwrap() error { return e.error }

func usageError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	fmt.Fprintf(cmd.ErrOrStderr(), "Usage: %s\n", cmd.UseLine())
	cmd.SilenceUsage = true
	return usageErr{err}
}

func parseDuration(s string) (time.Duration, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("duration must be a positive number of seconds, got %q", s)
	}
	return time.Duration(n) * time.Second, nil
}

func loadConfig(v *viper.Viper, cfgFile string) error {
	v.SetDefault("simulation.initial_cash", int64(simulation.DefaultInitialCash))
	v.SetDefault("simulation.journal", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("status.addr", "")
	v.SetDefault("status.rate_limit_rps", 20)
	v.SetDefault("status.cors_origins", []string{})
	for _, r := range agent.Roles {
		v.SetDefault("agents."+string(r)+".interval", agent.DefaultIntervals[r].String())
	}

	v.SetEnvPrefix("moneysim")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("moneysim")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), lvl)
	return zap.New(core), nil
}

func simulationConfig(v *viper.Viper, duration time.Duration, mode simulation.Mode) (simulation.Config, error) {
	cfg := simulation.Config{
		InitialCash: ledger.Money(v.GetInt64("simulation.initial_cash")),
		Duration:    duration,
		Mode:        mode,
		Journal:     v.GetBool("simulation.journal"),
		Intervals:   make(map[agent.Role]time.Duration, len(agent.Roles)),
	}
	for _, r := range agent.Roles {
		key := "agents." + string(r) + ".interval"
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil || d < 0 {
			return simulation.Config{}, fmt.Errorf("%s: invalid interval %q", key, v.GetString(key))
		}
		cfg.Intervals[r] = d
	}
	return cfg, nil
}

func run(ctx context.Context, v *viper.Viper, args []string, stdout, stderr io.Writer) error {
	duration, _ := parseDuration(args[0])
	mode, _ := simulation.ParseMode(args[1])

	logger, err := newLogger(v.GetString("log.level"), stderr)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := simulationConfig(v, duration, mode)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	sim, err := simulation.New(cfg, m, logger)
	if err != nil {
		return err
	}

	// ── Status API ───────────────────────────────────────────────────────────
	if addr := v.GetString("status.addr"); addr != "" {
		deps := statusapi.Deps{Ledger: sim.Ledger(), Gatherer: reg, Logger: logger}
		if j := sim.Journal(); j != nil {
			deps.Journal = journal.Reader(j)
		}
		srv := statusapi.New(statusapi.Config{
			Addr:         addr,
			RateLimitRPS: v.GetInt("status.rate_limit_rps"),
			CORSOrigins:  v.GetStringSlice("status.cors_origins"),
		}, deps)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start status API: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("status API shutdown error", zap.Error(err))
			}
		}()
	}

	// ── Run ──────────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := sim.Run(ctx)
	if report.Interrupted {
		logger.Info("simulation interrupted", zap.Duration("elapsed", report.Elapsed))
	}

	fmt.Fprintf(stdout, "Total operations: %d\n", report.Operations)
	fmt.Fprintf(stdout, "Total cash in bank: %d\n", report.Cash)

	if report.AuditErr != nil {
		return fmt.Errorf("journal audit: %w", report.AuditErr)
	}
	return nil
}
