package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/metrics"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/registry"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/statelogger"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/config"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/scenario"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario against fresh in-memory racks",
		Long: `Run a scenario against fresh in-memory racks.

Every step is run even when an earlier one fails. The command fails when
any step does not meet its expectations.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, rootOpts, args[0])
		},
	}
}

func runScenario(cmd *cobra.Command, opts *RootOptions, path string) error {
	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(ctx, opts.Config)
	if err != nil {
		return f.Error(ExitCommandError, ErrCodeConfig, err)
	}
	logger, err := cfg.Logger(f.GetErrWriter(), opts.Verbose)
	if err != nil {
		return f.Error(ExitCommandError, ErrCodeConfig, err)
	}

	sc, err := scenario.Load(ctx, path)
	if err != nil {
		return f.Error(ExitCommandError, ErrCodeScenario, err)
	}

	regOpts := []registry.Option{
		registry.WithLockTimeout(cfg.Lock.Timeout),
		registry.WithIDType(cfg.IDType),
		registry.WithLogger(logger),
	}
	var promReg *prometheus.Registry
	if cfg.Metrics {
		promReg = prometheus.NewRegistry()
		regOpts = append(regOpts, registry.WithPlugins(metrics.NewPlugin(promReg)))
	}
	if cfg.StateLog {
		regOpts = append(regOpts, registry.WithPlugins(statelogger.NewPlugin(statelogger.WithLogger(logger))))
	}

	reg, err := registry.NewRegistry(regOpts...)
	if err != nil {
		return f.Error(ExitCommandError, ErrCodeConfig, err)
	}
	defer func() {
		if err := reg.Shutdown(ctx); err != nil {
			logger.WarnContext(ctx, "shutdown failed", slog.Any("error", err))
		}
	}()

	runner := scenario.NewRunner(reg,
		scenario.WithIDGenerator(reg.IDGenerator()),
		scenario.WithLogger(logger),
	)
	report, err := runner.Run(ctx, sc)
	if err != nil {
		return f.Error(ExitCommandError, ErrCodeRun, err)
	}

	if promReg != nil && opts.Verbose {
		if err := dumpMetrics(f, promReg); err != nil {
			logger.WarnContext(ctx, "writing metrics failed", slog.Any("error", err))
		}
	}

	if err := writeReport(f, report); err != nil {
		return err
	}
	if !report.Passed {
		return NewExitError(ExitFailure, fmt.Sprintf("%d step(s) failed", len(report.Failed())))
	}
	return nil
}

func writeReport(f *OutputFormatter, report *scenario.Report) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: report}
		if !report.Passed {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeFailed,
				Message: fmt.Sprintf("%d step(s) failed", len(report.Failed())),
			}
		}
		return f.JSON(resp)
	}

	for _, res := range report.Results {
		if res.Passed {
			fmt.Fprintf(f.Writer, "✓ step %d %s %s\n", res.Step, res.Op, res.Rack)
			if f.Verbose && res.Output != nil {
				fmt.Fprintf(f.Writer, "    %v\n", res.Output)
			}
			continue
		}
		fmt.Fprintf(f.Writer, "✗ step %d %s %s: %s\n", res.Step, res.Op, res.Rack, res.Reason)
	}
	if report.Passed {
		fmt.Fprintf(f.Writer, "✓ Scenario %s passed\n", report.Scenario)
	} else {
		fmt.Fprintf(f.Writer, "✗ Scenario %s failed\n", report.Scenario)
	}
	return nil
}

func dumpMetrics(f *OutputFormatter, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f.GetErrWriter(), mf); err != nil {
			return err
		}
	}
	return nil
}
