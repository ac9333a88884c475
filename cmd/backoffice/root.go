package main

import (
	"context"
	"fmt"

	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

// rootOptions carries what every subcommand shares once the root pre-run has loaded it
type rootOptions struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	log    *zap.Logger
	tracer *telemetry.TracerProvider
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "backoffice",
		Short: "Invoice and cash ledger back office for travel agencies",
		Long: `backoffice operates the invoice and cash ledger of a travel agency.

It applies schema migrations, recomputes cached client and supplier
balances from the ledger, marks overdue invoices and reports the cash
register position.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.shutdown(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./config.toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newReconcileCmd(opts),
		newOverdueCmd(opts),
		newCashCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load(ctx context.Context) error {
	cfg, err := config.LoadFrom(o.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	o.cfg = cfg

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	o.log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, o.log)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	o.tracer = tracer
	return nil
}

func (o *rootOptions) shutdown(ctx context.Context) error {
	if o.tracer != nil {
		if err := o.tracer.Shutdown(context.WithoutCancel(ctx)); err != nil {
			o.log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	if o.log != nil {
		_ = o.log.Sync()
	}
	return nil
}

// commandContext tags the context and logger with the running command and agency
func (o *rootOptions) commandContext(cmd *cobra.Command, agencyID uuid.UUID) (context.Context, *zap.Logger) {
	ctx, log := logger.WithCommand(cmd.Context(), o.log, cmd.CommandPath())
	if agencyID != uuid.Nil {
		ctx, log = logger.WithAgency(ctx, log, agencyID.String())
	}
	return ctx, log
}

func parseAgency(raw string) (uuid.UUID, error) {
	return parseID("agency", raw)
}

func parseID(flag, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", flag)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --%s %q: %w", flag, raw, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("--%s must not be the nil UUID", flag)
	}
	return id, nil
}
