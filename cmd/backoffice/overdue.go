package main

import (
	"io"

	appinvoicing "github.com/erp/backoffice/internal/application/invoicing"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newOverdueCmd(opts *rootOptions) *cobra.Command {
	var agency, actor string

	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "Mark sent invoices past their due date as overdue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			agencyID, err := parseAgency(agency)
			if err != nil {
				return err
			}
			userID, err := parseID("actor", actor)
			if err != nil {
				return err
			}
			ctx, log := opts.commandContext(cmd, agencyID)
			ctx, log = logger.WithActor(ctx, log, userID.String())

			svc, err := opts.openServices(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(ctx); err != nil {
					log.Warn("Shutdown incomplete", zap.Error(err))
				}
			}()

			result, err := svc.orchestrator.SweepOverdue(ctx, shared.Actor{AgencyID: agencyID, UserID: userID})
			if err != nil {
				return err
			}
			log.Info("Overdue sweep finished",
				zap.Int("checked", result.Checked),
				zap.Int("marked", len(result.Marked)),
			)
			return renderOverdue(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&agency, "agency", "", "agency ID (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "user ID recorded as the author of the change (required)")
	_ = cmd.MarkFlagRequired("agency")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func renderOverdue(w io.Writer, result *appinvoicing.SweepResult) error {
	r := newReport(w)
	r.line("Invoices checked: %d, marked overdue: %d", result.Checked, len(result.Marked))
	if len(result.Marked) == 0 {
		return r.flush()
	}
	r.row()
	r.row("INVOICE", "DUE", "GROSS", "REMAINING")
	for _, inv := range result.Marked {
		r.row(inv.SequenceNumber, inv.DueDate.Format(dateLayout), r.money(inv.AmountGross), r.money(inv.AmountRemaining))
	}
	return r.flush()
}
