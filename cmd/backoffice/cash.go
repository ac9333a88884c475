package main

import (
	"io"
	"time"

	"github.com/erp/backoffice/internal/application/view"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCashCmd(opts *rootOptions) *cobra.Command {
	var agency, asOf string

	cmd := &cobra.Command{
		Use:   "cash",
		Short: "Print the cash register position per payment method",
		RunE: func(cmd *cobra.Command, _ []string) error {
			agencyID, err := parseAgency(agency)
			if err != nil {
				return err
			}
			date, err := parseDate(asOf, time.Now())
			if err != nil {
				return err
			}
			ctx, log := opts.commandContext(cmd, agencyID)

			svc, err := opts.openServices(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(ctx); err != nil {
					log.Warn("Shutdown incomplete", zap.Error(err))
				}
			}()

			position, err := svc.ledger.CashPosition(ctx, agencyID, date)
			if err != nil {
				return err
			}
			return renderCash(cmd.OutOrStdout(), position)
		},
	}

	cmd.Flags().StringVar(&agency, "agency", "", "agency ID (required)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "include entries dated on or before this day, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("agency")
	return cmd
}

func renderCash(w io.Writer, pos *view.CashPositionView) error {
	r := newReport(w)
	r.line("Cash position as of %s", pos.AsOf.Format(dateLayout))
	r.row()
	r.row("METHOD", "NET")
	for _, method := range sortedKeys(pos.ByMethod) {
		r.row(r.label(method), r.money(pos.ByMethod[method]))
	}
	r.row()
	r.row("In", r.money(pos.In))
	r.row("Out", r.money(pos.Out))
	r.row("Net", r.money(pos.Net))
	return r.flush()
}
