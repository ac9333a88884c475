package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	appinvoicing "github.com/erp/backoffice/internal/application/invoicing"
	"github.com/erp/backoffice/internal/application/view"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/export"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type reconcileFlags struct {
	agency   string
	client   string
	supplier string
	xlsx     string
	strict   bool
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	flags := &reconcileFlags{}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute cached balances from the ledger and repair drift",
		Long: `Recompute every client and supplier balance of an agency from its
invoices and ledger operations, overwrite cached balances that drifted
and list invoices whose stored payment state contradicts itself.

Use --client or --supplier to check a single party.`,
		Example: `  backoffice reconcile --agency 6f1c...
  backoffice reconcile --agency 6f1c... --xlsx reconcile.xlsx --strict`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcile(cmd, opts, flags)
		},
	}

	cmd.Flags().StringVar(&flags.agency, "agency", "", "agency ID (required)")
	cmd.Flags().StringVar(&flags.client, "client", "", "only reconcile this client")
	cmd.Flags().StringVar(&flags.supplier, "supplier", "", "only reconcile this supplier")
	cmd.Flags().StringVar(&flags.xlsx, "xlsx", "", "also write the report to this spreadsheet file")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "exit with an error when anything drifted")
	cmd.MarkFlagsMutuallyExclusive("client", "supplier")
	_ = cmd.MarkFlagRequired("agency")
	return cmd
}

func runReconcile(cmd *cobra.Command, opts *rootOptions, flags *reconcileFlags) error {
	agencyID, err := parseAgency(flags.agency)
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

	var report *appinvoicing.ReconcileReport
	switch {
	case flags.client != "":
		id, err := parseID("client", flags.client)
		if err != nil {
			return err
		}
		report, err = svc.reconciler.ReconcileClient(ctx, agencyID, id)
		if err != nil {
			return err
		}
	case flags.supplier != "":
		id, err := parseID("supplier", flags.supplier)
		if err != nil {
			return err
		}
		report, err = svc.reconciler.ReconcileSupplier(ctx, agencyID, id)
		if err != nil {
			return err
		}
	default:
		report, err = svc.reconciler.ReconcileAgency(ctx, agencyID)
		if err != nil {
			return err
		}
	}

	log.Info("Reconcile finished",
		zap.Int("parties", report.Parties),
		zap.Int("drifts", len(report.Drifts)),
		zap.Int("invoice_issues", len(report.InvoiceIssues)),
	)

	if err := renderReconcile(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if flags.xlsx != "" {
		if err := writeReconcileFile(flags.xlsx, report); err != nil {
			return err
		}
		log.Info("Reconcile spreadsheet written", zap.String("path", flags.xlsx))
	}

	if flags.strict && !report.Clean() {
		return errors.Join(report.Violations()...)
	}
	return nil
}

func writeReconcileFile(path string, report *appinvoicing.ReconcileReport) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return export.WriteReconcileXLSX(f, report)
}

func renderReconcile(w io.Writer, rep *appinvoicing.ReconcileReport) error {
	r := newReport(w)

	r.line("Agency %s checked at %s", rep.AgencyID, rep.CheckedAt.UTC().Format("2006-01-02 15:04:05"))
	r.line("Parties checked: %d", rep.Parties)
	r.row()

	r.row("KIND", "PARTY", "DEBT", "CREDIT")
	for _, party := range sortedParties(rep.Balances) {
		b := rep.Balances[party]
		r.row(r.label(string(party.Kind)), party.ID.String(), r.money(b.Debt), r.money(b.Credit))
	}
	r.row()

	if rep.Clean() {
		r.row("No drift found.")
		return r.flush()
	}

	if len(rep.Drifts) > 0 {
		r.line("Repaired balances: %d", len(rep.Drifts))
		r.row("PARTY", "NAME", "CACHED DEBT", "CACHED CREDIT", "DEBT", "CREDIT")
		for _, d := range rep.Drifts {
			r.row(d.Party.String(), d.Name,
				r.money(d.Cached.Debt), r.money(d.Cached.Credit),
				r.money(d.Computed.Debt), r.money(d.Computed.Credit))
		}
		r.row()
	}

	if len(rep.InvoiceIssues) > 0 {
		r.line("Inconsistent invoices: %d", len(rep.InvoiceIssues))
		r.row("INVOICE", "PROBLEMS")
		for _, issue := range rep.InvoiceIssues {
			r.row(issue.SequenceNumber, strings.Join(issue.Problems, "; "))
		}
	}
	return r.flush()
}

func sortedParties(balances map[shared.PartyRef]view.BalanceView) []shared.PartyRef {
	parties := make([]shared.PartyRef, 0, len(balances))
	for p := range balances {
		parties = append(parties, p)
	}
	sort.Slice(parties, func(i, j int) bool {
		if parties[i].Kind != parties[j].Kind {
			return parties[i].Kind < parties[j].Kind
		}
		return parties[i].ID.String() < parties[j].ID.String()
	})
	return parties
}
