// Package export renders reconcile reports as spreadsheets for accountants.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	appinvoicing "github.com/erp/backoffice/internal/application/invoicing"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names of a reconcile workbook
const (
	SheetBalances = "Balances"
	SheetFindings = "Findings"
)

var (
	balanceHeaders = []any{"Kind", "Party", "Debt", "Credit"}
	findingHeaders = []any{"Type", "Code", "Subject", "Detail", "Cached debt", "Cached credit", "Computed debt", "Computed credit"}
)

// WriteReconcileXLSX writes the report as a workbook with a Balances sheet and a Findings sheet
func WriteReconcileXLSX(w io.Writer, report *appinvoicing.ReconcileReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// The default sheet becomes Balances so the workbook opens on it
	if err := f.SetSheetName("Sheet1", SheetBalances); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetFindings); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if err := writeBalances(f, report); err != nil {
		return err
	}
	if err := writeFindings(f, report); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeBalances(f *excelize.File, report *appinvoicing.ReconcileReport) error {
	if err := setRow(f, SheetBalances, 1, balanceHeaders); err != nil {
		return err
	}

	parties := make([]shared.PartyRef, 0, len(report.Balances))
	for p := range report.Balances {
		parties = append(parties, p)
	}
	sort.Slice(parties, func(i, j int) bool {
		if parties[i].Kind != parties[j].Kind {
			return parties[i].Kind < parties[j].Kind
		}
		return parties[i].ID.String() < parties[j].ID.String()
	})

	for i, p := range parties {
		b := report.Balances[p]
		row := []any{string(p.Kind), p.ID.String(), amount(b.Debt), amount(b.Credit)}
		if err := setRow(f, SheetBalances, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeFindings(f *excelize.File, report *appinvoicing.ReconcileReport) error {
	if err := setRow(f, SheetFindings, 1, findingHeaders); err != nil {
		return err
	}

	row := 2
	for _, d := range report.Drifts {
		values := []any{
			"drift", appinvoicing.CodeBalanceDrift, d.Party.String(), d.Name,
			amount(d.Cached.Debt), amount(d.Cached.Credit),
			amount(d.Computed.Debt), amount(d.Computed.Credit),
		}
		if err := setRow(f, SheetFindings, row, values); err != nil {
			return err
		}
		row++
	}
	for _, issue := range report.InvoiceIssues {
		values := []any{"invoice", appinvoicing.CodeInvoiceInconsistent, issue.SequenceNumber, strings.Join(issue.Problems, "; ")}
		if err := setRow(f, SheetFindings, row, values); err != nil {
			return err
		}
		row++
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// amount turns a rendered money string back into a number so spreadsheet sums work
func amount(s string) any {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.InexactFloat64()
}
