package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dateLayout = "2006-01-02"

// report renders aligned tables with grouped amounts
type report struct {
	p     *message.Printer
	title cases.Caser
	tw    *tabwriter.Writer
}

func newReport(w io.Writer) *report {
	return &report{
		p:     message.NewPrinter(language.English),
		title: cases.Title(language.English),
		tw:    tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
	}
}

// money groups thousands and keeps two decimals. Unparseable input is returned as is.
func (r *report) money(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return r.p.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// label turns a snake_case code into a heading such as "Partially Paid"
func (r *report) label(code string) string {
	return r.title.String(strings.ReplaceAll(code, "_", " "))
}

func (r *report) row(cells ...string) {
	fmt.Fprintln(r.tw, strings.Join(cells, "\t"))
}

func (r *report) line(format string, args ...any) {
	_, _ = r.p.Fprintf(r.tw, format+"\n", args...)
}

func (r *report) flush() error {
	return r.tw.Flush()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseDate reads a YYYY-MM-DD flag as UTC midnight; empty means today
func parseDate(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", raw, err)
	}
	return t, nil
}
