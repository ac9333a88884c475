package invoicing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/erp/backoffice/internal/application/view"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// CodeBalanceDrift marks a cached balance that disagreed with its fold
	CodeBalanceDrift = "BALANCE_DRIFT"
	// CodeInvoiceInconsistent marks an invoice whose payment state contradicts itself
	CodeInvoiceInconsistent = "INVOICE_INCONSISTENT"

	defaultReconcileParallelism = 4
)

// Drift is one party whose cached balance was overwritten
type Drift struct {
	Party    shared.PartyRef
	Name     string
	Cached   view.BalanceView
	Computed view.BalanceView
}

// Violation returns the drift as an InvariantViolation error
func (d Drift) Violation() *shared.DomainError {
	return shared.NewDomainError(shared.KindInvariantViolation, CodeBalanceDrift, fmt.Sprintf(
		"%s %q cached debt %s credit %s, computed debt %s credit %s",
		d.Party, d.Name, d.Cached.Debt, d.Cached.Credit, d.Computed.Debt, d.Computed.Credit))
}

// InvoiceIssue is one invoice whose stored state contradicts itself
type InvoiceIssue struct {
	InvoiceID      uuid.UUID
	SequenceNumber string
	Problems       []string
}

// Violation returns the issue as an InvariantViolation error
func (i InvoiceIssue) Violation() *shared.DomainError {
	return shared.NewDomainError(shared.KindInvariantViolation, CodeInvoiceInconsistent,
		fmt.Sprintf("invoice %s: %s", i.SequenceNumber, strings.Join(i.Problems, "; ")))
}

// ReconcileReport lists what a reconcile run found and repaired
type ReconcileReport struct {
	AgencyID      uuid.UUID
	CheckedAt     time.Time
	Parties       int
	Balances      map[shared.PartyRef]view.BalanceView
	Drifts        []Drift
	InvoiceIssues []InvoiceIssue
}

// Clean reports whether nothing disagreed
func (r *ReconcileReport) Clean() bool {
	return len(r.Drifts) == 0 && len(r.InvoiceIssues) == 0
}

// Violations returns every finding as an InvariantViolation error
func (r *ReconcileReport) Violations() []error {
	errs := make([]error, 0, len(r.Drifts)+len(r.InvoiceIssues))
	for _, d := range r.Drifts {
		errs = append(errs, d.Violation())
	}
	for _, i := range r.InvoiceIssues {
		errs = append(errs, i.Violation())
	}
	return errs
}

// ReconcileOption configures a ReconcileService
type ReconcileOption func(*ReconcileService)

// WithReconcileLogger sets the logger
func WithReconcileLogger(logger *zap.Logger) ReconcileOption {
	return func(s *ReconcileService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithParallelism bounds how many parties ReconcileAgency repairs at once
func WithParallelism(n int) ReconcileOption {
	return func(s *ReconcileService) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithReconcileClock sets the time source
func WithReconcileClock(now func() time.Time) ReconcileOption {
	return func(s *ReconcileService) {
		if now != nil {
			s.now = now
		}
	}
}

// ReconcileService recomputes cached party balances from invoices and the
// ledger and overwrites the cache. Running it twice in a row is a no-op the
// second time. Findings are reported, never returned as errors.
type ReconcileService struct {
	scope       TransactionScope
	projectors  projectors
	views       *view.Builder
	logger      *zap.Logger
	parallelism int
	now         func() time.Time
}

// NewReconcileService creates a ReconcileService
func NewReconcileService(scope TransactionScope, opts ...ReconcileOption) *ReconcileService {
	s := &ReconcileService{
		scope:       scope,
		projectors:  newProjectors(),
		views:       view.NewBuilder(),
		logger:      zap.NewNop(),
		parallelism: defaultReconcileParallelism,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcileClient repairs one client's cached balance
func (s *ReconcileService) ReconcileClient(ctx context.Context, agencyID, clientID uuid.UUID) (*ReconcileReport, error) {
	return s.reconcileOne(ctx, agencyID, shared.ClientParty(clientID))
}

// ReconcileSupplier repairs one supplier's cached debt and credit
func (s *ReconcileService) ReconcileSupplier(ctx context.Context, agencyID, supplierID uuid.UUID) (*ReconcileReport, error) {
	return s.reconcileOne(ctx, agencyID, shared.SupplierParty(supplierID))
}

func (s *ReconcileService) reconcileOne(ctx context.Context, agencyID uuid.UUID, party shared.PartyRef) (*ReconcileReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconcile", "party")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, agencyID.String(),
		telemetry.SpanAttrPartyKind, string(party.Kind),
		telemetry.SpanAttrPartyID, party.ID.String(),
	)

	report := s.newReport(agencyID)
	if err := s.repairParty(ctx, report, &sync.Mutex{}, agencyID, party); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return report, nil
}

// ReconcileAgency repairs every client and supplier of the agency and checks
// each invoice's internal consistency
func (s *ReconcileService) ReconcileAgency(ctx context.Context, agencyID uuid.UUID) (*ReconcileReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconcile", "agency")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrAgencyID, agencyID.String())

	var parties []shared.PartyRef
	report := s.newReport(agencyID)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		clientIDs, err := repos.Clients().ListIDs(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("list clients: %w", err)
		}
		supplierIDs, err := repos.Suppliers().ListIDs(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("list suppliers: %w", err)
		}
		for _, id := range clientIDs {
			parties = append(parties, shared.ClientParty(id))
		}
		for _, id := range supplierIDs {
			parties = append(parties, shared.SupplierParty(id))
		}

		invoices, err := repos.Invoices().FindAllByTenant(ctx, agencyID)
		if err != nil {
			return fmt.Errorf("list invoices: %w", err)
		}
		for i := range invoices {
			if problems := invoices[i].Violations(); len(problems) > 0 {
				report.InvoiceIssues = append(report.InvoiceIssues, InvoiceIssue{
					InvoiceID:      invoices[i].ID,
					SequenceNumber: invoices[i].SequenceNumber,
					Problems:       problems,
				})
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, party := range parties {
		party := party
		g.Go(func() error {
			return s.repairParty(gctx, report, &mu, agencyID, party)
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	sort.Slice(report.Drifts, func(i, j int) bool {
		return report.Drifts[i].Party.String() < report.Drifts[j].Party.String()
	})
	for _, issue := range report.InvoiceIssues {
		s.logger.Warn("Invoice inconsistency",
			zap.String("agency_id", agencyID.String()),
			zap.String("invoice", issue.SequenceNumber),
			zap.Strings("problems", issue.Problems),
		)
	}
	telemetry.SetAttributes(span,
		"parties", report.Parties,
		"drifts", len(report.Drifts),
		"invoice_issues", len(report.InvoiceIssues),
	)
	telemetry.SetOK(span)
	return report, nil
}

func (s *ReconcileService) newReport(agencyID uuid.UUID) *ReconcileReport {
	return &ReconcileReport{
		AgencyID:  agencyID,
		CheckedAt: s.now(),
		Balances:  make(map[shared.PartyRef]view.BalanceView),
	}
}

// repairParty refreshes one party in its own transaction and records the outcome
func (s *ReconcileService) repairParty(ctx context.Context, report *ReconcileReport, mu *sync.Mutex, agencyID uuid.UUID, party shared.PartyRef) error {
	var projection *Projection
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		projection, err = s.projectors.refresh(ctx, repos, agencyID, party, s.now())
		return err
	})
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", party, err)
	}

	mu.Lock()
	defer mu.Unlock()
	report.Parties++
	report.Balances[party] = s.views.Balance(projection.After)
	if !projection.Changed {
		return nil
	}
	drift := Drift{
		Party:    party,
		Name:     projection.Name,
		Cached:   s.views.Balance(projection.Before),
		Computed: s.views.Balance(projection.After),
	}
	report.Drifts = append(report.Drifts, drift)
	s.logger.Warn("Balance drift repaired",
		zap.String("agency_id", agencyID.String()),
		zap.String("party", party.String()),
		zap.String("name", projection.Name),
		zap.String("cached_debt", drift.Cached.Debt),
		zap.String("computed_debt", drift.Computed.Debt),
		zap.String("cached_credit", drift.Cached.Credit),
		zap.String("computed_credit", drift.Computed.Credit),
		zap.Error(drift.Violation()),
	)
	return nil
}
