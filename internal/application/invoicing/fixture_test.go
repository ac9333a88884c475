package invoicing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/application/view"
	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/partner"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// recordingAudit keeps every entry it receives
type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *recordingAudit) Record(_ context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	actions := make([]string, len(a.entries))
	for i, e := range a.entries {
		actions[i] = e.Action
	}
	return actions
}

type fixture struct {
	ctx      context.Context
	scope    *memScope
	orch     *PaymentOrchestrator
	recon    *ReconcileService
	audit    *recordingAudit
	actor    shared.Actor
	client   uuid.UUID
	supplier uuid.UUID
	now      time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		scope: newMemScope(),
		audit: &recordingAudit{},
		actor: shared.Actor{AgencyID: uuid.New(), UserID: uuid.New()},
		now:   time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	base := []Option{WithAudit(f.audit), WithClock(clock)}
	f.orch = NewPaymentOrchestrator(f.scope, append(base, opts...)...)
	f.recon = NewReconcileService(f.scope, WithReconcileClock(clock))
	f.client = f.addClient(t, f.actor.AgencyID, "Voyages Martin")
	f.supplier = f.addSupplier(t, f.actor.AgencyID, "Hotel Atlas")
	return f
}

func (f *fixture) addClient(t *testing.T, agencyID uuid.UUID, name string) uuid.UUID {
	t.Helper()
	c, err := partner.NewClient(agencyID, name)
	require.NoError(t, err)
	f.scope.mutate(func(s *memStore) { s.clients = append(s.clients, *c) })
	return c.ID
}

func (f *fixture) addSupplier(t *testing.T, agencyID uuid.UUID, name string) uuid.UUID {
	t.Helper()
	s, err := partner.NewSupplier(agencyID, name)
	require.NoError(t, err)
	f.scope.mutate(func(st *memStore) { st.suppliers = append(st.suppliers, *s) })
	return s.ID
}

func contentFor(owner shared.PartyRef, issue time.Time, prices ...string) InvoiceContentRequest {
	clientID, supplierID := owner.IDs()
	req := InvoiceContentRequest{
		ClientID:   clientID,
		SupplierID: supplierID,
		VATRate:    decimal.Zero,
		IssueDate:  issue,
		DueDate:    issue.AddDate(0, 0, 30),
	}
	for _, p := range prices {
		req.Lines = append(req.Lines, LineItemInput{
			Description: "Package tour",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.RequireFromString(p),
		})
	}
	return req
}

// createInvoice creates a draft whose gross equals the sum of prices
func (f *fixture) createInvoice(t *testing.T, owner shared.PartyRef, prices ...string) *view.InvoiceView {
	t.Helper()
	inv, err := f.orch.CreateInvoice(f.ctx, f.actor, CreateInvoiceRequest{contentFor(owner, f.now, prices...)})
	require.NoError(t, err)
	return inv
}

func (f *fixture) sentClientInvoice(t *testing.T, amount string) *view.InvoiceView {
	t.Helper()
	inv := f.createInvoice(t, shared.ClientParty(f.client), amount)
	sent, err := f.orch.Send(f.ctx, f.actor, inv.ID)
	require.NoError(t, err)
	return sent
}

func (f *fixture) pay(t *testing.T, invoiceID uuid.UUID, amount, method string) *view.InvoiceView {
	t.Helper()
	inv, err := f.orch.RecordPayment(f.ctx, f.actor, invoiceID, RecordPaymentRequest{
		Amount: decimal.RequireFromString(amount),
		Method: method,
	})
	require.NoError(t, err)
	return inv
}

func (f *fixture) clientBalance(t *testing.T) *view.ClientBalanceView {
	t.Helper()
	b, err := f.orch.ClientBalance(f.ctx, f.actor.AgencyID, f.client)
	require.NoError(t, err)
	return b
}

func (f *fixture) supplierBalance(t *testing.T) *view.SupplierBalanceView {
	t.Helper()
	b, err := f.orch.SupplierBalance(f.ctx, f.actor.AgencyID, f.supplier)
	require.NoError(t, err)
	return b
}

// linkedOps returns the committed operations linked to an invoice
func (f *fixture) linkedOps(invoiceID uuid.UUID) []ledger.Operation {
	var ops []ledger.Operation
	for _, op := range f.scope.snapshot().ops {
		if op.IsLinkedTo(invoiceID) {
			ops = append(ops, op)
		}
	}
	return ops
}

func (f *fixture) allOps() []ledger.Operation {
	return f.scope.snapshot().ops
}

func (f *fixture) storedInvoice(t *testing.T, id uuid.UUID) invoicing.Invoice {
	t.Helper()
	for _, inv := range f.scope.snapshot().invoices {
		if inv.ID == id {
			return inv
		}
	}
	t.Fatalf("invoice %s not stored", id)
	return invoicing.Invoice{}
}
