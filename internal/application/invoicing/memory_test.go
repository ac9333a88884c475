package invoicing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/erp/backoffice/internal/domain/invoicing"
	"github.com/erp/backoffice/internal/domain/ledger"
	"github.com/erp/backoffice/internal/domain/partner"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// =============================================================================
// In-memory transactional store
// =============================================================================

// memStore is one consistent snapshot of every table
type memStore struct {
	invoices  []invoicing.Invoice
	ops       []ledger.Operation
	clients   []partner.Client
	suppliers []partner.Supplier
}

func newMemStore() *memStore {
	return &memStore{}
}

func cloneInvoice(inv invoicing.Invoice) invoicing.Invoice {
	inv.LineItems = append(invoicing.LineItems{}, inv.LineItems...)
	inv.Payments = append(invoicing.Payments{}, inv.Payments...)
	inv.Adjustments = append(invoicing.Adjustments{}, inv.Adjustments...)
	return inv
}

func (s *memStore) clone() *memStore {
	c := &memStore{
		invoices:  make([]invoicing.Invoice, len(s.invoices)),
		ops:       append([]ledger.Operation{}, s.ops...),
		clients:   append([]partner.Client{}, s.clients...),
		suppliers: append([]partner.Supplier{}, s.suppliers...),
	}
	for i := range s.invoices {
		c.invoices[i] = cloneInvoice(s.invoices[i])
	}
	return c
}

// memScope commits a transaction by swapping in its working copy. Executions
// are serialized, like rows locked for the duration of a transaction.
type memScope struct {
	mu         sync.Mutex
	store      *memStore
	executions int
	// saveConflicts makes the next N invoice saves fail with a version conflict
	saveConflicts int
	// counters live outside transactions, like a sequence that never rolls back
	counters map[string]int64
}

func newMemScope() *memScope {
	return &memScope{store: newMemStore(), counters: make(map[string]int64)}
}

func (s *memScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions++
	working := s.store.clone()
	if err := fn(&memRepos{scope: s, store: working}); err != nil {
		return err
	}
	s.store = working
	return nil
}

// snapshot returns a copy of the committed state
func (s *memScope) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.clone()
}

// mutate changes committed state directly, bypassing the orchestrator
func (s *memScope) mutate(fn func(store *memStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.store)
}

type memRepos struct {
	scope *memScope
	store *memStore
}

func (r *memRepos) Invoices() invoicing.InvoiceRepository { return memInvoices{r} }
func (r *memRepos) Operations() ledger.OperationRepository { return memOperations{r} }
func (r *memRepos) Clients() partner.ClientRepository { return memClients{r} }
func (r *memRepos) Suppliers() partner.SupplierRepository { return memSuppliers{r} }
func (r *memRepos) Sequences() invoicing.SequenceAllocator { return memSequences{r} }

// -----------------------------------------------------------------------------
// invoices
// -----------------------------------------------------------------------------

type memInvoices struct{ *memRepos }

func (m memInvoices) index(tenantID, id uuid.UUID) int {
	for i := range m.store.invoices {
		if m.store.invoices[i].ID == id && m.store.invoices[i].TenantID == tenantID {
			return i
		}
	}
	return -1
}

func (m memInvoices) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	i := m.index(tenantID, id)
	if i < 0 {
		return nil, shared.NewNotFoundError("invoice", id)
	}
	inv := cloneInvoice(m.store.invoices[i])
	return &inv, nil
}

func (m memInvoices) FindByParty(_ context.Context, tenantID uuid.UUID, party shared.PartyRef) ([]invoicing.Invoice, error) {
	var result []invoicing.Invoice
	for i := range m.store.invoices {
		inv := m.store.invoices[i]
		if inv.TenantID == tenantID && inv.Owner() == party {
			result = append(result, cloneInvoice(inv))
		}
	}
	return result, nil
}

func (m memInvoices) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	var matched []invoicing.Invoice
	for i := range m.store.invoices {
		inv := m.store.invoices[i]
		if inv.TenantID != tenantID {
			continue
		}
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		if filter.Party != nil && inv.Owner() != *filter.Party {
			continue
		}
		if filter.From != nil && inv.IssueDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && inv.IssueDate.After(*filter.To) {
			continue
		}
		matched = append(matched, cloneInvoice(inv))
	}
	total := int64(len(matched))
	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit()
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m memInvoices) FindByStatusDueBefore(_ context.Context, tenantID uuid.UUID, statuses []invoicing.Status, before time.Time) ([]invoicing.Invoice, error) {
	var result []invoicing.Invoice
	for i := range m.store.invoices {
		inv := m.store.invoices[i]
		if inv.TenantID != tenantID || !inv.DueDate.Before(before) {
			continue
		}
		for _, s := range statuses {
			if inv.Status == s {
				result = append(result, cloneInvoice(inv))
				break
			}
		}
	}
	return result, nil
}

func (m memInvoices) FindAllByTenant(_ context.Context, tenantID uuid.UUID) ([]invoicing.Invoice, error) {
	var result []invoicing.Invoice
	for i := range m.store.invoices {
		if m.store.invoices[i].TenantID == tenantID {
			result = append(result, cloneInvoice(m.store.invoices[i]))
		}
	}
	return result, nil
}

func (m memInvoices) SequenceNumbersForYear(_ context.Context, tenantID uuid.UUID, year int) ([]string, error) {
	var result []string
	marker := fmt.Sprintf("-%d-", year)
	for i := range m.store.invoices {
		inv := m.store.invoices[i]
		if inv.TenantID == tenantID && strings.Contains(inv.SequenceNumber, marker) {
			result = append(result, inv.SequenceNumber)
		}
	}
	return result, nil
}

func (m memInvoices) Create(_ context.Context, inv *invoicing.Invoice) error {
	for i := range m.store.invoices {
		existing := m.store.invoices[i]
		if existing.TenantID == inv.TenantID && existing.SequenceNumber == inv.SequenceNumber {
			return invoicing.NewDuplicateSequenceError(inv.SequenceNumber)
		}
	}
	m.store.invoices = append(m.store.invoices, cloneInvoice(*inv))
	return nil
}

func (m memInvoices) SaveWithLock(_ context.Context, inv *invoicing.Invoice) error {
	if m.scope.saveConflicts > 0 {
		m.scope.saveConflicts--
		return shared.NewConcurrencyError("OPTIMISTIC_LOCK_ERROR", "invoice %s was modified concurrently", inv.ID)
	}
	i := m.index(inv.TenantID, inv.ID)
	if i < 0 {
		return shared.NewNotFoundError("invoice", inv.ID)
	}
	if m.store.invoices[i].Version != inv.Version-1 {
		return shared.NewConcurrencyError("OPTIMISTIC_LOCK_ERROR", "invoice %s was modified concurrently", inv.ID)
	}
	m.store.invoices[i] = cloneInvoice(*inv)
	return nil
}

func (m memInvoices) Delete(_ context.Context, inv *invoicing.Invoice) error {
	i := m.index(inv.TenantID, inv.ID)
	if i < 0 || m.store.invoices[i].Version != inv.Version {
		return shared.NewConcurrencyError("OPTIMISTIC_LOCK_ERROR", "invoice %s was modified concurrently", inv.ID)
	}
	m.store.invoices = append(m.store.invoices[:i], m.store.invoices[i+1:]...)
	return nil
}

// -----------------------------------------------------------------------------
// operations
// -----------------------------------------------------------------------------

type memOperations struct{ *memRepos }

func (m memOperations) selectOps(match func(op *ledger.Operation) bool) []ledger.Operation {
	var result []ledger.Operation
	for i := range m.store.ops {
		if match(&m.store.ops[i]) {
			result = append(result, m.store.ops[i])
		}
	}
	return result
}

func (m memOperations) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*ledger.Operation, error) {
	for i := range m.store.ops {
		if m.store.ops[i].ID == id && m.store.ops[i].TenantID == tenantID {
			op := m.store.ops[i]
			return &op, nil
		}
	}
	return nil, shared.NewNotFoundError("operation", id)
}

func (m memOperations) FindByInvoice(_ context.Context, tenantID, invoiceID uuid.UUID) ([]ledger.Operation, error) {
	return m.selectOps(func(op *ledger.Operation) bool {
		return op.TenantID == tenantID && op.IsLinkedTo(invoiceID)
	}), nil
}

func (m memOperations) FindByParty(_ context.Context, tenantID uuid.UUID, party shared.PartyRef) ([]ledger.Operation, error) {
	return m.selectOps(func(op *ledger.Operation) bool {
		p, ok := op.Party()
		return op.TenantID == tenantID && ok && p == party
	}), nil
}

func (m memOperations) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter ledger.OperationFilter) ([]ledger.Operation, int64, error) {
	ops := m.selectOps(func(op *ledger.Operation) bool {
		return op.TenantID == tenantID && (filter.InvoiceID == nil || op.IsLinkedTo(*filter.InvoiceID))
	})
	return ops, int64(len(ops)), nil
}

func (m memOperations) FindUntil(_ context.Context, tenantID uuid.UUID, asOf time.Time) ([]ledger.Operation, error) {
	return m.selectOps(func(op *ledger.Operation) bool {
		return op.TenantID == tenantID && !op.Date.After(asOf)
	}), nil
}

func (m memOperations) Create(_ context.Context, op *ledger.Operation) error {
	m.store.ops = append(m.store.ops, *op)
	return nil
}

func (m memOperations) SaveWithLock(_ context.Context, op *ledger.Operation) error {
	for i := range m.store.ops {
		if m.store.ops[i].ID == op.ID {
			if m.store.ops[i].Version != op.Version-1 {
				return shared.NewConcurrencyError("OPTIMISTIC_LOCK_ERROR", "operation %s was modified concurrently", op.ID)
			}
			m.store.ops[i] = *op
			return nil
		}
	}
	return shared.NewNotFoundError("operation", op.ID)
}

func (m memOperations) DeleteByIDs(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) error {
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.store.ops[:0]
	for _, op := range m.store.ops {
		if op.TenantID == tenantID && drop[op.ID] {
			continue
		}
		kept = append(kept, op)
	}
	m.store.ops = kept
	return nil
}

// -----------------------------------------------------------------------------
// parties
// -----------------------------------------------------------------------------

type memClients struct{ *memRepos }

func (m memClients) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*partner.Client, error) {
	for i := range m.store.clients {
		if m.store.clients[i].ID == id && m.store.clients[i].TenantID == tenantID {
			c := m.store.clients[i]
			return &c, nil
		}
	}
	return nil, shared.NewNotFoundError("client", id)
}

func (m memClients) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*partner.Client, error) {
	return m.FindByIDForTenant(ctx, tenantID, id)
}

func (m memClients) ListIDs(_ context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, c := range m.store.clients {
		if c.TenantID == tenantID {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (m memClients) Create(_ context.Context, client *partner.Client) error {
	m.store.clients = append(m.store.clients, *client)
	return nil
}

func (m memClients) SaveWithLock(_ context.Context, client *partner.Client) error {
	for i := range m.store.clients {
		if m.store.clients[i].ID == client.ID {
			if m.store.clients[i].Version != client.Version-1 {
				return shared.NewConcurrencyError("OPTIMISTIC_LOCK_ERROR", "client %s was modified concurrently", client.ID)
			}
			m.store.clients[i] = *client
			return nil
		}
	}
	return shared.NewNotFoundError("client", client.ID)
}

type memSuppliers struct{ *memRepos }

func (m memSuppliers) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*partner.Supplier, error) {
	for i := range m.store.suppliers {
		if m.store.suppliers[i].ID == id && m.store.suppliers[i].TenantID == tenantID {
			s := m.store.suppliers[i]
			return &s, nil
		}
	}
	return nil, shared.NewNotFoundError("supplier", id)
}

func (m memSuppliers) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*partner.Supplier, error) {
	return m.FindByIDForTenant(ctx, tenantID, id)
}

func (m memSuppliers) ListIDs(_ context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, s := range m.store.suppliers {
		if s.TenantID == tenantID {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (m memSuppliers) Create(_ context.Context, supplier *partner.Supplier) error {
	m.store.suppliers = append(m.store.suppliers, *supplier)
	return nil
}

func (m memSuppliers) SaveWithLock(_ context.Context, supplier *partner.Supplier) error {
	for i := range m.store.suppliers {
		if m.store.suppliers[i].ID == supplier.ID {
			if m.store.suppliers[i].Version != supplier.Version-1 {
				return shared.NewConcurrencyError("OPTIMISTIC_LOCK_ERROR", "supplier %s was modified concurrently", supplier.ID)
			}
			m.store.suppliers[i] = *supplier
			return nil
		}
	}
	return shared.NewNotFoundError("supplier", supplier.ID)
}

// -----------------------------------------------------------------------------
// sequences
// -----------------------------------------------------------------------------

// memSequences is a bare counter that ignores numbers already issued, so
// tests can provoke duplicate sequence numbers
type memSequences struct{ *memRepos }

func (m memSequences) Next(_ context.Context, agencyID uuid.UUID, year int) (int64, error) {
	key := fmt.Sprintf("%s/%d", agencyID, year)
	m.scope.counters[key]++
	return m.scope.counters[key], nil
}
