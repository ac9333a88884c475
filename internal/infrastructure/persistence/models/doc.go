// Package models holds the GORM rows behind the invoicing, ledger and partner
// aggregates. Domain types never carry ORM tags; each model converts with
// ToDomain and FromDomain.
//
// Every table stores the owning agency in tenant_id. Invoices declare that
// column themselves so it can lead the unique (tenant_id, sequence_number) index.
package models
