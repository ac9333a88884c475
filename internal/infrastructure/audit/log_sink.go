// Package audit delivers orchestrator before/after snapshots to the log
// without holding up the operation that produced them.
package audit

import (
	"context"

	appinvoicing "github.com/erp/backoffice/internal/application/invoicing"
	"github.com/erp/backoffice/internal/application/view"
	"go.uber.org/zap"
)

// LogSink writes every entry as one structured log line
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink writing to logger under the "audit" name
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("audit")}
}

// Record implements appinvoicing.AuditCollaborator
func (s *LogSink) Record(_ context.Context, entry appinvoicing.AuditEntry) {
	fields := []zap.Field{
		zap.String("action", entry.Action),
		zap.String("agency_id", entry.AgencyID.String()),
		zap.String("actor_id", entry.ActorID.String()),
		zap.String("invoice_id", entry.InvoiceID.String()),
		zap.Time("at", entry.At),
	}
	fields = append(fields, snapshot("before", entry.Before)...)
	fields = append(fields, snapshot("after", entry.After)...)
	s.logger.Info("Invoice changed", fields...)
}

func snapshot(prefix string, inv *view.InvoiceView) []zap.Field {
	if inv == nil {
		return nil
	}
	return []zap.Field{
		zap.String(prefix+"_status", inv.Status),
		zap.String(prefix+"_paid", inv.AmountPaid),
		zap.String(prefix+"_remaining", inv.AmountRemaining),
		zap.Int(prefix+"_version", inv.Version),
	}
}

var _ appinvoicing.AuditCollaborator = (*LogSink)(nil)
