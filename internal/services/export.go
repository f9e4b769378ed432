package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tracker/internal/core"
	"tracker/internal/report"
)

// ErrAuditDisabled is returned when export history is requested without an audit store.
var ErrAuditDisabled = errors.New("export audit is disabled")

type AuditStore interface {
	RecordExport(ctx context.Context, rec core.ExportRecord) error
	ListExports(ctx context.Context, limit int) ([]core.ExportRecord, error)
}

type Publisher interface {
	PublishExportCompleted(ctx context.Context, rec core.ExportRecord) error
}

// ExportService writes filtered views as CSV and records each export.
// Audit and publish are best effort: their failures are logged only.
type ExportService struct {
	audit     AuditStore
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewExportService accepts nil audit and publisher.
func NewExportService(audit AuditStore, publisher Publisher, logger *slog.Logger) *ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{
		audit:     audit,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// AuditEnabled reports whether exports are persisted.
func (s *ExportService) AuditEnabled() bool {
	return s.audit != nil
}

// Export writes v.Filtered to w and returns the audit record.
func (s *ExportService) Export(ctx context.Context, w io.Writer, v *View, clientIP string) (core.ExportRecord, error) {
	if err := report.WriteCSV(w, v.Filtered); err != nil {
		return core.ExportRecord{}, fmt.Errorf("write csv: %w", err)
	}

	rec := core.ExportRecord{
		ID:        s.newID(),
		CreatedAt: s.now().UTC(),
		Location:  v.Location,
		Sheets:    v.Sheets,
		Status:    v.Query.Selection.Status,
		Health:    v.Query.Selection.Health,
		Manager:   v.Query.Selection.Manager,
		Rows:      v.Filtered.Len(),
		Columns:   len(v.Filtered.Columns),
		ClientIP:  clientIP,
	}

	if s.audit != nil {
		if err := s.audit.RecordExport(ctx, rec); err != nil {
			s.logger.ErrorContext(ctx, "Failed to record export", "export_id", rec.ID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishExportCompleted(ctx, rec); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish export event", "export_id", rec.ID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "Export completed",
		"export_id", rec.ID,
		"rows", rec.Rows,
		"columns", rec.Columns)
	return rec, nil
}

// Recent lists the latest recorded exports.
func (s *ExportService) Recent(ctx context.Context, limit int) ([]core.ExportRecord, error) {
	if s.audit == nil {
		return nil, ErrAuditDisabled
	}
	return s.audit.ListExports(ctx, limit)
}
