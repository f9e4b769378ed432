// Package storage keeps an audit trail of CSV exports in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tracker/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrExportNotFound is returned by GetExport for unknown IDs.
	ErrExportNotFound = errors.New("export not found")
	// ErrExportExists is returned by RecordExport when the ID is already stored.
	ErrExportExists = errors.New("export already recorded")
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Audit database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RecordExport stores one export audit entry.
func (r *SQLiteRepository) RecordExport(ctx context.Context, rec core.ExportRecord) error {
	sheets, err := json.Marshal(nonNil(rec.Sheets))
	if err != nil {
		return fmt.Errorf("encode sheets: %w", err)
	}
	params := CreateExportParams{
		ID:          rec.ID,
		CreatedAt:   rec.CreatedAt.UTC(),
		Location:    rec.Location,
		Sheets:      string(sheets),
		RowCount:    int64(rec.Rows),
		ColumnCount: int64(rec.Columns),
		ClientIp:    rec.ClientIP,
	}
	if params.StatusFilter, err = encodeFilter(rec.Status); err != nil {
		return err
	}
	if params.HealthFilter, err = encodeFilter(rec.Health); err != nil {
		return err
	}
	if params.ManagerFilter, err = encodeFilter(rec.Manager); err != nil {
		return err
	}

	if err := r.queries.CreateExport(ctx, params); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrExportExists, rec.ID)
		}
		return fmt.Errorf("create export: %w", err)
	}
	slog.DebugContext(ctx, "Export recorded", "export_id", rec.ID, "rows", rec.Rows)
	return nil
}

// ListExports returns the most recent exports, newest first.
func (r *SQLiteRepository) ListExports(ctx context.Context, limit int) ([]core.ExportRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.queries.ListRecentExports(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	out := make([]core.ExportRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetExport looks up one export by ID.
func (r *SQLiteRepository) GetExport(ctx context.Context, id string) (core.ExportRecord, error) {
	row, err := r.queries.GetExport(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExportRecord{}, fmt.Errorf("%w: %s", ErrExportNotFound, id)
	}
	if err != nil {
		return core.ExportRecord{}, fmt.Errorf("get export %s: %w", id, err)
	}
	return toRecord(row)
}

// CountExports returns the number of recorded exports.
func (r *SQLiteRepository) CountExports(ctx context.Context) (int64, error) {
	n, err := r.queries.CountExports(ctx)
	if err != nil {
		return 0, fmt.Errorf("count exports: %w", err)
	}
	return n, nil
}

func toRecord(row Export) (core.ExportRecord, error) {
	rec := core.ExportRecord{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
		Location:  row.Location,
		Rows:      int(row.RowCount),
		Columns:   int(row.ColumnCount),
		ClientIP:  row.ClientIp,
	}
	if err := json.Unmarshal([]byte(row.Sheets), &rec.Sheets); err != nil {
		return rec, fmt.Errorf("decode sheets of export %s: %w", row.ID, err)
	}
	var err error
	if rec.Status, err = decodeFilter(row.StatusFilter); err != nil {
		return rec, err
	}
	if rec.Health, err = decodeFilter(row.HealthFilter); err != nil {
		return rec, err
	}
	if rec.Manager, err = decodeFilter(row.ManagerFilter); err != nil {
		return rec, err
	}
	return rec, nil
}

// encodeFilter keeps the nil/empty distinction: NULL means the default
// selection, "[]" an explicit empty one.
func encodeFilter(values []string) (sql.NullString, error) {
	if values == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode filter: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeFilter(ns sql.NullString) ([]string, error) {
	if !ns.Valid {
		return nil, nil
	}
	out := []string{}
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
