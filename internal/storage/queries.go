package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type Export struct {
	ID            string
	CreatedAt     time.Time
	Location      string
	Sheets        string
	StatusFilter  sql.NullString
	HealthFilter  sql.NullString
	ManagerFilter sql.NullString
	RowCount      int64
	ColumnCount   int64
	ClientIp      string
}

const createExport = `-- name: CreateExport :exec
INSERT INTO exports (
    id, created_at, location, sheets, status_filter, health_filter, manager_filter, row_count, column_count, client_ip
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateExportParams struct {
	ID            string
	CreatedAt     time.Time
	Location      string
	Sheets        string
	StatusFilter  sql.NullString
	HealthFilter  sql.NullString
	ManagerFilter sql.NullString
	RowCount      int64
	ColumnCount   int64
	ClientIp      string
}

func (q *Queries) CreateExport(ctx context.Context, arg CreateExportParams) error {
	_, err := q.db.ExecContext(ctx, createExport,
		arg.ID,
		arg.CreatedAt,
		arg.Location,
		arg.Sheets,
		arg.StatusFilter,
		arg.HealthFilter,
		arg.ManagerFilter,
		arg.RowCount,
		arg.ColumnCount,
		arg.ClientIp,
	)
	return err
}

const listRecentExports = `-- name: ListRecentExports :many
SELECT id, created_at, location, sheets, status_filter, health_filter, manager_filter, row_count, column_count, client_ip
FROM exports
ORDER BY created_at DESC, id DESC
LIMIT ?
`

func (q *Queries) ListRecentExports(ctx context.Context, limit int64) ([]Export, error) {
	rows, err := q.db.QueryContext(ctx, listRecentExports, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Export
	for rows.Next() {
		var i Export
		if err := rows.Scan(
			&i.ID,
			&i.CreatedAt,
			&i.Location,
			&i.Sheets,
			&i.StatusFilter,
			&i.HealthFilter,
			&i.ManagerFilter,
			&i.RowCount,
			&i.ColumnCount,
			&i.ClientIp,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getExport = `-- name: GetExport :one
SELECT id, created_at, location, sheets, status_filter, health_filter, manager_filter, row_count, column_count, client_ip
FROM exports
WHERE id = ?
`

func (q *Queries) GetExport(ctx context.Context, id string) (Export, error) {
	row := q.db.QueryRowContext(ctx, getExport, id)
	var i Export
	err := row.Scan(
		&i.ID,
		&i.CreatedAt,
		&i.Location,
		&i.Sheets,
		&i.StatusFilter,
		&i.HealthFilter,
		&i.ManagerFilter,
		&i.RowCount,
		&i.ColumnCount,
		&i.ClientIp,
	)
	return i, err
}

const countExports = `-- name: CountExports :one
SELECT COUNT(*) FROM exports
`

func (q *Queries) CountExports(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countExports)
	var count int64
	err := row.Scan(&count)
	return count, err
}
