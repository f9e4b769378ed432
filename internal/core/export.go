package core

import "time"

// ExportRecord describes one CSV export of a filtered view.
type ExportRecord struct {
	ID        string
	CreatedAt time.Time
	Location  string
	Sheets    []string
	Status    []string
	Health    []string
	Manager   []string
	Rows      int
	Columns   int
	ClientIP  string
}
