package core

import "fmt"

// Workbook is an ordered collection of named sheets.
type Workbook interface {
	SheetNames() []string
	// Rows returns the raw grid of a sheet, header row included.
	Rows(sheet string) ([][]Cell, error)
}

// MemoryWorkbook is a fully decoded, read-only workbook.
type MemoryWorkbook struct {
	names  []string
	sheets map[string][][]Cell
}

// NewMemoryWorkbook returns an empty workbook.
func NewMemoryWorkbook() *MemoryWorkbook {
	return &MemoryWorkbook{sheets: make(map[string][][]Cell)}
}

// AddSheet appends a sheet. Adding an existing name replaces its rows.
func (w *MemoryWorkbook) AddSheet(name string, rows [][]Cell) {
	if _, ok := w.sheets[name]; !ok {
		w.names = append(w.names, name)
	}
	w.sheets[name] = rows
}

func (w *MemoryWorkbook) SheetNames() []string {
	return append([]string(nil), w.names...)
}

func (w *MemoryWorkbook) Rows(sheet string) ([][]Cell, error) {
	rows, ok := w.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	return rows, nil
}

// TextRows builds a grid of text cells, convenient for tests and CSV input.
func TextRows(rows [][]string) [][]Cell {
	out := make([][]Cell, len(rows))
	for i, r := range rows {
		out[i] = make([]Cell, len(r))
		for j, v := range r {
			out[i][j] = TextCell(v)
		}
	}
	return out
}
