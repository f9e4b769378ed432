// Package source obtains workbooks from a location descriptor: a URL, a
// filesystem path or a Google spreadsheet ID.
package source

import (
	"context"
	"fmt"

	"tracker/internal/core"
)

// Loader produces a workbook for a location or fails with an error wrapping
// core.ErrLoadFailed.
type Loader interface {
	Load(ctx context.Context, location string) (core.Workbook, error)
	// Describe names the backend for logs and the UI.
	Describe() string
}

// StatusError is a non-200 answer from a remote source.
type StatusError struct {
	Location   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.Location)
}
