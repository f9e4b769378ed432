// Package local loads workbooks from the filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"tracker/internal/core"
	"tracker/internal/source"
	"tracker/internal/workbook"
)

// DefaultMaxBytes bounds the size of a workbook file.
const DefaultMaxBytes int64 = 50 << 20

// Loader reads a workbook file. A path that does not exist is a load failure.
type Loader struct {
	maxBytes int64
	logger   *slog.Logger
}

var _ source.Loader = (*Loader)(nil)

func New(maxBytes int64, logger *slog.Logger) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{maxBytes: maxBytes, logger: logger}
}

func (l *Loader) Load(ctx context.Context, path string) (core.Workbook, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrLoadFailed, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", core.ErrLoadFailed, path)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", core.ErrLoadFailed, path, info.Size(), l.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrLoadFailed, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", core.ErrLoadFailed, path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, l.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", core.ErrLoadFailed, path, err)
	}

	wb, err := workbook.Decode(path, data)
	if err != nil {
		if errors.Is(err, core.ErrUnsupportedFormat) {
			l.logger.WarnContext(ctx, "Unrecognized workbook format", "path", path, "size", len(data))
		}
		return nil, fmt.Errorf("%w: decode %s: %w", core.ErrLoadFailed, path, err)
	}
	l.logger.DebugContext(ctx, "Workbook loaded from disk", "path", path, "sheets", len(wb.SheetNames()))
	return wb, nil
}

func (l *Loader) Describe() string {
	return "local"
}
