// Package workbook decodes spreadsheet documents into core.Workbook values.
package workbook

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"tracker/internal/core"
)

// Format identifies a spreadsheet container.
type Format string

const (
	FormatXLSX    Format = "xlsx"
	FormatXLS     Format = "xls"
	FormatCSV     Format = "csv"
	FormatUnknown Format = ""
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DetectFormat picks a decoder from the content signature, falling back to
// the file extension of name.
func DetectFormat(name string, data []byte) Format {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n\xef\xbb\xbf")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		// share links without download access answer with an HTML page
		return FormatUnknown
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".csv", ".txt", "":
		if utf8.Valid(data) {
			return FormatCSV
		}
	}
	return FormatUnknown
}

// Decode turns raw document bytes into a fully materialized workbook.
func Decode(name string, data []byte) (*core.MemoryWorkbook, error) {
	switch DetectFormat(name, data) {
	case FormatXLSX:
		return DecodeXLSX(bytes.NewReader(data))
	case FormatXLS:
		return DecodeXLS(bytes.NewReader(data))
	case FormatCSV:
		return DecodeCSV(name, bytes.NewReader(data))
	}
	return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, name)
}
