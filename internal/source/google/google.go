// Package google reads every tab of a Google spreadsheet as a workbook sheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tracker/internal/core"
	"tracker/internal/source"
)

// Credentials locate a service account key. JSON wins over File; with
// neither, GOOGLE_APPLICATION_CREDENTIALS is consulted.
type Credentials struct {
	JSON string
	File string
}

// Client loads spreadsheets through the Sheets API. The location passed to
// Load is the spreadsheet ID.
type Client struct {
	svc    *gsheet.Service
	logger *slog.Logger
}

var _ source.Loader = (*Client)(nil)

// New creates a client authenticated with a service account (read-only scope).
func New(ctx context.Context, creds Credentials, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := newSheetsService(ctx, creds, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, logger: logger}, nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gsheet.Service, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{svc: svc, logger: logger}
}

func newSheetsService(ctx context.Context, creds Credentials, logger *slog.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(creds.JSON)
	serviceAccountFile := strings.TrimSpace(creds.File)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.InfoContext(ctx, "Read service account credentials", "path", serviceAccountFile, "size", len(b))
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) Load(ctx context.Context, spreadsheetID string) (core.Workbook, error) {
	if c.svc == nil {
		return nil, fmt.Errorf("%w: sheets service not initialized", core.ErrLoadFailed)
	}
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, fmt.Errorf("%w: empty spreadsheet id", core.ErrLoadFailed)
	}

	meta, err := c.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read spreadsheet %s: %w", core.ErrLoadFailed, spreadsheetID, apiError(spreadsheetID, err))
	}

	titles := make([]string, 0, len(meta.Sheets))
	ranges := make([]string, 0, len(meta.Sheets))
	for _, sh := range meta.Sheets {
		if sh.Properties == nil {
			continue
		}
		titles = append(titles, sh.Properties.Title)
		ranges = append(ranges, quoteSheet(sh.Properties.Title))
	}

	wb := core.NewMemoryWorkbook()
	if len(ranges) == 0 {
		return wb, nil
	}

	resp, err := c.svc.Spreadsheets.Values.BatchGet(spreadsheetID).
		Ranges(ranges...).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		MajorDimension("ROWS").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read values of %s: %w", core.ErrLoadFailed, spreadsheetID, apiError(spreadsheetID, err))
	}

	// value ranges come back in request order
	for i, title := range titles {
		var values [][]any
		if i < len(resp.ValueRanges) && resp.ValueRanges[i] != nil {
			values = resp.ValueRanges[i].Values
		}
		wb.AddSheet(title, toCells(values))
	}

	c.logger.InfoContext(ctx, "Spreadsheet loaded", "spreadsheet_id", spreadsheetID, "sheets", len(titles))
	return wb, nil
}

func (c *Client) Describe() string {
	return "google"
}

// quoteSheet builds an A1 range covering a whole tab.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// apiError maps googleapi errors onto source.StatusError so retry
// classification sees the HTTP status.
func apiError(id string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%w: %s", &source.StatusError{Location: "sheets:" + id, StatusCode: gerr.Code}, gerr.Message)
	}
	return err
}

func toCells(values [][]any) [][]core.Cell {
	out := make([][]core.Cell, len(values))
	for i, row := range values {
		cells := make([]core.Cell, len(row))
		for j, v := range row {
			cells[j] = toCell(v)
		}
		out[i] = cells
	}
	return out
}

func toCell(v any) core.Cell {
	switch x := v.(type) {
	case nil:
		return core.Cell{}
	case string:
		return core.TextCell(x)
	case float64:
		return core.NumberCell(x)
	case bool:
		return core.BoolCell(x)
	}
	return core.TextCell(fmt.Sprint(v))
}
