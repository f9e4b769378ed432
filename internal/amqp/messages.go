package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"tracker/internal/core"
)

// ExportCompletedMessage announces a finished CSV export. Filter slices keep
// the null/[] distinction: null is the default selection.
type ExportCompletedMessage struct {
	ID        string    `json:"id"`
	Location  string    `json:"location"`
	Sheets    []string  `json:"sheets"`
	Status    []string  `json:"status"`
	Health    []string  `json:"health"`
	Manager   []string  `json:"manager"`
	Rows      int       `json:"rows"`
	Columns   int       `json:"columns"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExportCompletedMessage builds the message for an audit record.
func NewExportCompletedMessage(rec core.ExportRecord) *ExportCompletedMessage {
	ts := rec.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ExportCompletedMessage{
		ID:        rec.ID,
		Location:  rec.Location,
		Sheets:    rec.Sheets,
		Status:    rec.Status,
		Health:    rec.Health,
		Manager:   rec.Manager,
		Rows:      rec.Rows,
		Columns:   rec.Columns,
		Timestamp: ts,
	}
}

// Record converts the message back into an audit record.
func (m *ExportCompletedMessage) Record() core.ExportRecord {
	return core.ExportRecord{
		ID:        m.ID,
		CreatedAt: m.Timestamp,
		Location:  m.Location,
		Sheets:    m.Sheets,
		Status:    m.Status,
		Health:    m.Health,
		Manager:   m.Manager,
		Rows:      m.Rows,
		Columns:   m.Columns,
	}
}

func (m *ExportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportCompletedMessageFromJSON decodes a message body. Bodies without an id are rejected.
func ExportCompletedMessageFromJSON(data []byte) (*ExportCompletedMessage, error) {
	var msg ExportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("export message without id")
	}
	return &msg, nil
}
