package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// JSONResponse accumulates a status and payload for a JSON reply.
type JSONResponse struct {
	statusCode int
	payload    any
	headers    map[string]string
}

func NewJSONResponse(payload any) *JSONResponse {
	return &JSONResponse{statusCode: http.StatusOK, payload: payload, headers: make(map[string]string)}
}

// NewJSONError builds {"error": msg} with the given status.
func NewJSONError(status int, msg string) *JSONResponse {
	return NewJSONResponse(map[string]string{"error": msg}).Status(status)
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

func (b *JSONResponse) Header(key, value string) *JSONResponse {
	b.headers[key] = value
	return b
}

// Write encodes the payload before touching w so an encoding failure can
// still produce a clean 500.
func (b *JSONResponse) Write(w http.ResponseWriter) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(b.payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(buf.Bytes())
}

// CSVResponse is a downloadable CSV attachment.
type CSVResponse struct {
	filename string
	body     []byte
}

func NewCSVResponse(filename string, body []byte) *CSVResponse {
	return &CSVResponse{filename: filename, body: body}
}

func (c *CSVResponse) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+c.filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(c.body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(c.body)
}
