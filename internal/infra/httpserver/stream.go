package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	domain "github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
)

const ndjsonContentType = "application/x-ndjson"

// EventWriter relays a run's events as newline-delimited JSON, one record per
// event, flushing after each. Once a write fails the writer goes quiet and
// keeps accepting events so the run can finish and persist.
type EventWriter struct {
	w       io.Writer
	enc     *json.Encoder
	flusher http.Flusher
	logger  *slog.Logger
	err     error
}

func NewEventWriter(w io.Writer, logger *slog.Logger) *EventWriter {
	if logger == nil {
		logger = slog.Default()
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	ew := &EventWriter{w: w, enc: enc, logger: logger}
	if f, ok := w.(http.Flusher); ok {
		ew.flusher = f
	}
	return ew
}

// Emit writes one record. It never fails.
func (e *EventWriter) Emit(ev domain.Event) {
	if e.err != nil {
		return
	}
	if err := e.enc.Encode(ev); err != nil {
		e.err = err
		e.logger.Warn("event stream write failed, dropping remaining events", "type", ev.EventType(), "err", err)
		return
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
}

// Err reports the first write failure, if any.
func (e *EventWriter) Err() error { return e.err }
