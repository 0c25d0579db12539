package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ndjsonWriter streams newline-delimited JSON to an http.ResponseWriter,
// flushing after every line so clients render progress immediately.
type ndjsonWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newNDJSONWriter prepares a streaming response. Returns nil if the
// ResponseWriter doesn't support http.Flusher.
func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no") // nginx
	flusher.Flush()

	return &ndjsonWriter{w: w, flusher: flusher}
}

// Send writes one JSON line and flushes it.
func (n *ndjsonWriter) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal stream line: %w", err)
	}
	if _, err := fmt.Fprintf(n.w, "%s\n", data); err != nil {
		return err
	}
	n.flusher.Flush()
	return nil
}
