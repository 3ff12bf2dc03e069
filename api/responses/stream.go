package responses

import (
	"encoding/json"
	"errors"
	"net/http"
)

// NDJSONWriter writes one JSON document per line and flushes after each.
type NDJSONWriter struct {
	enc *json.Encoder
	rc  *http.ResponseController
}

// NewNDJSONWriter sets streaming headers and commits a 200.
func NewNDJSONWriter(w http.ResponseWriter) *NDJSONWriter {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	nd := &NDJSONWriter{enc: json.NewEncoder(w), rc: http.NewResponseController(w)}
	_ = nd.flush()
	return nd
}

func (n *NDJSONWriter) Write(v any) error {
	if err := n.enc.Encode(v); err != nil {
		return err
	}
	return n.flush()
}

func (n *NDJSONWriter) flush() error {
	if err := n.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
