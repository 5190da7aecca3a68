package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/iksnae/tablestream/internal/stream"
)

// SSESink delivers protocol events to the client as server-sent
// events, one data frame per event, flushed immediately so the client
// sees each event as it is produced.
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
}

// NewSSESink prepares the response for event streaming and returns the
// sink. Returns an error when the writer cannot flush incrementally.
func NewSSESink(ctx context.Context, w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by response writer")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSESink{w: w, flusher: flusher, ctx: ctx}, nil
}

// Send writes one event as an SSE data frame. A closed connection
// surfaces as an error so the pipeline stops pulling rows.
func (s *SSESink) Send(ev *stream.Event) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
