package stream

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush,
// which SSE requires.
var ErrStreamingUnsupported = errors.New("streaming unsupported by connection")

// SSESink writes text/event-stream frames to an HTTP response. Frames follow
// the SSE convention: an event name line, a data line, and a blank line,
// flushed immediately so the viewer sees events as they happen.
//
// Writes are serialized internally: registry deliveries and the handler's
// heartbeat loop may touch the sink concurrently.
type SSESink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSESink prepares a response writer for event streaming and writes the
// stream headers. Fails if the underlying connection cannot flush.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	return &SSESink{w: w, flusher: flusher}, nil
}

// Send writes one framed event and flushes it.
func (s *SSESink) Send(event string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("writing sse frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Comment writes an SSE comment frame. Comments are invisible to the
// client-side EventSource API but keep intermediaries from closing an idle
// connection; the stream endpoint sends one per heartbeat interval.
func (s *SSESink) Comment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("writing sse comment: %w", err)
	}
	s.flusher.Flush()
	return nil
}
