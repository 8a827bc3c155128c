package stream

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// noFlushWriter wraps a ResponseWriter to hide the Flusher interface.
type noFlushWriter struct {
	http.ResponseWriter
}

func TestNewSSESink_SetsStreamHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	sink, err := NewSSESink(rec)
	if err != nil {
		t.Fatalf("NewSSESink() error = %v", err)
	}
	if sink == nil {
		t.Fatal("expected non-nil sink")
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}
}

func TestNewSSESink_RequiresFlusher(t *testing.T) {
	rec := httptest.NewRecorder()

	_, err := NewSSESink(noFlushWriter{rec})
	if !errors.Is(err, ErrStreamingUnsupported) {
		t.Errorf("NewSSESink() error = %v, want ErrStreamingUnsupported", err)
	}
}

func TestSSESink_SendFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec)
	if err != nil {
		t.Fatalf("NewSSESink() error = %v", err)
	}

	if err := sink.Send("anomaly", []byte(`{"id":"evt-1"}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	want := "event: anomaly\ndata: {\"id\":\"evt-1\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
	if !rec.Flushed {
		t.Error("Send() should flush the frame")
	}
}

func TestSSESink_Comment(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec)
	if err != nil {
		t.Fatalf("NewSSESink() error = %v", err)
	}

	if err := sink.Comment("heartbeat"); err != nil {
		t.Fatalf("Comment() error = %v", err)
	}

	want := ": heartbeat\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("comment frame = %q, want %q", got, want)
	}
}
