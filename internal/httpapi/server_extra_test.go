package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"localchat/pkg/types"
)

func TestInferLogsWithZerologInfo(t *testing.T) {
	var buf strings.Builder
	SetLogger(zerolog.New(&buf))
	defer SetLogger(zerolog.Nop())

	h := NewMux(Deps{Streamer: defaultStreamer()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postJSON("/infer?log=info", `{"prompt":"hi","model":"m1"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with info logging, got %d", rec.Code)
	}
	out := buf.String()
	if !strings.Contains(out, `"message":"infer start"`) || !strings.Contains(out, `"outcome":"done"`) {
		t.Fatalf("log=%s", out)
	}
	if !strings.Contains(out, `"request_id"`) {
		t.Fatalf("request id missing: %s", out)
	}
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	// Enable CORS temporarily
	SetCORSOptions(true, []string{"*"}, []string{"GET", "POST", "OPTIONS"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)

	h := NewMux(Deps{Catalog: &mockCatalog{}})
	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options=nosniff, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS header Access-Control-Allow-Origin to be set, got empty")
	}
}

func TestInferTimeoutEndsStream(t *testing.T) {
	defer SetInferTimeout(0)
	SetInferTimeout(50 * time.Millisecond)

	st := &mockStreamer{block: true}
	h := NewMux(Deps{Streamer: st})
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, postJSON("/infer", `{"prompt":"x"}`))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("infer did not stop at the timeout")
	}
	evs := decodeEvents(t, rec.Body.String())
	if len(evs) != 1 || evs[0].Type != "done" {
		t.Fatalf("events=%+v", evs)
	}
}

func TestContentTypeCaseInsensitive(t *testing.T) {
	h := NewMux(Deps{Streamer: defaultStreamer()})
	rec := httptest.NewRecorder()
	req := postJSON("/infer", `{"prompt":"hi"}`)
	req.Header.Set("Content-Type", "Application/JSON; charset=utf-8")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with mixed-case content-type, got %d", rec.Code)
	}
}

func TestInferStreamsWithDebugLogging(t *testing.T) {
	var buf strings.Builder
	SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	defer SetLogger(zerolog.Nop())

	h := NewMux(Deps{Streamer: defaultStreamer()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postJSON("/infer?log=debug", `{"prompt":"hi"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with debug logging, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"stream":"infer"`) {
		t.Fatalf("ndjson lines not logged: %s", buf.String())
	}
}

func TestInferStopsWhenClientWriteFails(t *testing.T) {
	// The chunk write fails, which must cancel the otherwise blocked transport.
	st := &mockStreamer{events: []types.StreamEvent{types.Chunk("x")}, block: true}
	h := NewMux(Deps{Streamer: st})
	w := &failingWriter{header: http.Header{}}
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(w, postJSON("/infer", `{"prompt":"x"}`))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("transport kept running after the client write failed")
	}
}

type failingWriter struct {
	header http.Header
}

func (f *failingWriter) Header() http.Header       { return f.header }
func (f *failingWriter) WriteHeader(int)           {}
func (f *failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }
