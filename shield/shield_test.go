package shield

// WHAT: middleware behavior in isolation: security headers on every
// response, trace ID propagation into context and headers, body cap,
// HEAD conversion.
// WHY: these run in front of every control API request; a silent
// regression here weakens every endpoint at once.

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/loadwatch/kit"
)

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultHeaders())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	}
	for header, value := range want {
		if got := rec.Header().Get(header); got != value {
			t.Errorf("%s: got %q, want %q", header, got, value)
		}
	}
}

func TestSecurityHeaders_EmptyFieldSkipped(t *testing.T) {
	cfg := DefaultHeaders()
	cfg.CSP = ""
	h := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if got := rec.Header().Get("Content-Security-Policy"); got != "" {
		t.Fatalf("CSP should be unset, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options: got %q", got)
	}
}

func TestTraceID(t *testing.T) {
	var seenTrace string
	var seenLogger bool
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTrace = kit.GetTraceID(r.Context())
		seenLogger = r.Context().Value(LoggerKey) != nil
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	if seenTrace == "" {
		t.Fatal("trace ID missing from request context")
	}
	if rec.Header().Get("X-Trace-ID") != seenTrace {
		t.Fatalf("header trace %q != context trace %q", rec.Header().Get("X-Trace-ID"), seenTrace)
	}
	if !seenLogger {
		t.Fatal("per-request logger missing from context")
	}
}

func TestTraceID_UniquePerRequest(t *testing.T) {
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	ids := make(map[string]bool)
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		ids[rec.Header().Get("X-Trace-ID")] = true
	}
	if len(ids) != 10 {
		t.Fatalf("expected 10 distinct trace IDs, got %d", len(ids))
	}
}

func TestMaxBody(t *testing.T) {
	h := MaxBody(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		if _, err := r.Body.Read(buf); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(200)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/filters", strings.NewReader(strings.Repeat("x", 100))))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body: got status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/filters", strings.NewReader("tiny")))
	if rec.Code != 200 {
		t.Fatalf("small body: got status %d", rec.Code)
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("HEAD", "/healthz", nil))
	if method != http.MethodGet {
		t.Fatalf("HEAD not converted: handler saw %s", method)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/scan", nil))
	if method != http.MethodPost {
		t.Fatalf("POST should pass through, handler saw %s", method)
	}
}

func TestGetLogger_Fallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if GetLogger(r.Context()) == nil {
		t.Fatal("GetLogger must never return nil")
	}
}

func TestDefaultStack_Order(t *testing.T) {
	stack := DefaultStack()
	if len(stack) != 4 {
		t.Fatalf("stack size: got %d", len(stack))
	}

	// Chain the full stack and confirm a HEAD request comes out as GET
	// with headers and a trace ID applied.
	var inner http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method through stack: %s", r.Method)
		}
		if kit.GetTraceID(r.Context()) == "" {
			t.Error("trace ID missing through stack")
		}
	})
	for i := len(stack) - 1; i >= 0; i-- {
		inner = stack[i](inner)
	}

	rec := httptest.NewRecorder()
	inner.ServeHTTP(rec, httptest.NewRequest("HEAD", "/healthz", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing through stack")
	}
	if rec.Header().Get("X-Trace-ID") == "" {
		t.Fatal("trace header missing through stack")
	}
}
