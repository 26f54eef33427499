package fetcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// noopValidator allows all URLs (for tests that don't test SSRF).
func noopValidator(_ string) error { return nil }

func TestFetchSuccess(t *testing.T) {
	// WHAT: Basic HTTP GET returns body, hash, and caching headers.
	// WHY: Core fetcher functionality.
	body := "<html><body>loads</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator})
	result, err := f.Fetch(context.Background(), srv.URL, "", "", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.StatusCode != 200 {
		t.Errorf("status: got %d", result.StatusCode)
	}
	if string(result.Body) != body {
		t.Errorf("body: got %q", string(result.Body))
	}
	if result.ETag != `"abc123"` {
		t.Errorf("etag: got %q", result.ETag)
	}
	if !result.Changed {
		t.Error("should be changed (no previous hash)")
	}
	h := sha256.Sum256([]byte(body))
	want := fmt.Sprintf("%x", h)
	if result.Hash != want {
		t.Errorf("hash: got %q, want %q", result.Hash, want)
	}
}

func TestFetch304NotModified(t *testing.T) {
	// WHAT: Conditional GET returns 304 when ETag matches.
	// WHY: A static board page must not cost a full re-extraction.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"abc123"` {
			w.WriteHeader(304)
			return
		}
		w.Write([]byte("body"))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator})
	result, err := f.Fetch(context.Background(), srv.URL, `"abc123"`, "", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.StatusCode != 304 {
		t.Errorf("status: got %d, want 304", result.StatusCode)
	}
	if result.Changed {
		t.Error("304 should mean not changed")
	}
}

func TestFetchUnchangedHash(t *testing.T) {
	// WHAT: Same content hash means Changed=false.
	// WHY: Some servers don't support ETag; hash-based dedup is the
	// fallback.
	body := "same content"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	h := sha256.Sum256([]byte(body))
	prevHash := fmt.Sprintf("%x", h)

	f := New(Config{URLValidator: noopValidator})
	result, err := f.Fetch(context.Background(), srv.URL, "", "", prevHash)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Changed {
		t.Error("same hash should mean unchanged")
	}
}

func TestFetchTimeout(t *testing.T) {
	// WHAT: Fetch respects the client timeout.
	// WHY: A hung board must not block the cycle indefinitely.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 100 * time.Millisecond, URLValidator: noopValidator})
	_, err := f.Fetch(context.Background(), srv.URL, "", "", "")
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestFetchOversizedBody(t *testing.T) {
	// WHAT: A body beyond MaxBytes is an error, not a silent truncation.
	// WHY: Half a board page would extract half the loads and look like
	// the rest disappeared.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 1000; i++ {
			w.Write([]byte("x"))
		}
	}))
	defer srv.Close()

	f := New(Config{MaxBytes: 100, URLValidator: noopValidator})
	_, err := f.Fetch(context.Background(), srv.URL, "", "", "")
	if err == nil {
		t.Fatal("expected error for oversized body")
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("error: %v", err)
	}
}

func TestFetchRateLimitSpacing(t *testing.T) {
	// WHAT: MinInterval spaces back-to-back fetches.
	// WHY: Polling must stay polite to the board host.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Config{MinInterval: 60 * time.Millisecond, URLValidator: noopValidator})
	ctx := context.Background()

	start := time.Now()
	if _, err := f.Fetch(ctx, srv.URL, "", "", ""); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := f.Fetch(ctx, srv.URL, "", "", ""); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("two fetches completed in %v, limiter not applied", elapsed)
	}
}

// --- SSRF protection tests ---

func TestValidateURL(t *testing.T) {
	cases := []struct {
		url     string
		wantErr error
	}{
		{"http://8.8.8.8/boards", nil},
		{"https://8.8.4.4/", nil},
		{"http://127.0.0.1/admin", ErrSSRF},
		{"http://10.0.0.8/internal", ErrSSRF},
		{"http://192.168.1.1/data", ErrSSRF},
		{"http://172.16.33.7/", ErrSSRF},
		{"http://169.254.169.254/latest/", ErrSSRF},
		{"http://[::1]/", ErrSSRF},
		{"ftp://example.com/file", ErrUnsafeScheme},
		{"file:///etc/passwd", ErrUnsafeScheme},
	}
	for _, tc := range cases {
		err := ValidateURL(tc.url)
		if tc.wantErr == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tc.url, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: got %v, want %v", tc.url, err, tc.wantErr)
		}
	}
}

func TestValidateURLNoHost(t *testing.T) {
	if err := ValidateURL("http:///path-only"); err == nil {
		t.Fatal("expected error for URL without host")
	}
}

func TestValidateSchemeAllowsPrivate(t *testing.T) {
	// WHAT: The lax validator admits private addresses but still rejects
	// bad schemes.
	// WHY: Boards on a LAN are a legitimate deployment.
	if err := ValidateScheme("http://192.168.1.50:8080/board"); err != nil {
		t.Fatalf("lax validator rejected LAN URL: %v", err)
	}
	if err := ValidateScheme("gopher://x"); !errors.Is(err, ErrUnsafeScheme) {
		t.Fatalf("got %v, want ErrUnsafeScheme", err)
	}
}

func TestFetchBlocksPrivateIP(t *testing.T) {
	// WHAT: Private IP URLs are blocked before any request is made.
	// WHY: SSRF prevention with the default validator.
	f := New(Config{})
	_, err := f.Fetch(context.Background(), "http://192.168.1.1/data", "", "", "")
	if !errors.Is(err, ErrSSRF) {
		t.Fatalf("got %v, want ErrSSRF", err)
	}
}

func TestFetchRedirectToPrivateBlocked(t *testing.T) {
	// WHAT: Redirect to a private IP is blocked by CheckRedirect.
	// WHY: Open redirect to SSRF is a common attack chain.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://10.255.255.1/admin", http.StatusFound)
	}))
	defer srv.Close()

	// Allow the first URL (httptest loopback), screen redirects hard.
	first := true
	allowFirst := func(u string) error {
		if first {
			first = false
			return nil
		}
		return ValidateURL(u)
	}

	f := New(Config{URLValidator: allowFirst})
	_, err := f.Fetch(context.Background(), srv.URL, "", "", "")
	if err == nil {
		t.Fatal("expected error for redirect to private IP")
	}
	if !strings.Contains(err.Error(), "redirect blocked") {
		t.Errorf("error: %v", err)
	}
}

func TestFetchTooManyRedirects(t *testing.T) {
	// WHAT: More than 5 redirects are blocked.
	// WHY: Redirect loop protection.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.String()+"x", http.StatusFound)
	}))
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator})
	_, err := f.Fetch(context.Background(), srv.URL+"/start", "", "", "")
	if err == nil {
		t.Fatal("expected error for too many redirects")
	}
	if !strings.Contains(err.Error(), "redirect") {
		t.Errorf("error: %v", err)
	}
}
