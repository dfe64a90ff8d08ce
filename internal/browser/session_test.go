package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// launchOrSkip starts a headless browser, skipping when no Chrome binary
// can be started on this machine.
func launchOrSkip(t *testing.T, ctx context.Context) *Session {
	t.Helper()
	s, err := NewLauncher(Config{Headless: true}).Launch(ctx)
	if err != nil {
		t.Skipf("chrome not available: %v", err)
	}
	return s
}

func TestSessionDeliversHeaders(t *testing.T) {
	if testing.Short() {
		t.Skip("launches a real browser")
	}

	var (
		mu  sync.Mutex
		got http.Header
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			mu.Lock()
			got = r.Header.Clone()
			mu.Unlock()
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s := launchOrSkip(t, ctx)

	const userAgent = "visitbatch-test/1.0 (Linux; Android 13)"
	if err := s.SetUserAgent(userAgent); err != nil {
		t.Fatalf("SetUserAgent: %v", err)
	}
	if err := s.SetViewport(360, 800); err != nil {
		t.Fatalf("SetViewport: %v", err)
	}
	if err := s.SetExtraHeaders(map[string]string{
		"Referer":         "https://www.google.com/",
		"X-Forwarded-For": "203.0.113.45",
	}); err != nil {
		t.Fatalf("SetExtraHeaders: %v", err)
	}
	if err := s.Navigate(ts.URL + "/"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got == nil {
		t.Fatal("target never received a request")
	}

	tests := []struct {
		header string
		want   string
	}{
		{"User-Agent", userAgent},
		{"Referer", "https://www.google.com/"},
		{"X-Forwarded-For", "203.0.113.45"},
	}
	for _, tt := range tests {
		if v := got.Get(tt.header); v != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, v, tt.want)
		}
	}
}

func TestSessionNavigateFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("launches a real browser")
	}

	// Grab a free port and close it so nothing is listening there.
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s := launchOrSkip(t, ctx)
	defer s.Close()

	if err := s.Navigate(url); err == nil {
		t.Error("expected error navigating to a closed port")
	}
}
