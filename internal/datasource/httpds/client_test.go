package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cyberetl/internal/datasource"
	"cyberetl/internal/logging"
)

var (
	_ datasource.Source = (*Source)(nil)
	_ datasource.Dated  = (*Source)(nil)
)

// newTestClient records waits instead of sleeping.
func newTestClient(retries int, waits *[]time.Duration) *Client {
	c := NewClient(Config{
		MaxRetries:     retries,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
		Logger:         logging.Discard(),
	})
	c.wait = func(ctx context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return ctx.Err()
	}
	return c
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient(Config{InsecureSkipVerify: true})
	if c.httpClient.Timeout != 30*time.Second {
		t.Fatalf("timeout=%v; want 30s", c.httpClient.Timeout)
	}
	if c.maxRetries != 0 || c.initialBackoff != time.Second || c.maxBackoff != 30*time.Second {
		t.Fatalf("defaults: retries=%d initial=%v max=%v", c.maxRetries, c.initialBackoff, c.maxBackoff)
	}
	tr, ok := c.httpClient.Transport.(*http.Transport)
	if !ok || tr.TLSClientConfig == nil || !tr.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("transport=%T; want insecure *http.Transport", c.httpClient.Transport)
	}
}

func TestGet_RetriesTransientStatuses(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = io.WriteString(w, "ok")
		}
	}))
	defer srv.Close()

	var waits []time.Duration
	resp, err := newTestClient(3, &waits).Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Fatalf("hits=%d; want 3", n)
	}
	if len(waits) != 2 || waits[0] != 10*time.Millisecond || waits[1] != 20*time.Millisecond {
		t.Fatalf("waits=%v; want [10ms 20ms]", waits)
	}
}

func TestGet_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(2, nil).Get(context.Background(), srv.URL, nil)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err=%v; want retryable status 502", err)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Fatalf("hits=%d; want 3", n)
	}
}

func TestGet_NonRetryableReturnedImmediately(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := newTestClient(3, nil).Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound || atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("status=%d hits=%d; want 404 1", resp.StatusCode, atomic.LoadInt32(&hits))
	}
}

func TestGet_HeadersMerge(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Header.Get("Authorization")+"|"+r.Header.Get("X-Team"))
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseHeaders: http.Header{"Authorization": {"base"}, "X-Team": {"sec"}},
		Logger:      logging.Discard(),
	})
	resp, err := c.Get(context.Background(), srv.URL, http.Header{"Authorization": {"override"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "override|sec" {
		t.Fatalf("headers=%q; want override|sec", b)
	}
}

func TestGet_ContextCanceledDuringBackoff(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(5, nil)
	c.wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	if _, err := c.Get(ctx, srv.URL, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v; want context.Canceled", err)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{62, time.Second},
	}
	for _, tc := range cases {
		if got := Backoff(100*time.Millisecond, tc.attempt, time.Second); got != tc.want {
			t.Fatalf("Backoff(attempt=%d)=%v; want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestRetryAfterHonored(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var waits []time.Duration
	c := newTestClient(1, &waits)
	c.maxBackoff = 5 * time.Second
	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if len(waits) != 1 || waits[0] != time.Second {
		t.Fatalf("waits=%v; want [1s]", waits)
	}
}

func TestSource(t *testing.T) {
	t.Parallel()
	mod := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "no such extract", http.StatusNotFound)
			return
		}
		w.Header().Set("Last-Modified", mod.Format(http.TimeFormat))
		_, _ = io.WriteString(w, "ticker\nAAPL\n")
	}))
	defer srv.Close()

	c := newTestClient(0, nil)
	rc, err := NewSource(c, srv.URL+"/companies.csv", nil).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != "ticker\nAAPL\n" {
		t.Fatalf("body=%q", b)
	}

	got, err := NewSource(c, srv.URL+"/companies.csv", nil).LastModified(context.Background())
	if err != nil || !got.Equal(mod) {
		t.Fatalf("LastModified=%v err=%v; want %v", got, err, mod)
	}

	if _, err := NewSource(c, srv.URL+"/missing", nil).Open(context.Background()); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err=%v; want status 404", err)
	}
}
