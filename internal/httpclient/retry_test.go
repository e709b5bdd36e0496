package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoWithRetry429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := DoWithRetry(context.Background(), srv.Client(), req, DefaultRetryPolicy)
	if err != nil {
		t.Fatalf("DoWithRetry: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestDoWithRetry5xxOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	policy := RetryPolicy{Retry5xx: true, Backoff5xx: 10 * time.Millisecond}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := DoWithRetry(context.Background(), srv.Client(), req, policy)
	if err != nil {
		t.Fatalf("DoWithRetry: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want exactly one retry", calls.Load())
	}
}

func TestDoWithRetryNeverRetries404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := DoWithRetry(context.Background(), srv.Client(), req, DefaultRetryPolicy)
	if err != nil {
		t.Fatalf("DoWithRetry: %v", err)
	}
	resp.Body.Close()
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("5", time.Minute); d != 5*time.Second {
		t.Errorf("seconds: %v", d)
	}
	if d := parseRetryAfter("90", 30*time.Second); d != 30*time.Second {
		t.Errorf("cap: %v", d)
	}
	if d := parseRetryAfter("", time.Minute); d != time.Second {
		t.Errorf("empty: %v", d)
	}
	if d := parseRetryAfter("junk", time.Minute); d != time.Second {
		t.Errorf("junk: %v", d)
	}
}

func TestHostSemaphoreLimitsConcurrency(t *testing.T) {
	sem := NewHostSemaphore(2)
	r1 := sem.Acquire("https://api.example.com/a")
	r2 := sem.Acquire("https://api.example.com/b")

	acquired := make(chan struct{})
	go func() {
		r3 := sem.Acquire("https://api.example.com/c")
		close(acquired)
		r3()
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire should block at limit 2")
	case <-time.After(50 * time.Millisecond):
	}

	r1()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("third acquire still blocked after release")
	}
	r2()
}

func TestHostSemaphoreSeparateHosts(t *testing.T) {
	sem := NewHostSemaphore(1)
	r1 := sem.Acquire("https://a.example.com")
	defer r1()

	done := make(chan struct{})
	go func() {
		r2 := sem.Acquire("https://b.example.com")
		r2()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different host blocked by unrelated semaphore")
	}
}
