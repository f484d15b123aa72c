package retryhttp

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
)

type scriptedDoer struct {
	calls   int
	results []func() (*http.Response, error)
}

func (d *scriptedDoer) Do(*http.Request) (*http.Response, error) {
	idx := d.calls
	d.calls++
	if idx >= len(d.results) {
		idx = len(d.results) - 1
	}
	return d.results[idx]()
}

func status(code int) func() (*http.Response, error) {
	return func() (*http.Response, error) {
		return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader("body"))}, nil
	}
}

func netErr() func() (*http.Response, error) {
	return func() (*http.Response, error) {
		return nil, errors.New("connection refused")
	}
}

func noSleep(t *testing.T) (Option, *[]time.Duration) {
	t.Helper()
	var sleeps []time.Duration
	return WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }), &sleeps
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.invalid/x", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func TestDoRetriesTransportFailuresThenSucceeds(t *testing.T) {
	doer := &scriptedDoer{results: []func() (*http.Response, error){netErr(), netErr(), status(200)}}
	sleeper, sleeps := noSleep(t)
	client := New(WithDoer(doer), sleeper)

	resp, err := client.Do(newRequest(t))
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if doer.calls != 3 {
		t.Fatalf("attempts = %d, want 3", doer.calls)
	}
	if len(*sleeps) != 2 || (*sleeps)[0] != DefaultDelay || (*sleeps)[1] != DefaultDelay {
		t.Fatalf("expected two fixed delays of %s, got %v", DefaultDelay, *sleeps)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	doer := &scriptedDoer{results: []func() (*http.Response, error){status(404)}}
	sleeper, sleeps := noSleep(t)
	client := New(WithDoer(doer), sleeper)

	resp, err := client.Do(newRequest(t))
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if doer.calls != 1 {
		t.Fatalf("attempts = %d, want 1", doer.calls)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("expected no sleeps, got %v", *sleeps)
	}
}

func TestDoReturnsLastServerErrorAfterExhaustion(t *testing.T) {
	doer := &scriptedDoer{results: []func() (*http.Response, error){status(503)}}
	sleeper, _ := noSleep(t)
	var observed []Attempt
	client := New(WithDoer(doer), sleeper, WithObserver(func(a Attempt) { observed = append(observed, a) }))

	resp, err := client.Do(newRequest(t))
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if doer.calls != DefaultMaxAttempts {
		t.Fatalf("attempts = %d, want %d", doer.calls, DefaultMaxAttempts)
	}
	if len(observed) != 3 || observed[2].Number != 3 || observed[2].StatusCode != 503 {
		t.Fatalf("unexpected observed attempts: %+v", observed)
	}
}

func TestDoPropagatesLastTransportError(t *testing.T) {
	doer := &scriptedDoer{results: []func() (*http.Response, error){netErr()}}
	sleeper, _ := noSleep(t)
	client := New(WithDoer(doer), sleeper, WithMaxAttempts(2))

	_, err := client.Do(newRequest(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "failed after 2 attempts") || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("unexpected error: %v", err)
	}
	if doer.calls != 2 {
		t.Fatalf("attempts = %d, want 2", doer.calls)
	}
}

func TestDoStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	doer := &scriptedDoer{results: []func() (*http.Response, error){status(500)}}
	client := New(WithDoer(doer), WithSleeper(func(time.Duration) { cancel() }))

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid/x", nil)
	_, err := client.Do(req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if doer.calls != 1 {
		t.Fatalf("attempts = %d, want 1", doer.calls)
	}
}

func TestDoReplaysBodyOnRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"q":1}` {
			t.Errorf("attempt %d saw body %q", calls.Load()+1, body)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(WithHTTPClient(server.Client()), WithDelay(0))
	req, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(`{"q":1}`))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || calls.Load() != 3 {
		t.Fatalf("status=%d calls=%d", resp.StatusCode, calls.Load())
	}
}

func TestDoRejectsUnreplayableBody(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", io.NopCloser(strings.NewReader("x")))
	req.GetBody = nil
	if _, err := New().Do(req); err == nil {
		t.Fatal("expected error for body without GetBody")
	}
}

func TestMaxAttemptsFloor(t *testing.T) {
	if got := New(WithMaxAttempts(0)).MaxAttempts(); got != 1 {
		t.Fatalf("MaxAttempts() = %d, want 1", got)
	}
}
