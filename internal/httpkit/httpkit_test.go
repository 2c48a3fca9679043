package httpkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestNewClient_Timeout(t *testing.T) {
	if c := NewClient(); c.Timeout != 5*time.Second {
		t.Errorf("default timeout = %v, want 5s", c.Timeout)
	}
	if c := NewClient(WithTimeout(time.Second)); c.Timeout != time.Second {
		t.Errorf("timeout = %v, want 1s", c.Timeout)
	}
}

func TestNewTransport_NoIdlePool(t *testing.T) {
	tr := NewTransport()
	if !tr.DisableKeepAlives {
		t.Error("keep-alives enabled")
	}
	if tr.TLSHandshakeTimeout != TLSHandshakeTimeout || tr.ResponseHeaderTimeout != ResponseHeaderTimeout {
		t.Errorf("transport timeouts = %v / %v", tr.TLSHandshakeTimeout, tr.ResponseHeaderTimeout)
	}
}

func TestNewClient_UserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		opts   []Option
		preset string
		want   string
	}{
		{"default", nil, "", "letterbox/"},
		{"override", []Option{WithUserAgent("bench/1.0")}, "", "bench/1.0"},
		{"request header wins", nil, "curl/8", "curl/8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
			if tt.preset != "" {
				req.Header.Set("User-Agent", tt.preset)
			}
			resp, err := NewClient(tt.opts...).Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if !strings.HasPrefix(string(body), tt.want) {
				t.Errorf("User-Agent = %q, want prefix %q", body, tt.want)
			}
		})
	}
}

// flakyDial fails the first n round trips the way a dial does before
// the ARP entry exists.
type flakyDial struct {
	failures int
	calls    int
	bodies   []string
}

func (f *flakyDial) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, string(b))
	}
	if f.calls <= f.failures {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: &net.OpError{Op: "connect", Err: syscall.EHOSTUNREACH}}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("ok"))}, nil
}

func TestRetryTransport(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		retries   int
		wantCalls int
		wantErr   bool
	}{
		{"no failure", 0, 2, 1, false},
		{"recovers", 1, 2, 2, false},
		{"exhausts", 10, 2, 3, true},
		{"disabled", 1, 0, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &flakyDial{failures: tt.failures}
			rt := &retryTransport{base: ft, retries: tt.retries, delay: time.Millisecond}

			req, _ := http.NewRequest(http.MethodGet, "http://pushgw.test/metrics", nil)
			_, err := rt.RoundTrip(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RoundTrip() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ft.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", ft.calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryTransport_RewindsBody(t *testing.T) {
	ft := &flakyDial{failures: 1}
	rt := &retryTransport{base: ft, retries: 2, delay: time.Millisecond}

	req, _ := http.NewRequest(http.MethodPut, "http://pushgw.test/metrics", strings.NewReader("payload"))
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	if len(ft.bodies) != 2 || ft.bodies[1] != "payload" {
		t.Errorf("bodies = %q, want the payload twice", ft.bodies)
	}
}

func TestRetryTransport_NoRetryWithoutGetBody(t *testing.T) {
	ft := &flakyDial{failures: 1}
	rt := &retryTransport{base: ft, retries: 2, delay: time.Millisecond}

	req, _ := http.NewRequest(http.MethodPut, "http://pushgw.test/metrics", io.NopCloser(strings.NewReader("payload")))
	req.GetBody = nil
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("RoundTrip() should surface the dial error")
	}
	if ft.calls != 1 {
		t.Errorf("calls = %d, want 1", ft.calls)
	}
}

func TestRetryTransport_StopsOnCancel(t *testing.T) {
	ft := &flakyDial{failures: 10}
	rt := &retryTransport{base: ft, retries: 5, delay: 5 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://pushgw.test/metrics", nil)

	_, err := rt.RoundTrip(req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RoundTrip() error = %v, want deadline exceeded", err)
	}
	if ft.calls != 1 {
		t.Errorf("calls = %d, want 1", ft.calls)
	}
}

func TestDialFailed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"generic", fmt.Errorf("oops"), false},
		{"EHOSTUNREACH", syscall.EHOSTUNREACH, true},
		{"ENETUNREACH", syscall.ENETUNREACH, true},
		{"ECONNREFUSED", syscall.ECONNREFUSED, true},
		{"ECONNRESET", syscall.ECONNRESET, false},
		{"wrapped", fmt.Errorf("connect: %w", syscall.EHOSTUNREACH), true},
		{"OpError", &net.OpError{Op: "dial", Net: "tcp", Err: &net.OpError{Op: "connect", Err: syscall.ENETUNREACH}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dialFailed(tt.err); got != tt.want {
				t.Errorf("dialFailed(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
