// Package httpkit builds the HTTP client for the node's few outbound
// requests. A wake cycle makes at most one or two, right after the
// link came up, so the client keeps no idle pool and retries dial
// failures that typically clear once ARP and routes settle.
package httpkit

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/nugget/letterbox/internal/buildinfo"
)

// Dial and handshake limits. A node on battery cannot afford the
// library defaults.
const (
	DialTimeout           = 3 * time.Second
	TLSHandshakeTimeout   = 3 * time.Second
	ResponseHeaderTimeout = 5 * time.Second
)

// Option configures NewClient.
type Option func(*options)

type options struct {
	timeout    time.Duration
	userAgent  string
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// WithTimeout sets the overall request timeout (default 5s).
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithUserAgent overrides the buildinfo User-Agent.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithRetry retries a request up to n more times, delay apart, when it
// failed before reaching the server.
func WithRetry(n int, delay time.Duration) Option {
	return func(o *options) {
		o.retries = n
		o.retryDelay = delay
	}
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewTransport returns a transport with short timeouts and keep-alives
// off.
func NewTransport() *http.Transport {
	return &http.Transport{
		DialContext:           (&net.Dialer{Timeout: DialTimeout}).DialContext,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: ResponseHeaderTimeout,
		DisableKeepAlives:     true,
	}
}

// NewClient returns an *http.Client stamped with the letterbox
// User-Agent.
func NewClient(opts ...Option) *http.Client {
	o := &options{
		timeout:   5 * time.Second,
		userAgent: buildinfo.UserAgent(),
	}
	for _, opt := range opts {
		opt(o)
	}

	var rt http.RoundTripper = &userAgentTransport{base: NewTransport(), ua: o.userAgent}
	if o.retries > 0 {
		rt = &retryTransport{base: rt, retries: o.retries, delay: o.retryDelay, logger: o.logger}
	}
	return &http.Client{Timeout: o.timeout, Transport: rt}
}

type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.base.RoundTrip(req)
}

// retryTransport repeats requests whose dial failed. A request with a
// body is only repeated when GetBody can rewind it.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	delay   time.Duration
	logger  *slog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	rewindable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	for attempt := 1; attempt <= t.retries && dialFailed(err) && rewindable; attempt++ {
		if t.logger != nil {
			t.logger.Debug("retrying request after dial failure",
				"method", req.Method,
				"url", req.URL.Redacted(),
				"attempt", attempt,
				"error", err,
			)
		}

		timer := time.NewTimer(t.delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}

		again := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("rewind request body: %w", bodyErr)
			}
			again.Body = body
		}
		resp, err = t.base.RoundTrip(again)
	}
	return resp, err
}

// dialFailed reports errors raised before any byte reached the server.
// ECONNRESET is not one of them.
func dialFailed(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case syscall.EHOSTUNREACH, syscall.ENETUNREACH, syscall.ECONNREFUSED:
		return true
	}
	return false
}
