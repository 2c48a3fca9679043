package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
)

// Error codes reported by [Client.LastErrorCode] for failures that have
// no MQTT reason code. Broker reason codes are reported as-is (0x87 =
// 135 for "not authorized", and so on).
const (
	CodeNetwork      = -1 // dial failed or the connection dropped
	CodeNotConnected = -2 // publish without a session
)

// ErrNotConnected is returned by Publish when there is no session.
var ErrNotConnected = errors.New("mqtt: not connected")

// Config holds the session parameters.
type Config struct {
	Username string
	Password string
	QoS      byte
	Retain   bool
	// KeepAlive in seconds; zero disables keepalive pings.
	KeepAlive uint16
	// Timeout bounds one dial plus CONNECT/CONNACK exchange, and one
	// publish acknowledgement.
	Timeout time.Duration
	// TLS dials with TLS 1.2 or later.
	TLS bool
	// PollWait is how long Poll waits for a session-lost signal.
	PollWait time.Duration
}

// DialFunc opens the network connection for a session.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client is a single MQTT v5 session at a time. It is not safe for
// concurrent use apart from paho's own callbacks.
type Client struct {
	cfg    Config
	logger *slog.Logger
	dial   DialFunc

	host string
	port int

	cli       *paho.Client
	connected atomic.Bool
	lastCode  atomic.Int64
	lost      chan struct{}
}

// New creates a Client. Call SetEndpoint before Connect.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PollWait <= 0 {
		cfg.PollWait = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		lost:   make(chan struct{}, 1),
	}
	c.dial = c.defaultDial
	return c
}

// SetDialer replaces the network dialer. Used by tests.
func (c *Client) SetDialer(dial DialFunc) {
	c.dial = dial
}

func (c *Client) defaultDial(ctx context.Context, network, addr string) (net.Conn, error) {
	if c.cfg.TLS {
		d := &tls.Dialer{Config: &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: c.host,
		}}
		return d.DialContext(ctx, network, addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

// SetEndpoint sets the broker host and port for subsequent connects.
func (c *Client) SetEndpoint(host string, port int) {
	c.host = host
	c.port = port
}

// Connect dials the broker and performs the CONNECT/CONNACK exchange
// with a clean start. Any previous session is closed first.
func (c *Client) Connect(clientID string) error {
	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	conn, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		c.lastCode.Store(CodeNetwork)
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	cli := paho.NewClient(paho.ClientConfig{
		ClientID: clientID,
		Conn:     conn,
		OnClientError: func(err error) {
			c.markLost(CodeNetwork, "mqtt client error", "error", err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			c.markLost(int64(d.ReasonCode), "mqtt server disconnect", "reason_code", d.ReasonCode)
		},
	})

	cp := &paho.Connect{
		ClientID:   clientID,
		KeepAlive:  c.cfg.KeepAlive,
		CleanStart: true,
	}
	if c.cfg.Username != "" {
		cp.Username = c.cfg.Username
		cp.UsernameFlag = true
	}
	if c.cfg.Password != "" {
		cp.Password = []byte(c.cfg.Password)
		cp.PasswordFlag = true
	}

	ca, err := cli.Connect(ctx, cp)
	if err != nil {
		if ca != nil {
			c.lastCode.Store(int64(ca.ReasonCode))
		} else {
			c.lastCode.Store(CodeNetwork)
		}
		conn.Close()
		return fmt.Errorf("mqtt connect %s: %w", addr, err)
	}

	// Drain a stale lost signal from the previous session.
	select {
	case <-c.lost:
	default:
	}

	c.cli = cli
	c.lastCode.Store(0)
	c.connected.Store(true)
	return nil
}

// markLost records the first loss of the current session. The code is
// stored before the connected flag drops so a caller that sees the
// session gone also sees why.
func (c *Client) markLost(code int64, msg string, args ...any) {
	if !c.connected.Load() {
		return
	}
	c.lastCode.Store(code)
	if !c.connected.Swap(false) {
		return
	}
	c.logger.Warn(msg, args...)
	select {
	case c.lost <- struct{}{}:
	default:
	}
}

// Connected reports whether the session is up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Publish sends payload to topic with the configured QoS and retain
// flag. For QoS 1 and 2 it waits for the broker acknowledgement.
func (c *Client) Publish(topic string, payload []byte) error {
	if c.cli == nil || !c.connected.Load() {
		c.lastCode.Store(CodeNotConnected)
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	resp, err := c.cli.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     c.cfg.QoS,
		Retain:  c.cfg.Retain,
	})
	if err != nil {
		if resp != nil {
			c.lastCode.Store(int64(resp.ReasonCode))
		} else {
			c.lastCode.Store(CodeNetwork)
		}
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Poll gives the tick loop a bounded wait: it returns as soon as the
// session is lost, or after PollWait. Paho does its protocol work on
// its own goroutines.
func (c *Client) Poll() {
	timer := time.NewTimer(c.cfg.PollWait)
	defer timer.Stop()
	select {
	case <-c.lost:
	case <-timer.C:
	}
}

// LastErrorCode returns the reason code of the last failure, or zero.
func (c *Client) LastErrorCode() int {
	return int(c.lastCode.Load())
}

// Close sends DISCONNECT if a session is up and forgets the session.
func (c *Client) Close() error {
	if c.cli == nil {
		return nil
	}
	cli := c.cli
	c.cli = nil
	if !c.connected.Swap(false) {
		return nil
	}
	return cli.Disconnect(&paho.Disconnect{ReasonCode: 0})
}

// ParseBroker splits a broker URL into host, port and whether TLS is
// required. mqtt:// and tcp:// default to port 1883; mqtts://, ssl://
// and tls:// default to 8883.
func ParseBroker(raw string) (host string, port int, useTLS bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	switch u.Scheme {
	case "mqtt", "tcp":
		port = 1883
	case "mqtts", "ssl", "tls":
		port = 8883
		useTLS = true
	default:
		return "", 0, false, fmt.Errorf("unsupported broker scheme %q in %s", u.Scheme, raw)
	}

	host = u.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("broker URL %s has no host", raw)
	}

	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return "", 0, false, fmt.Errorf("invalid broker port %q", p)
		}
	}
	return host, port, useTLS, nil
}
