package wake

import (
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"
)

// SessionConfig controls the broker handshake retries.
type SessionConfig struct {
	MaxRetries int
	Backoff    time.Duration
	// ClientPrefix is prepended to the random client identifier.
	ClientPrefix string
}

// Session opens the broker session. Every attempt uses a new random
// client identifier so two nodes that happen to share an identifier do
// not keep taking each other's session over at the broker.
type Session struct {
	transport Transport
	clock     Clock
	cfg       SessionConfig
	logger    *slog.Logger
	newID     func() string

	host     string
	port     int
	state    LinkState
	strikes  Budget
	attempts int
	failures int
}

// NewSession creates a Session in the Disconnected state.
func NewSession(transport Transport, clock Clock, cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		transport: transport,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		strikes:   NewBudget(cfg.MaxRetries),
	}
	s.newID = func() string { return RandomClientID(cfg.ClientPrefix) }
	return s
}

// RandomClientID returns prefix followed by a random 16-bit value in
// lowercase hex.
func RandomClientID(prefix string) string {
	return prefix + strconv.FormatUint(uint64(rand.IntN(0xffff)), 16)
}

// Configure sets the broker endpoint on the transport.
func (s *Session) Configure(host string, port int) {
	s.host = host
	s.port = port
	s.transport.SetEndpoint(host, port)
}

// Connect performs handshakes until the transport reports a session.
// A failed attempt waits for the backoff and adds a strike; a
// successful one clears the strike run. When the run of failures
// reaches MaxRetries it returns [Shutdown] with [ReasonBrokerExhausted].
// Every call starts with a fresh budget.
func (s *Session) Connect() Outcome {
	s.state = Connecting
	s.strikes = NewBudget(s.cfg.MaxRetries)

	s.logger.Info("connecting to broker", "host", s.host, "port", s.port)
	for !s.transport.Connected() {
		id := s.newID()
		s.attempts++
		if err := s.transport.Connect(id); err != nil {
			s.failures++
			s.logger.Error("broker connection failed",
				"client_id", id,
				"code", s.transport.LastErrorCode(),
				"error", err,
			)
			s.clock.Sleep(s.cfg.Backoff)
			s.strikes.Strike()
		} else {
			s.strikes.Reset()
			s.logger.Debug("broker handshake accepted", "client_id", id)
		}

		if s.strikes.Exhausted() {
			s.state = Disconnected
			s.logger.Error("broker connection failed for good",
				"host", s.host,
				"strikes", s.strikes.Used(),
			)
			return Shutdown(ReasonBrokerExhausted)
		}
	}

	s.state = Connected
	return Continue
}

// Check re-observes the transport. A session that was up and is now
// gone moves the state to Disconnected.
func (s *Session) Check() LinkState {
	if s.state == Connected && !s.transport.Connected() {
		s.state = Disconnected
	}
	return s.state
}

// State returns the last observed session state.
func (s *Session) State() LinkState {
	return s.state
}

// Strikes returns the current run of failed handshakes.
func (s *Session) Strikes() int {
	return s.strikes.Used()
}

// Attempts returns the handshakes tried in this wake cycle and how many
// of them failed.
func (s *Session) Attempts() (attempts, failures int) {
	return s.attempts, s.failures
}

// Report logs the broker diagnostics after a successful handshake.
func (s *Session) Report() {
	s.logger.Info("broker connected", "host", s.host, "port", s.port)
}
