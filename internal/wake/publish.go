package wake

import (
	"log/slog"
	"time"
)

// PublishConfig controls report delivery.
type PublishConfig struct {
	MaxRetries int
	// Interval is the minimum spacing between two attempts.
	Interval time.Duration
	Topic    string
}

// PublishRecord summarizes delivery for one wake cycle.
type PublishRecord struct {
	LastAttempt time.Time
	Succeeded   bool
	Attempts    int
	Failures    int
}

type publisher interface {
	Publish(topic string, payload []byte) error
}

// PublishCycle delivers one payload per wake cycle. It is NotSent until
// an attempt succeeds and Sent forever after.
type PublishCycle struct {
	transport publisher
	cfg       PublishConfig
	logger    *slog.Logger
	payload   []byte

	failures  Budget
	attempts  int
	last      time.Time
	attempted bool
	sent      bool
}

// NewPublishCycle creates a PublishCycle for payload.
func NewPublishCycle(transport publisher, payload []byte, cfg PublishConfig, logger *slog.Logger) *PublishCycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishCycle{
		transport: transport,
		cfg:       cfg,
		logger:    logger,
		payload:   payload,
		failures:  NewBudget(cfg.MaxRetries),
	}
}

// Attempt makes one delivery attempt at now and reports whether it
// succeeded. A failure is counted but never ends the cycle here; [Tick]
// decides that. Attempting after the payload was sent is a no-op.
func (p *PublishCycle) Attempt(now time.Time) bool {
	if p.sent {
		return true
	}

	p.attempts++
	p.last = now
	p.attempted = true

	if err := p.transport.Publish(p.cfg.Topic, p.payload); err != nil {
		p.failures.Strike()
		p.logger.Error("payload could not be sent",
			"topic", p.cfg.Topic,
			"attempt", p.attempts,
			"failures", p.failures.Used(),
			"error", err,
		)
		return false
	}

	p.sent = true
	p.logger.Info("payload sent",
		"topic", p.cfg.Topic,
		"payload", string(p.payload),
		"attempt", p.attempts,
	)
	return true
}

// Tick attempts delivery when the payload is unsent and the interval has
// elapsed since the last attempt, then checks the failure budget. The
// budget check runs on every tick, so exhaustion is reported on the
// tick that records the final failure.
func (p *PublishCycle) Tick(now time.Time) Outcome {
	if !p.sent && (!p.attempted || now.Sub(p.last) >= p.cfg.Interval) {
		p.Attempt(now)
	}

	if !p.sent && p.failures.Exhausted() {
		p.logger.Error("payload could not be sent for good",
			"topic", p.cfg.Topic,
			"failures", p.failures.Used(),
		)
		return Shutdown(ReasonPublishExhausted)
	}
	return Continue
}

// Sent reports whether the payload has been delivered.
func (p *PublishCycle) Sent() bool {
	return p.sent
}

// LastAttempt returns the time of the most recent attempt.
func (p *PublishCycle) LastAttempt() time.Time {
	return p.last
}

// Record returns the delivery record.
func (p *PublishCycle) Record() PublishRecord {
	return PublishRecord{
		LastAttempt: p.last,
		Succeeded:   p.sent,
		Attempts:    p.attempts,
		Failures:    p.failures.Used(),
	}
}
