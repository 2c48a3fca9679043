package wake

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/letterbox/internal/buildinfo"
	"github.com/nugget/letterbox/internal/config"
)

// Config holds everything one wake cycle needs to know. It is read at
// boot and never changes.
type Config struct {
	SSID       string
	Passphrase string
	BrokerHost string
	BrokerPort int
	// IdleTime is the grace period after a successful publish, kept
	// free for inbound handling before power-down.
	IdleTime     time.Duration
	PayloadWidth int

	Sampler    SamplerConfig
	Associator AssociatorConfig
	Session    SessionConfig
	Publish    PublishConfig
}

// ConfigFrom maps the file configuration onto a wake cycle. The single
// max_retries value is handed to each subsystem separately.
func ConfigFrom(cfg *config.Config, brokerHost string, brokerPort int) Config {
	return Config{
		SSID:         cfg.Network.SSID,
		Passphrase:   cfg.Network.Passphrase,
		BrokerHost:   brokerHost,
		BrokerPort:   brokerPort,
		IdleTime:     cfg.IdleTime(),
		PayloadWidth: cfg.Sampler.PayloadWidth,
		Sampler: SamplerConfig{
			Samples:   cfg.Sampler.Samples,
			Settle:    cfg.Sampler.Settle(),
			Reference: cfg.Sampler.ReferenceVolts,
			Scale:     cfg.Sampler.Resolution,
		},
		Associator: AssociatorConfig{
			MaxRetries:      cfg.MaxRetries,
			LowPower:        cfg.Network.LowPower,
			BlinkInterval:   cfg.Network.BlinkInterval(),
			BlinksPerStrike: cfg.Network.BlinksPerStrike,
		},
		Session: SessionConfig{
			MaxRetries:   cfg.MaxRetries,
			Backoff:      cfg.Broker.Backoff(),
			ClientPrefix: cfg.Broker.ClientPrefix,
		},
		Publish: PublishConfig{
			MaxRetries: cfg.MaxRetries,
			Interval:   cfg.Broker.PublishInterval(),
			Topic:      cfg.Broker.Topic,
		},
	}
}

// Deps are the collaborators of a wake cycle.
type Deps struct {
	ADC       ADC
	Radio     Radio
	Transport Transport
	Board     Board
	// Clock defaults to [SystemClock].
	Clock Clock
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Recorder, if set, receives the cycle summary before power-down.
	Recorder Recorder
}

// Summary describes a finished wake cycle.
type Summary struct {
	CycleID            string
	Reason             Reason
	Voltage            Voltage
	Payload            string
	Elapsed            time.Duration
	AssociationStrikes int
	BrokerAttempts     int
	BrokerFailures     int
	Publish            PublishRecord
}

// Recorder receives the cycle summary.
type Recorder interface {
	Record(Summary)
}

// Controller sequences one wake cycle and owns all of its state.
type Controller struct {
	cfg       Config
	transport Transport
	clock     Clock
	logger    *slog.Logger
	recorder  Recorder
	cycleID   string

	sampler *Sampler
	assoc   *Associator
	session *Session
	cycle   *PublishCycle
	power   *Power

	started time.Time
	voltage Voltage
	payload string
}

// New creates a Controller. Nothing touches hardware until [Controller.Run]
// or [Controller.Boot].
func New(deps Deps, cfg Config) *Controller {
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	cycleID := newCycleID()
	logger := deps.Logger.With("cycle", cycleID)

	return &Controller{
		cfg:       cfg,
		transport: deps.Transport,
		clock:     deps.Clock,
		logger:    logger,
		recorder:  deps.Recorder,
		cycleID:   cycleID,
		sampler:   NewSampler(deps.ADC, deps.Clock, cfg.Sampler, logger),
		assoc:     NewAssociator(deps.Radio, deps.Board, deps.Clock, cfg.Associator, logger),
		session:   NewSession(deps.Transport, deps.Clock, cfg.Session, logger),
		power:     NewPower(deps.Board, logger),
	}
}

func newCycleID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// CycleID returns the identifier attached to every log line of this
// cycle.
func (c *Controller) CycleID() string {
	return c.cycleID
}

// Run executes the whole wake cycle and returns why it ended. Every
// path out of Run goes through [Power.Shutdown] exactly once.
// Cancelling ctx ends the tick loop with [ReasonInterrupted]; it does
// not interrupt a retry loop that is already running.
func (c *Controller) Run(ctx context.Context) Reason {
	reason := c.run(ctx)
	c.finish(reason)
	return reason
}

func (c *Controller) run(ctx context.Context) Reason {
	if o := c.Boot(); o.IsShutdown() {
		return o.Reason()
	}
	for {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("wake cycle interrupted", "error", err)
			return ReasonInterrupted
		}
		if o := c.Tick(c.clock.Now()); o.IsShutdown() {
			return o.Reason()
		}
	}
}

// Boot latches power, measures, associates, opens the broker session
// and makes the first publish attempt. Association strictly precedes
// the broker handshake, which strictly precedes any publish attempt.
func (c *Controller) Boot() Outcome {
	c.started = c.clock.Now()
	c.power.Latch()
	c.logger.Info("wake cycle started", "version", buildinfo.Version)

	c.voltage = c.sampler.Sample()
	c.payload = c.voltage.Payload(c.cfg.PayloadWidth)
	c.logger.Info("supply voltage measured",
		"volts", float64(c.voltage),
		"payload", c.payload,
	)
	c.cycle = NewPublishCycle(c.transport, []byte(c.payload), c.cfg.Publish, c.logger)

	if o := c.assoc.Associate(c.cfg.SSID, c.cfg.Passphrase); o.IsShutdown() {
		return o
	}
	c.assoc.Report()

	c.session.Configure(c.cfg.BrokerHost, c.cfg.BrokerPort)
	if o := c.session.Connect(); o.IsShutdown() {
		return o
	}
	c.session.Report()

	c.cycle.Attempt(c.clock.Now())
	return Continue
}

// Tick runs one iteration of the supervisory loop at now.
func (c *Controller) Tick(now time.Time) Outcome {
	c.transport.Poll()

	if o := c.cycle.Tick(now); o.IsShutdown() {
		return o
	}

	if c.assoc.Check() != Connected {
		c.logger.Error("network link lost")
		if o := c.assoc.Associate(c.cfg.SSID, c.cfg.Passphrase); o.IsShutdown() {
			return o
		}
	}

	if c.session.Check() != Connected {
		c.logger.Error("broker session lost")
		if o := c.session.Connect(); o.IsShutdown() {
			return o
		}
	}

	if c.cycle.Sent() && now.Sub(c.cycle.LastAttempt()) >= c.cfg.IdleTime {
		c.logger.Info("idle window elapsed", "idle", c.cfg.IdleTime)
		return Shutdown(ReasonIdleTimeout)
	}
	return Continue
}

// Summary returns the state of the cycle so far.
func (c *Controller) Summary(reason Reason) Summary {
	attempts, failures := c.session.Attempts()
	s := Summary{
		CycleID:            c.cycleID,
		Reason:             reason,
		Voltage:            c.voltage,
		Payload:            c.payload,
		Elapsed:            c.clock.Now().Sub(c.started),
		AssociationStrikes: c.assoc.TotalStrikes(),
		BrokerAttempts:     attempts,
		BrokerFailures:     failures,
	}
	if c.cycle != nil {
		s.Publish = c.cycle.Record()
	}
	return s
}

func (c *Controller) finish(reason Reason) {
	s := c.Summary(reason)
	if c.recorder != nil {
		c.recorder.Record(s)
	}

	level := slog.LevelInfo
	if reason.Fatal() {
		level = slog.LevelError
	}
	c.logger.Log(context.Background(), level, "wake cycle finished",
		"reason", reason.String(),
		"elapsed", s.Elapsed,
		"published", s.Publish.Succeeded,
		"publish_attempts", s.Publish.Attempts,
	)

	if err := c.transport.Close(); err != nil {
		c.logger.Warn("closing broker session failed", "error", err)
	}
	c.power.Shutdown(reason)
}
