package wake

// Reason explains why a wake cycle ended.
type Reason int

const (
	// ReasonNone marks an outcome that does not end the cycle.
	ReasonNone Reason = iota
	// ReasonNetworkExhausted means association never succeeded within
	// the strike budget.
	ReasonNetworkExhausted
	// ReasonBrokerExhausted means the broker handshake failed
	// MaxRetries times in a row.
	ReasonBrokerExhausted
	// ReasonPublishExhausted means the report could not be delivered.
	ReasonPublishExhausted
	// ReasonIdleTimeout is the successful end of a cycle: the report was
	// delivered and the idle window has elapsed.
	ReasonIdleTimeout
	// ReasonInterrupted means the process was asked to stop from
	// outside, e.g. SIGTERM while running as a service.
	ReasonInterrupted
)

// String returns the snake_case name used in logs and metrics.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNetworkExhausted:
		return "network_exhausted"
	case ReasonBrokerExhausted:
		return "broker_exhausted"
	case ReasonPublishExhausted:
		return "publish_exhausted"
	case ReasonIdleTimeout:
		return "idle_timeout"
	case ReasonInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Fatal reports whether the reason is a failure path.
func (r Reason) Fatal() bool {
	return r != ReasonNone && r != ReasonIdleTimeout
}

// Outcome is the result of one step of the lifecycle: either continue,
// or shut down for a reason. The zero value is [Continue].
type Outcome struct {
	reason Reason
}

// Continue lets the cycle proceed.
var Continue = Outcome{}

// Shutdown ends the cycle for the given reason.
func Shutdown(r Reason) Outcome {
	return Outcome{reason: r}
}

// IsShutdown reports whether the outcome ends the cycle.
func (o Outcome) IsShutdown() bool {
	return o.reason != ReasonNone
}

// Reason returns why the cycle ends, or [ReasonNone] for [Continue].
func (o Outcome) Reason() Reason {
	return o.reason
}

func (o Outcome) String() string {
	if !o.IsShutdown() {
		return "continue"
	}
	return "shutdown(" + o.reason.String() + ")"
}

// LinkState is the observed state of the radio link or the broker
// session.
type LinkState int

const (
	Disconnected LinkState = iota
	Connecting
	Connected
)

func (s LinkState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Budget is a retry counter paired with a fixed maximum. Each subsystem
// owns its own Budget; the maximum is the policy value they share.
type Budget struct {
	max  int
	used int
}

// NewBudget returns an empty budget allowing max strikes.
func NewBudget(max int) Budget {
	return Budget{max: max}
}

// Strike consumes one unit of the budget.
func (b *Budget) Strike() {
	b.used++
}

// Reset clears the counter after a successful transition.
func (b *Budget) Reset() {
	b.used = 0
}

// Used returns the strikes consumed so far.
func (b *Budget) Used() int {
	return b.used
}

// Max returns the budget ceiling.
func (b *Budget) Max() int {
	return b.max
}

// Exhausted reports whether the counter has reached the maximum.
func (b *Budget) Exhausted() bool {
	return b.used >= b.max
}

// Exceeded reports whether the counter has gone past the maximum.
func (b *Budget) Exceeded() bool {
	return b.used > b.max
}
