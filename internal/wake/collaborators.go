package wake

import "time"

// ADC reads the raw value of the analog input wired to the battery
// divider.
type ADC interface {
	ReadRaw() (int, error)
}

// Indicator drives the status LED.
type Indicator interface {
	SetIndicator(on bool) error
}

// Board is the power latch hardware: the status LED, the line that
// keeps the node powered after the wake trigger releases, and the
// software halt used when releasing the line does not remove power.
type Board interface {
	Indicator
	SetPowerHold(on bool) error
	// EnterLowPowerHalt stops the node. A zero wake duration halts
	// indefinitely. This node wakes only on its physical trigger and
	// always passes zero.
	EnterLowPowerHalt(wake time.Duration) error
}

// Radio is the wireless association stack.
type Radio interface {
	BeginAssociation(ssid, passphrase string) error
	Associated() bool
	LocalAddress() string
	SignalStrength() (int, error)
	MACAddress() string
}

// Transport is the publish/subscribe client. Calls are synchronous;
// Poll services any pending protocol work. Close ends the session and
// is called once, before the node powers down.
type Transport interface {
	SetEndpoint(host string, port int)
	Connect(clientID string) error
	Connected() bool
	Publish(topic string, payload []byte) error
	Poll()
	LastErrorCode() int
	Close() error
}
