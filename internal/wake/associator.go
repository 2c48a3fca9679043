package wake

import (
	"context"
	"log/slog"
	"time"

	"github.com/nugget/letterbox/internal/config"
)

// AssociatorConfig controls the association strike windows.
type AssociatorConfig struct {
	MaxRetries int
	// LowPower keeps the status indicator dark.
	LowPower bool
	// BlinkInterval is both the on and the off time of one blink.
	BlinkInterval time.Duration
	// BlinksPerStrike is the number of blinks that make one strike
	// window (10 × 500 ms ≈ 5 s on the reference board).
	BlinksPerStrike int
}

// Associator joins the wireless network, blinking the status indicator
// while it waits.
type Associator struct {
	radio     Radio
	indicator Indicator
	clock     Clock
	cfg       AssociatorConfig
	logger    *slog.Logger

	ssid    string
	state   LinkState
	strikes Budget
	total   int
}

// NewAssociator creates an Associator in the Disconnected state.
func NewAssociator(radio Radio, indicator Indicator, clock Clock, cfg AssociatorConfig, logger *slog.Logger) *Associator {
	if cfg.BlinksPerStrike < 1 {
		cfg.BlinksPerStrike = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Associator{
		radio:     radio,
		indicator: indicator,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		strikes:   NewBudget(cfg.MaxRetries),
	}
}

// Associate starts association and polls until the radio reports the
// link up. Each blink window without a link is one strike; once strikes
// exceed MaxRetries it returns [Shutdown] with
// [ReasonNetworkExhausted]. Every call starts with a fresh budget.
func (a *Associator) Associate(ssid, passphrase string) Outcome {
	a.ssid = ssid
	a.state = Connecting
	a.strikes = NewBudget(a.cfg.MaxRetries)

	a.logger.Info("connecting to network", "ssid", ssid)
	if err := a.radio.BeginAssociation(ssid, passphrase); err != nil {
		a.logger.Warn("begin association failed", "ssid", ssid, "error", err)
	}

	for !a.radio.Associated() {
		a.blinkWindow()
		a.strikes.Strike()
		a.total++
		a.logger.Debug("network not associated yet",
			"ssid", ssid,
			"strike", a.strikes.Used(),
			"max_retries", a.strikes.Max(),
		)

		if a.strikes.Exceeded() {
			a.state = Disconnected
			a.logger.Error("network association failed for good",
				"ssid", ssid,
				"strikes", a.strikes.Used(),
			)
			return Shutdown(ReasonNetworkExhausted)
		}
	}

	a.state = Connected
	if !a.cfg.LowPower {
		a.indicate(true)
	}
	return Continue
}

// blinkWindow runs one strike window of indicator blinks.
func (a *Associator) blinkWindow() {
	for i := 0; i < a.cfg.BlinksPerStrike; i++ {
		if !a.cfg.LowPower {
			a.indicate(true)
		}
		a.clock.Sleep(a.cfg.BlinkInterval)
		a.indicate(false)
		a.clock.Sleep(a.cfg.BlinkInterval)
	}
}

func (a *Associator) indicate(on bool) {
	if err := a.indicator.SetIndicator(on); err != nil {
		a.logger.Log(context.Background(), config.LevelTrace, "indicator write failed", "on", on, "error", err)
	}
}

// Check re-observes the radio. A link that was up and is now gone
// moves the state to Disconnected.
func (a *Associator) Check() LinkState {
	if a.state == Connected && !a.radio.Associated() {
		a.state = Disconnected
	}
	return a.state
}

// State returns the last observed link state.
func (a *Associator) State() LinkState {
	return a.state
}

// Strikes returns the strikes consumed by the current or last call.
func (a *Associator) Strikes() int {
	return a.strikes.Used()
}

// TotalStrikes returns the strikes consumed across every call in this
// wake cycle.
func (a *Associator) TotalStrikes() int {
	return a.total
}

// Report logs the link diagnostics after a successful association.
func (a *Associator) Report() {
	dbm, err := a.radio.SignalStrength()
	attrs := []any{
		"ssid", a.ssid,
		"address", a.radio.LocalAddress(),
		"mac", a.radio.MACAddress(),
	}
	if err != nil {
		attrs = append(attrs, "signal_error", err)
	} else {
		attrs = append(attrs, "signal_dbm", dbm)
	}
	a.logger.Info("network connected", attrs...)
}
