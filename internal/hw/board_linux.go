//go:build linux

package hw

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// ErrHaltDisabled is returned by EnterLowPowerHalt when the power-off
// fallback is switched off in the configuration.
var ErrHaltDisabled = errors.New("low-power halt disabled")

// BoardConfig names the GPIO lines of the latch board.
type BoardConfig struct {
	Chip          string // e.g. gpiochip0
	IndicatorLine int
	PowerHoldLine int
	// PowerOff enables the kernel power-off in EnterLowPowerHalt.
	PowerOff bool
}

// GPIOBoard drives the status LED and the power hold line through the
// GPIO character device.
type GPIOBoard struct {
	cfg       BoardConfig
	logger    *slog.Logger
	indicator *gpiocdev.Line
	hold      *gpiocdev.Line
}

// NewGPIOBoard requests both lines as outputs. The hold line is
// requested high so the latch holds from the moment the process owns
// it.
func NewGPIOBoard(cfg BoardConfig, logger *slog.Logger) (*GPIOBoard, error) {
	if logger == nil {
		logger = slog.Default()
	}
	hold, err := gpiocdev.RequestLine(cfg.Chip, cfg.PowerHoldLine,
		gpiocdev.AsOutput(1), gpiocdev.WithConsumer("letterbox-hold"))
	if err != nil {
		return nil, fmt.Errorf("request power hold line %s/%d: %w", cfg.Chip, cfg.PowerHoldLine, err)
	}

	indicator, err := gpiocdev.RequestLine(cfg.Chip, cfg.IndicatorLine,
		gpiocdev.AsOutput(0), gpiocdev.WithConsumer("letterbox-led"))
	if err != nil {
		hold.Close()
		return nil, fmt.Errorf("request indicator line %s/%d: %w", cfg.Chip, cfg.IndicatorLine, err)
	}

	return &GPIOBoard{cfg: cfg, logger: logger, indicator: indicator, hold: hold}, nil
}

// SetIndicator switches the status LED.
func (b *GPIOBoard) SetIndicator(on bool) error {
	return b.indicator.SetValue(level(on))
}

// SetPowerHold drives the latch. Releasing it normally removes power
// before the call returns.
func (b *GPIOBoard) SetPowerHold(on bool) error {
	return b.hold.SetValue(level(on))
}

// EnterLowPowerHalt powers the board off. The board has no timed wake
// source; only the physical trigger powers it back on, so wake is
// ignored.
func (b *GPIOBoard) EnterLowPowerHalt(wake time.Duration) error {
	if !b.cfg.PowerOff {
		return ErrHaltDisabled
	}
	b.logger.Info("powering off")
	return powerOff()
}

// Close releases both lines. The hold line keeps its last value only as
// long as the kernel leaves it alone, so Close is for commands that
// never run a wake cycle.
func (b *GPIOBoard) Close() error {
	return errors.Join(b.indicator.Close(), b.hold.Close())
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}
