//go:build !linux

package hw

import (
	"errors"
	"log/slog"
	"time"
)

// ErrHaltDisabled is returned by EnterLowPowerHalt when the power-off
// fallback is switched off in the configuration.
var ErrHaltDisabled = errors.New("low-power halt disabled")

// BoardConfig names the GPIO lines of the latch board.
type BoardConfig struct {
	Chip          string
	IndicatorLine int
	PowerHoldLine int
	PowerOff      bool
}

// GPIOBoard is only available on linux.
type GPIOBoard struct{}

// NewGPIOBoard always fails off linux; use [Sim] instead.
func NewGPIOBoard(cfg BoardConfig, logger *slog.Logger) (*GPIOBoard, error) {
	return nil, errors.New("gpio board requires linux; set hardware.simulate")
}

func (b *GPIOBoard) SetIndicator(on bool) error                 { return errors.ErrUnsupported }
func (b *GPIOBoard) SetPowerHold(on bool) error                 { return errors.ErrUnsupported }
func (b *GPIOBoard) EnterLowPowerHalt(wake time.Duration) error { return errors.ErrUnsupported }
func (b *GPIOBoard) Close() error                               { return nil }
