package hw

import (
	"log/slog"
	"sync"
	"time"
)

// Sim is an in-memory board and ADC. Every write is logged and kept so
// a dry run can be inspected afterwards.
type Sim struct {
	logger *slog.Logger

	mu        sync.Mutex
	raw       int
	indicator bool
	hold      bool
	halted    bool
	toggles   int
}

// NewSim returns a simulated board whose ADC always reads raw.
func NewSim(raw int, logger *slog.Logger) *Sim {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sim{raw: raw, logger: logger}
}

// ReadRaw returns the configured raw value.
func (s *Sim) ReadRaw() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw, nil
}

// SetIndicator records the LED state.
func (s *Sim) SetIndicator(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indicator != on {
		s.toggles++
	}
	s.indicator = on
	return nil
}

// SetPowerHold records the latch state.
func (s *Sim) SetPowerHold(on bool) error {
	s.mu.Lock()
	s.hold = on
	s.mu.Unlock()
	s.logger.Info("sim power hold", "on", on)
	return nil
}

// EnterLowPowerHalt records the halt. A simulated node keeps running,
// which is exactly the case the halt exists for.
func (s *Sim) EnterLowPowerHalt(wake time.Duration) error {
	s.mu.Lock()
	s.halted = true
	s.mu.Unlock()
	s.logger.Info("sim low-power halt", "wake", wake)
	return nil
}

// State returns the indicator, hold and halt flags and the number of
// indicator transitions.
func (s *Sim) State() (indicator, hold, halted bool, toggles int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indicator, s.hold, s.halted, s.toggles
}
