package wake

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/nugget/letterbox/internal/config"
)

// Voltage is a supply voltage reading in volts.
type Voltage float64

// Payload renders the reading as ASCII decimal cut to width characters.
// The receiving side parses a fixed four-character field, so readings of
// 10 V and more lose their last digits ("12.34" becomes "12.3") and are
// not rounded.
func (v Voltage) Payload(width int) string {
	s := strconv.FormatFloat(float64(v), 'f', 6, 64)
	if width > 0 && len(s) > width {
		s = s[:width]
	}
	return s
}

// SamplerConfig describes the ADC and the battery divider.
type SamplerConfig struct {
	Samples   int
	Settle    time.Duration
	Reference float64 // volts at full scale
	Scale     int     // ADC counts at full scale
}

// Sampler averages repeated ADC reads into one [Voltage].
type Sampler struct {
	adc    ADC
	clock  Clock
	cfg    SamplerConfig
	logger *slog.Logger
}

// NewSampler creates a Sampler. Samples below 1 are raised to 1.
func NewSampler(adc ADC, clock Clock, cfg SamplerConfig, logger *slog.Logger) *Sampler {
	if cfg.Samples < 1 {
		cfg.Samples = 1
	}
	if cfg.Scale < 1 {
		cfg.Scale = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{adc: adc, clock: clock, cfg: cfg, logger: logger}
}

// Sample takes one discarded priming read, then averages cfg.Samples
// reads spaced by cfg.Settle. Failed reads count as zero; a bad pin
// shows up as a low voltage in the report rather than stopping the
// cycle.
func (s *Sampler) Sample() Voltage {
	s.read()
	s.clock.Sleep(s.cfg.Settle)

	total := 0
	for i := 0; i < s.cfg.Samples; i++ {
		total += s.read()
		s.clock.Sleep(s.cfg.Settle)
	}

	avg := float64(total) / float64(s.cfg.Samples)
	return Voltage(avg / float64(s.cfg.Scale) * s.cfg.Reference)
}

func (s *Sampler) read() int {
	raw, err := s.adc.ReadRaw()
	if err != nil {
		s.logger.Warn("adc read failed", "error", err)
		return 0
	}
	s.logger.Log(context.Background(), config.LevelTrace, "adc read", "raw", raw)
	return raw
}
