package wake

import (
	"errors"
	"math"
	"testing"
	"time"
)

func referenceSampler() SamplerConfig {
	return SamplerConfig{
		Samples:   10,
		Settle:    5 * time.Millisecond,
		Reference: 3.3,
		Scale:     1024,
	}
}

func TestSampler_AveragesAndScales(t *testing.T) {
	adc := &fakeADC{raws: []int{700}}
	clock := newFakeClock()
	s := NewSampler(adc, clock, referenceSampler(), discardLogger())

	v := s.Sample()

	want := 700.0 / 1024.0 * 3.3
	if math.Abs(float64(v)-want) > 1e-9 {
		t.Errorf("Sample() = %v, want %v", v, want)
	}
	if got := v.Payload(4); got != "2.25" {
		t.Errorf("Payload(4) = %q, want %q", got, "2.25")
	}
	// One priming read plus ten averaged reads.
	if adc.reads != 11 {
		t.Errorf("ADC reads = %d, want 11", adc.reads)
	}
	if clock.slept != 55*time.Millisecond {
		t.Errorf("slept %v, want 55ms", clock.slept)
	}
}

func TestSampler_DiscardsPrimingRead(t *testing.T) {
	// The first read is an outlier and must not affect the average.
	raws := []int{1023, 512, 512, 512, 512, 512, 512, 512, 512, 512, 512}
	adc := &fakeADC{raws: raws}
	s := NewSampler(adc, newFakeClock(), referenceSampler(), discardLogger())

	v := s.Sample()
	if want := Voltage(1.65); math.Abs(float64(v-want)) > 1e-9 {
		t.Errorf("Sample() = %v, want %v", v, want)
	}
}

func TestSampler_ReadErrorsCountAsZero(t *testing.T) {
	adc := &fakeADC{err: errors.New("no such device")}
	s := NewSampler(adc, newFakeClock(), referenceSampler(), discardLogger())

	v := s.Sample()
	if v != 0 {
		t.Errorf("Sample() = %v, want 0", v)
	}
	if got := v.Payload(4); got != "0.00" {
		t.Errorf("Payload(4) = %q, want %q", got, "0.00")
	}
}

func TestVoltage_Payload(t *testing.T) {
	tests := []struct {
		name  string
		v     Voltage
		width int
		want  string
	}{
		{"truncates not rounds", 2.2558, 4, "2.25"},
		{"whole volts keep decimals", 3.0, 4, "3.00"},
		{"two integer digits lose precision", 12.345, 4, "12.3"},
		{"sign takes a character", -1.25, 4, "-1.2"},
		{"wider buffer", 2.2558, 6, "2.2558"},
		{"zero width disables cut", 1.5, 0, "1.500000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Payload(tt.width); got != tt.want {
				t.Errorf("Payload(%d) = %q, want %q", tt.width, got, tt.want)
			}
		})
	}
}
