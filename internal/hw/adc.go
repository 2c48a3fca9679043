package hw

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// IIOADC reads one channel of a Linux IIO ADC through sysfs, e.g.
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw. Each read triggers a
// fresh conversion.
type IIOADC struct {
	path string
}

// NewIIOADC returns an ADC reading the raw value file at path.
func NewIIOADC(path string) *IIOADC {
	return &IIOADC{path: path}
}

// ReadRaw returns the raw converter value.
func (a *IIOADC) ReadRaw() (int, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return 0, fmt.Errorf("read adc %s: %w", a.path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse adc %s: %w", a.path, err)
	}
	return v, nil
}
