//go:build !linux

package hw

import "errors"

func powerOff() error {
	return errors.New("power-off is only supported on linux")
}
