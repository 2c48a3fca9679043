// Package hw talks to the power latch board: the status LED and the
// power hold line on a GPIO character device, the battery divider on an
// IIO ADC channel, and the kernel power-off used as the last resort
// when releasing the hold line leaves the board running.
//
// [Sim] stands in for the board and the ADC on a workstation.
package hw
