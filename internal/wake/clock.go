package wake

import "time"

// Clock supplies time and blocking delays. Production code uses
// [SystemClock]; tests substitute a virtual clock whose Sleep only
// advances Now.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
