package clock

import "time"

// Clock supplies the current time. Every temporal comparison in the access
// module goes through a Clock so expiry can be simulated in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns a Clock backed by the wall clock, normalised to UTC.
func System() Clock {
	return systemClock{}
}

// Fixed is a Clock pinned to a settable instant.
type Fixed struct {
	Instant time.Time
}

// NewFixed builds a fixed clock at the given instant.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{Instant: t.UTC()}
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time {
	return f.Instant
}

// Advance moves the pinned instant forward.
func (f *Fixed) Advance(d time.Duration) {
	f.Instant = f.Instant.Add(d)
}
