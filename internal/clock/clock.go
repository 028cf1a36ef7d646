// Package clock supplies the time source stamped onto events and bookings.
package clock

import "time"

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// UTC is the wall clock. Stored timestamps are always UTC.
var UTC Clock = Func(func() time.Time { return time.Now().UTC() })

// At returns a Clock stopped at t.
func At(t time.Time) Clock {
	t = t.UTC()
	return Func(func() time.Time { return t })
}
