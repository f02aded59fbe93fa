// Package clock supplies the injectable time source and the window
// arithmetic used to decide whether publish, submission and Q&A periods
// are active.
package clock

import "time"

// Clock provides the current time. Domain packages take a Clock instead of
// calling time.Now so tests can pin "now".
type Clock interface {
	Now() time.Time
}

// RealClock returns the system time. Use only in cmd/*.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// FuncClock adapts a function to Clock.
type FuncClock func() time.Time

func (f FuncClock) Now() time.Time { return f() }

func NewReal() Clock                   { return RealClock{} }
func NewFixed(t time.Time) Clock       { return FixedClock{T: t} }
func NewFunc(f func() time.Time) Clock { return FuncClock(f) }

var (
	_ Clock = RealClock{}
	_ Clock = FixedClock{}
	_ Clock = FuncClock(nil)
)
