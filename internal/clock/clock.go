// Package clock abstracts wall-clock reads so time-driven rules can be tested.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type system struct{}

func (system) Now() time.Time { return time.Now() }

// System returns the process wall clock.
func System() Clock { return system{} }

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }
