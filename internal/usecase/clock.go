package usecase

import "time"

// Clock is injected wherever an operation depends on the current time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
