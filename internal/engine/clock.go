package engine

import "time"

// Clock supplies the wall-clock times recorded in the journal.
// Implemented by the system clock (production) and testutil.FixedClock (tests).
//
// Times never order anything within a run.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
