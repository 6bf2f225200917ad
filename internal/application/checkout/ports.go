package checkout

import (
	"context"
	"time"
)

type IDGenerator interface {
	NewID() string
}

// Scheduler hands detached work to the background pool. ScheduleAfter
// defers the task without occupying a worker during the wait, and
// scheduling must not be tied to the cancellation signal of the request
// that triggered it.
type Scheduler interface {
	ScheduleAfter(d time.Duration, t func(ctx context.Context)) error
}
