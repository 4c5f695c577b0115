package runner

import (
	"context"
	"errors"
	"fmt"
)

// Outcome classifies a single tick of a periodic action.
type Outcome int

const (
	// Performed means the action acted on the page.
	Performed Outcome = iota
	// Skipped means there was nothing to act on. Not an error.
	Skipped
	// Failed means the engine call failed; the next tick still runs.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Performed:
		return "performed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Result struct {
	Outcome Outcome
	Detail  string
	Err     error
}

func Done(detail string) Result {
	return Result{Outcome: Performed, Detail: detail}
}

func Skip(detail string) Result {
	return Result{Outcome: Skipped, Detail: detail}
}

func Fail(err error) Result {
	return Result{Outcome: Failed, Err: err}
}

// Action is the body of one tick.
type Action func(ctx context.Context) Result

func (r Result) cancelled() bool {
	return r.Outcome == Failed && errors.Is(r.Err, context.Canceled)
}
