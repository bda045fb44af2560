package runtime

import (
	"fmt"
	"math"

	"github.com/BDNK1/sfnsim/runtime/states"
	"github.com/creasty/defaults"
)

// liveRetrier is a Retrier with defaults applied and an attempt counter. A
// fresh set is built for every state invocation.
type liveRetrier struct {
	Retrier
	attempts int
}

func newLiveRetriers(retry []Retrier) ([]*liveRetrier, error) {
	live := make([]*liveRetrier, 0, len(retry))
	for _, r := range retry {
		lr := &liveRetrier{Retrier: r}
		if err := defaults.Set(&lr.Retrier); err != nil {
			return nil, fmt.Errorf("failed to apply retry defaults: %w", err)
		}
		live = append(live, lr)
	}
	return live, nil
}

// delay returns the wait before the next attempt in seconds.
func (r *liveRetrier) delay(random func() float64) float64 {
	seconds := *r.IntervalSeconds * math.Pow(*r.BackoffRate, float64(r.attempts))
	if r.MaxDelaySeconds != nil {
		seconds = min(seconds, *r.MaxDelaySeconds)
	}
	if r.JitterStrategy == "FULL" && random != nil {
		seconds *= random()
	}
	return seconds
}

// findRetrier returns the first retrier whose ErrorEquals matches name. Only
// the first match is considered, even when it is exhausted.
func findRetrier(retriers []*liveRetrier, name string) *liveRetrier {
	for _, r := range retriers {
		if states.Matches(r.ErrorEquals, name) {
			return r
		}
	}
	return nil
}

// withRetry runs action until it succeeds or no retrier allows another attempt.
// The returned error is always a *states.Error.
func (x *Executor) withRetry(e *Execution, s *State, action func() (any, error)) (any, error) {
	retriers, err := newLiveRetriers(s.Retry)
	if err != nil {
		return nil, states.NewRuntimeError("%v", err)
	}

	for {
		result, err := action()
		if err == nil {
			return result, nil
		}

		stateErr := asStateError(err)
		r := findRetrier(retriers, stateErr.Name)
		if r == nil || r.attempts >= *r.MaxAttempts {
			return nil, stateErr
		}

		wait := r.delay(x.opts.Random)
		r.attempts++
		e.Vars.Context.State.RetryCount++

		x.l.WarnContext(e, fmt.Sprintf("[%d/%d] Retrying state %s after %s in %gs",
			r.attempts, *r.MaxAttempts, e.Vars.Context.State.Name, stateErr.Name, wait),
			"error", stateErr)
		x.telemetry.recordRetry(e, e.Vars.Context.State.Name, stateErr.Name)

		if err := x.opts.Wait(e, wait); err != nil {
			return nil, asStateError(err)
		}
	}
}

// findCatcher returns the first catcher whose ErrorEquals matches name.
func findCatcher(catchers []Catcher, name string) *Catcher {
	for i := range catchers {
		if states.Matches(catchers[i].ErrorEquals, name) {
			return &catchers[i]
		}
	}
	return nil
}

// supervise wraps a Task, Parallel or Map invocation with its Retry and Catch
// blocks. next is the state to go to, which is the catcher's Next when the
// error was caught.
func (x *Executor) supervise(e *Execution, s *State, flow DataFlow, raw any, action func() (any, error)) (output any, next string, err error) {
	output, err = x.withRetry(e, s, action)
	if err == nil {
		return output, s.successor(), nil
	}

	stateErr := asStateError(err)
	c := findCatcher(s.Catch, stateErr.Name)
	if c == nil {
		return nil, "", stateErr
	}

	x.l.InfoContext(e, fmt.Sprintf("Caught %s in state %s, continuing at %s",
		stateErr.Name, e.Vars.Context.State.Name, c.Next))

	output, err = flow.Caught(e, c, raw, stateErr)
	if err != nil {
		return nil, "", asStateError(err)
	}
	return output, c.Next, nil
}
