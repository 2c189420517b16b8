// Side-effect coordination.
//
// Effects are partitioned into a mandatory set (persistence) and a
// best-effort set (outbound notifications). All effects run concurrently;
// one effect's failure never prevents the others from being attempted.
// Mandatory failures fail the whole submission. Best-effort failures are
// recorded for diagnostics only, and a slow best-effort effect is cut off
// by a bounded wait rather than holding up the response.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrEffectTimeout marks a best-effort effect that did not finish within the
// coordinator's bounded wait.
var ErrEffectTimeout = errors.New("effect timed out")

// Effect is one independent side effect of an admitted submission.
type Effect struct {
	// Name identifies the effect in logs and diagnostics.
	Name string
	// Run performs the effect. It must honor ctx cancellation.
	Run func(ctx context.Context) error
}

// EffectError records one failed effect for diagnostics.
type EffectError struct {
	Name      string
	Mandatory bool
	Err       error
}

// Coordinator executes effect sets for the pipeline.
type Coordinator struct {
	// Wait bounds how long the coordinator waits for best-effort effects
	// after all mandatory effects have finished. Zero defaults to 10s.
	Wait time.Duration
	// Logger receives best-effort failure diagnostics.
	Logger zerolog.Logger
}

type effectResult struct {
	name string
	err  error
}

// Execute runs the mandatory and best-effort effects concurrently and blocks
// until the mandatory set has finished and the best-effort set has either
// finished or exhausted the bounded wait. It returns every failure observed;
// a best-effort timeout is reported as a failure of that effect.
func (c *Coordinator) Execute(ctx context.Context, mandatory, bestEffort []Effect) []EffectError {
	wait := c.Wait
	if wait <= 0 {
		wait = 10 * time.Second
	}

	mandCh := make(chan effectResult, len(mandatory))
	for _, ef := range mandatory {
		ef := ef
		go func() { mandCh <- effectResult{name: ef.Name, err: ef.Run(ctx)} }()
	}

	bestCh := make(chan effectResult, len(bestEffort))
	pending := make(map[string]struct{}, len(bestEffort))
	for _, ef := range bestEffort {
		ef := ef
		pending[ef.Name] = struct{}{}
		go func() { bestCh <- effectResult{name: ef.Name, err: ef.Run(ctx)} }()
	}

	var failures []EffectError

	// Mandatory effects gate the outcome; wait for every one of them.
	for range mandatory {
		res := <-mandCh
		if res.err != nil {
			failures = append(failures, EffectError{Name: res.name, Mandatory: true, Err: res.err})
		}
	}

	// Best-effort effects get a bounded wait from here on.
	timer := time.NewTimer(wait)
	defer timer.Stop()
collect:
	for len(pending) > 0 {
		select {
		case res := <-bestCh:
			delete(pending, res.name)
			if res.err != nil {
				failures = append(failures, EffectError{Name: res.name, Mandatory: false, Err: res.err})
			}
		case <-timer.C:
			break collect
		}
	}
	// Anything still pending is a best-effort failure; its goroutine drains
	// into the buffered channel and is dropped.
	for name := range pending {
		failures = append(failures, EffectError{Name: name, Mandatory: false, Err: ErrEffectTimeout})
	}

	for _, f := range failures {
		if !f.Mandatory {
			c.Logger.Warn().Str("effect", f.Name).Err(f.Err).Msg("best-effort effect failed")
		}
	}
	return failures
}
