// Pipeline orchestration.
//
// A single Pipeline instance is shared by every POST endpoint; per-endpoint
// behavior is carried in the Submission (contract, rate window, effects).
// The pipeline holds no per-identity locks: two near-simultaneous requests
// for the same identity may both observe the same window count and both be
// admitted. That race is accepted; any uniqueness guarantee for the identity
// row itself belongs to the storage layer (upsert on conflict).
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Activity is the pipeline's view of one persisted prior submission: its
// content fingerprint and timestamp.
type Activity struct {
	Content   string
	CreatedAt time.Time
}

// ActivityStore reads persisted submissions for rate and duplicate checks.
// Lookups are scoped to a record classification (role) so that one side of a
// conversation never throttles the other.
type ActivityStore interface {
	// CountSince returns how many records exist for identity/role with a
	// timestamp at or after since.
	CountSince(ctx context.Context, identity, role string, since time.Time) (int64, error)
	// Latest returns the most recent record for identity/role, or nil when
	// none exists.
	Latest(ctx context.Context, identity, role string) (*Activity, error)
}

// RateWindow is a trailing-window submission quota.
type RateWindow struct {
	Window   time.Duration
	MaxCount int
}

// enabled reports whether the window check should run at all.
func (w RateWindow) enabled() bool { return w.Window > 0 && w.MaxCount > 0 }

// Submission describes one endpoint-shaped request for the pipeline.
type Submission struct {
	// Contract is the endpoint's ordered field contract.
	Contract Contract
	// Body is the decoded JSON object to validate.
	Body map[string]any

	// IdentityField names the payload field that scopes rate and duplicate
	// checks. Empty disables both checks (e.g. contact form submissions).
	IdentityField string
	// ContentField names the payload field fingerprinted by the duplicate
	// guard. Empty disables the content check.
	ContentField string
	// Role is the activity classification the lookups are scoped to.
	Role string

	// Window is the rate quota; a zero value disables the count check.
	Window RateWindow
	// MinInterval is the spam-speed floor; zero disables the check.
	MinInterval time.Duration

	// Effects builds the mandatory and best-effort effect sets from the
	// validated payload. Nil means the submission has no side effects.
	Effects func(p Payload) (mandatory, bestEffort []Effect)
}

// Pipeline runs submissions. Safe for concurrent use.
type Pipeline struct {
	Store ActivityStore
	Coord *Coordinator

	// Now is a test seam; defaults to time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// New constructs a Pipeline with the given bounded effect wait.
func New(store ActivityStore, effectWait time.Duration, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		Store:  store,
		Coord:  &Coordinator{Wait: effectWait, Logger: logger},
		Logger: logger,
	}
}

// Run executes one submission end to end and returns its Outcome.
//
// Ordering is fixed: validation, then the window count, then the duplicate
// guard against the single most recent record, then effects. A store lookup
// failure fails closed (the request is rejected, not waved through), because
// the window guards unbounded downstream cost.
func (pl *Pipeline) Run(ctx context.Context, sub Submission) Outcome {
	payload, rejected := sub.Contract.Validate(sub.Body)
	if rejected != nil {
		return *rejected
	}

	now := pl.now()
	identity := payload.String(sub.IdentityField)

	if identity != "" && pl.Store != nil {
		if sub.Window.enabled() {
			since := now.Add(-sub.Window.Window)
			n, err := pl.Store.CountSince(ctx, identity, sub.Role, since)
			if err != nil {
				pl.Logger.Error().Err(err).Str("identity", identity).Msg("rate window lookup failed; rejecting")
				return Outcome{Status: StatusFailed}
			}
			if n >= int64(sub.Window.MaxCount) {
				return Outcome{Status: StatusRejectedRateLimited}
			}
		}

		if sub.MinInterval > 0 || sub.ContentField != "" {
			last, err := pl.Store.Latest(ctx, identity, sub.Role)
			if err != nil {
				pl.Logger.Error().Err(err).Str("identity", identity).Msg("latest record lookup failed; rejecting")
				return Outcome{Status: StatusFailed}
			}
			if last != nil {
				if sub.ContentField != "" &&
					last.Content == strings.TrimSpace(payload.String(sub.ContentField)) {
					return Outcome{Status: StatusRejectedDuplicate}
				}
				if sub.MinInterval > 0 && now.Sub(last.CreatedAt) < sub.MinInterval {
					return Outcome{Status: StatusRejectedTooFast}
				}
			}
		}
	}

	if sub.Effects == nil {
		return Outcome{Status: StatusAccepted, Payload: payload}
	}

	mandatory, bestEffort := sub.Effects(payload)
	failures := pl.Coord.Execute(ctx, mandatory, bestEffort)
	for _, f := range failures {
		if f.Mandatory {
			pl.Logger.Error().Str("effect", f.Name).Err(f.Err).Msg("mandatory effect failed")
			return Outcome{Status: StatusFailed, Payload: payload, EffectErrors: failures}
		}
	}
	if len(failures) > 0 {
		return Outcome{Status: StatusPartialFailure, Payload: payload, EffectErrors: failures}
	}
	return Outcome{Status: StatusAccepted, Payload: payload}
}

func (pl *Pipeline) now() time.Time {
	if pl.Now != nil {
		return pl.Now()
	}
	return time.Now().UTC()
}
