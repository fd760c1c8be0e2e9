// Package resume verifies that the playback engine actually advances from a requested start position,
// recovering from stuck playback and from segmented streams that restart at an inexact offset.
package resume

import "time"

const (
	// StuckTolerance is the minimum advancement between checks that counts as progress.
	StuckTolerance = 500 * time.Millisecond
	// VerifyInterval is the minimum spacing between two verification checks.
	VerifyInterval = time.Second
	// MaxStuckChecks is the number of consecutive non-advancing checks that fail an attempt.
	MaxStuckChecks = 5

	RecoveryPauseDelay = 500 * time.Millisecond
	ForwardStep        = time.Second
	BackwardStep       = 5 * time.Second

	// EndClamp keeps resume seeks this far away from the natural end of the media.
	EndClamp = 10 * time.Second
)

// Kind tags the policy variants.
type Kind int

const (
	Direct Kind = iota
	Adaptive
	AdaptiveFirstAttempt
)

func (k Kind) String() string {
	switch k {
	case Adaptive:
		return "adaptive"
	case AdaptiveFirstAttempt:
		return "adaptive-first-attempt"
	default:
		return "direct"
	}
}

// Policy is the data the state machine consumes to decide tolerances, budgets and allowed recoveries.
type Policy struct {
	Kind        Kind
	MaxAttempts int
	RetryDelay  time.Duration
	Tolerance   time.Duration
	Timeout     time.Duration

	UsesManifestOffset       bool
	RequirePlayingBeforeSeek bool
	AllowsBackwardSeek       bool
}

var (
	DirectPolicy = Policy{
		Kind:        Direct,
		MaxAttempts: 3,
		RetryDelay:  500 * time.Millisecond,
		Tolerance:   2 * time.Second,
		Timeout:     15 * time.Second,
	}

	AdaptivePolicy = Policy{
		Kind:               Adaptive,
		MaxAttempts:        8,
		RetryDelay:         1500 * time.Millisecond,
		Tolerance:          10 * time.Second,
		Timeout:            45 * time.Second,
		UsesManifestOffset: true,
		AllowsBackwardSeek: true,
	}

	// AdaptiveFirstAttemptPolicy keeps a legitimately accurate first seek from being mistaken for a
	// restarted manifest, and waits for the manifest to settle into playing before seeking.
	AdaptiveFirstAttemptPolicy = Policy{
		Kind:                     AdaptiveFirstAttempt,
		MaxAttempts:              8,
		RetryDelay:               1500 * time.Millisecond,
		Tolerance:                10 * time.Second,
		Timeout:                  45 * time.Second,
		RequirePlayingBeforeSeek: true,
		AllowsBackwardSeek:       true,
	}
)

// PolicyFor returns the base policy for a source.
func PolicyFor(adaptive bool) Policy {
	if adaptive {
		return AdaptivePolicy
	}
	return DirectPolicy
}

// ForAttempt returns the variant to apply on the n-th attempt (1-based).
func (p Policy) ForAttempt(n int) Policy {
	switch p.Kind {
	case Adaptive, AdaptiveFirstAttempt:
		if n <= 1 {
			return AdaptiveFirstAttemptPolicy
		}
		return AdaptivePolicy
	default:
		return p
	}
}

// MaxRecoveryLevel is the highest escalation level the policy allows.
func (p Policy) MaxRecoveryLevel() int {
	if p.AllowsBackwardSeek {
		return levelSeekBackward
	}
	return levelSeekForward
}
