package resume

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reel-cli/reel/player"
	"github.com/reel-cli/reel/util"
)

// State of a resume attempt.
type State int32

const (
	NotStarted State = iota
	InProgress
	Verifying
	RecoveryNeeded
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "in progress"
	case Verifying:
		return "verifying"
	case RecoveryNeeded:
		return "recovery needed"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "not started"
	}
}

// Terminal reports whether s ends the attempt.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

const (
	levelNone = iota
	levelPauseResume
	levelSeekForward
	levelSeekBackward
)

// ActionKind identifies a side effect requested by a step.
type ActionKind int

const (
	ActionSeek ActionKind = iota
	ActionPauseResume
)

// Action is a fire-and-forget engine command. The machine never waits for it to complete.
type Action struct {
	Kind     ActionKind
	Position time.Duration
	Delay    time.Duration
}

// Step is the outcome of one poll.
type Step struct {
	State   State
	Actions []Action

	// ManifestOffset is set when the poll detected a restarted manifest.
	ManifestOffset time.Duration

	// Err explains a Failed state.
	Err error
}

var (
	errTimeout         = errors.New("timed out waiting for playback to reach the resume position")
	errBudgetExhausted = errors.New("seek retry budget exhausted")
	errStuck           = errors.New("playback did not advance after recovery")
)

// Attempt is the state of one resume attempt. Counters are atomic so diagnostics and cancellation
// may read or clear them while a step is in flight; the remaining fields belong to the polling caller.
type Attempt struct {
	target time.Duration
	policy Policy

	state    atomic.Int32
	attempts atomic.Int32
	stuck    atomic.Int32
	level    atomic.Int32

	// acting is held while actions are issued so cancellation cannot interleave with them
	acting    sync.Mutex
	cancelled atomic.Bool
	tasks     tasks

	started      time.Time
	nextEval     time.Time
	baseline     time.Duration
	lastCheck    time.Time
	seenPlaying  bool
	lastRecovery int
}

// NewAttempt creates an attempt that resumes at target following policy.
func NewAttempt(target time.Duration, policy Policy) *Attempt {
	return &Attempt{target: target, policy: policy}
}

func (a *Attempt) Target() time.Duration { return a.target }
func (a *Attempt) Policy() Policy        { return a.policy }
func (a *Attempt) State() State          { return State(a.state.Load()) }
func (a *Attempt) Attempts() int         { return int(a.attempts.Load()) }
func (a *Attempt) StuckChecks() int      { return int(a.stuck.Load()) }
func (a *Attempt) Level() int            { return int(a.level.Load()) }

func (a *Attempt) set(s State) State {
	a.state.Store(int32(s))
	return s
}

// clear zeroes the retry counters.
func (a *Attempt) clear() {
	a.attempts.Store(0)
	a.stuck.Store(0)
	a.level.Store(0)
}

func (a *Attempt) fail(err error) Step {
	a.set(Failed)
	return Step{State: Failed, Err: err}
}

// Poll advances the machine by one step from an engine snapshot. It never touches the engine;
// the returned actions are for the caller to issue. Polling a terminal attempt has no effect.
func (a *Attempt) Poll(snap player.Snapshot) Step {
	if a.cancelled.Load() {
		return Step{State: a.State()}
	}

	state := a.State()
	if state.Terminal() {
		return Step{State: state}
	}

	now := snap.At
	if state == Verifying && snap.State == player.StatePaused {
		return a.hold(snap)
	}

	if state == NotStarted {
		a.started = now
		state = a.set(InProgress)
	}

	if now.Sub(a.started) > a.policy.Timeout {
		return a.fail(errTimeout)
	}

	if snap.State == player.StatePlaying {
		a.seenPlaying = true
	}

	switch state {
	case InProgress:
		return a.progress(snap)
	default:
		return a.verify(snap)
	}
}

// stable reports whether the engine may be seeked.
func stable(snap player.Snapshot) bool {
	switch snap.State {
	case player.StateNone, player.StateOpening:
		return false
	case player.StateBuffering:
		return snap.Position > 0
	default:
		return true
	}
}

// effectiveTarget clamps the target away from the end of media.
func (a *Attempt) effectiveTarget(duration time.Duration) time.Duration {
	if duration <= 0 || a.target <= duration-EndClamp {
		return a.target
	}
	return util.Max(duration-EndClamp, 0)
}

func (a *Attempt) progress(snap player.Snapshot) Step {
	wait := Step{State: InProgress}

	if !stable(snap) || snap.At.Before(a.nextEval) {
		return wait
	}

	n := a.Attempts() + 1
	policy := a.policy.ForAttempt(n)

	if policy.RequirePlayingBeforeSeek && !a.seenPlaying {
		return wait
	}

	if n > policy.MaxAttempts {
		return a.fail(errBudgetExhausted)
	}
	a.attempts.Add(1)

	target := a.effectiveTarget(snap.Duration)
	diff := snap.Position - target
	if diff < 0 {
		diff = -diff
	}

	if policy.UsesManifestOffset && n >= 2 && snap.State == player.StateBuffering && diff <= policy.Tolerance {
		a.set(Succeeded)
		return Step{
			State:          Succeeded,
			Actions:        []Action{{Kind: ActionSeek, Position: 0}},
			ManifestOffset: snap.Position,
		}
	}

	if diff <= policy.Tolerance {
		a.baseline = snap.Position
		a.lastCheck = snap.At
		return Step{State: a.set(Verifying)}
	}

	a.nextEval = snap.At.Add(policy.RetryDelay)
	if !snap.CanSeek {
		return wait
	}

	return Step{
		State:   InProgress,
		Actions: []Action{{Kind: ActionSeek, Position: target}},
	}
}

// hold keeps a paused engine in verification. A pause is not a stall: the time spent paused does not
// count toward the timeout, and checks restart from the position playback resumes at.
func (a *Attempt) hold(snap player.Snapshot) Step {
	if snap.At.After(a.lastCheck) {
		a.started = a.started.Add(snap.At.Sub(a.lastCheck))
	}
	a.baseline = snap.Position
	a.lastCheck = snap.At
	a.lastRecovery = levelNone
	return Step{State: Verifying}
}

func (a *Attempt) verify(snap player.Snapshot) Step {
	if snap.At.Sub(a.lastCheck) < VerifyInterval {
		return Step{State: Verifying}
	}

	advance := snap.Position - a.baseline
	a.lastCheck = snap.At

	progressed := advance >= StuckTolerance
	if progressed && a.lastRecovery == levelSeekForward && advance < ForwardStep+StuckTolerance {
		// the jump is the recovery seek itself
		progressed = false
	}
	a.lastRecovery = levelNone

	if progressed {
		return Step{State: a.set(Succeeded)}
	}

	stuck := int(a.stuck.Add(1))
	if stuck >= MaxStuckChecks {
		return a.fail(errStuck)
	}

	level := util.Min(stuck, a.policy.MaxRecoveryLevel())
	a.level.Store(int32(level))
	a.baseline = snap.Position

	var actions []Action
	switch level {
	case levelPauseResume:
		if snap.State == player.StatePlaying && snap.CanPause {
			actions = append(actions, Action{Kind: ActionPauseResume, Delay: RecoveryPauseDelay})
		}
	case levelSeekForward:
		if snap.CanSeek {
			actions = append(actions, Action{Kind: ActionSeek, Position: snap.Position + ForwardStep})
		}
	case levelSeekBackward:
		if snap.CanSeek {
			actions = append(actions, Action{Kind: ActionSeek, Position: util.Max(snap.Position-BackwardStep, 0)})
		}
	}

	if len(actions) > 0 {
		a.lastRecovery = level
	}

	// actions are issued by the caller within this poll, the next check verifies them
	a.set(Verifying)
	return Step{State: RecoveryNeeded, Actions: actions}
}
