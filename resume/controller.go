package resume

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/reel-cli/reel/log"
	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/player"
	"github.com/sirupsen/logrus"
)

// Status is a diagnostic view of the resume machine.
type Status struct {
	InProgress  bool
	State       State
	Attempts    int
	StuckChecks int
	Level       int
	Target      time.Duration
	Offset      time.Duration
}

type outcome struct {
	state    State
	attempts int
	target   time.Duration
	err      error
}

// Controller owns the single active resume attempt of a playback session and issues its actions.
type Controller struct {
	engine   player.Engine
	clock    func() time.Time
	schedule Scheduler

	current atomic.Pointer[Attempt]
	last    atomic.Pointer[outcome]
	offset  atomic.Int64
	item    atomic.Pointer[string]

	// stepping is held while a poll runs; overlapping polls are skipped instead of queued
	stepping sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithScheduler replaces time.AfterFunc for delayed recovery actions.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.schedule = s }
}

// NewController returns a controller driving engine.
func NewController(engine player.Engine, opts ...Option) *Controller {
	c := &Controller{
		engine:   engine,
		clock:    time.Now,
		schedule: afterFunc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin starts a new attempt towards target, abandoning any previous one.
// Nothing is attempted for a non-positive target.
func (c *Controller) Begin(itemID string, target time.Duration, policy Policy) bool {
	c.abandon("superseded", false)
	c.last.Store(nil)
	c.item.Store(&itemID)

	if target <= 0 {
		return false
	}

	c.current.Store(NewAttempt(target, policy))
	c.fields().WithFields(logrus.Fields{
		"target": target,
		"policy": policy.Kind,
	}).Debug("resume pending")
	return true
}

// ApplyPendingResume drives one step and reports whether the resume has succeeded.
// It is safe to call repeatedly; once terminal it only reports the outcome.
func (c *Controller) ApplyPendingResume() bool {
	a := c.current.Load()
	if a == nil {
		last := c.last.Load()
		return last != nil && last.state == Succeeded
	}

	if !c.stepping.TryLock() {
		return false
	}
	defer c.stepping.Unlock()

	snap := player.Capture(c.engine, c.clock())
	before := a.State()
	step := a.Poll(snap)

	// cancelled while polling: the attempt is stale and its actions are dropped
	if c.current.Load() != a {
		return false
	}

	if step.State != before {
		c.fields().WithFields(logrus.Fields{
			"from":     before,
			"to":       step.State,
			"position": snap.Position,
			"engine":   snap.State,
			"attempts": a.Attempts(),
		}).Debug("resume transition")
	}

	if step.ManifestOffset > 0 {
		c.offset.Store(int64(step.ManifestOffset))
		c.fields().WithField("offset", step.ManifestOffset).Info("manifest restarted near target, tracking offset")
	}

	c.run(a, step.Actions)

	if step.State.Terminal() {
		c.finish(a, step)
	}

	return step.State == Succeeded
}

func (c *Controller) run(a *Attempt, actions []Action) {
	if len(actions) == 0 {
		return
	}

	a.acting.Lock()
	defer a.acting.Unlock()

	for _, action := range actions {
		if a.cancelled.Load() {
			return
		}

		switch action.Kind {
		case ActionSeek:
			if err := c.engine.Seek(action.Position); err != nil {
				log.Warnf("resume seek to %s: %v", action.Position, err)
			}
		case ActionPauseResume:
			if err := c.engine.Pause(); err != nil {
				log.Warnf("resume pause: %v", err)
				continue
			}
			scheduled := a.tasks.add(c.schedule, action.Delay, func() {
				if err := c.engine.Play(); err != nil {
					log.Warnf("resume play: %v", err)
				}
			})
			if !scheduled {
				_ = c.engine.Play()
			}
		}
	}
}

func (c *Controller) finish(a *Attempt, step Step) {
	if !c.current.CompareAndSwap(a, nil) {
		return
	}

	c.last.Store(&outcome{
		state:    step.State,
		attempts: a.Attempts(),
		target:   a.Target(),
		err:      step.Err,
	})

	entry := c.fields().WithFields(logrus.Fields{
		"target":   a.Target(),
		"attempts": a.Attempts(),
	})
	if step.State == Failed {
		entry.WithError(step.Err).Warn("resume failed")
	} else {
		entry.Info("resume succeeded")
	}
}

// IsResumeInProgress reports whether an attempt is active.
func (c *Controller) IsResumeInProgress() bool {
	return c.current.Load() != nil
}

// Cancel abandons the pending resume immediately, e.g. because the user seeked.
// A pause issued by recovery is undone so playback is not left suspended.
func (c *Controller) Cancel(reason string) {
	c.abandon(reason, true)
	c.last.Store(nil)
}

// Reset abandons any attempt and clears the manifest offset. Used on stop, item change and restart.
func (c *Controller) Reset() {
	c.abandon("reset", false)
	c.last.Store(nil)
	c.offset.Store(0)
}

func (c *Controller) abandon(reason string, resumePlayback bool) {
	a := c.current.Swap(nil)
	if a == nil {
		return
	}

	a.acting.Lock()
	a.cancelled.Store(true)
	a.acting.Unlock()

	a.clear()
	pending := a.tasks.drain()

	if resumePlayback && pending > 0 {
		_ = c.engine.Play()
	}

	c.fields().WithField("reason", reason).Debug("resume cancelled")
}

// Status reports whether a resume is in progress, its attempts and its target.
func (c *Controller) Status() Status {
	s := Status{Offset: c.ManifestOffset()}

	if a := c.current.Load(); a != nil {
		s.InProgress = true
		s.State = a.State()
		s.Attempts = a.Attempts()
		s.StuckChecks = a.StuckChecks()
		s.Level = a.Level()
		s.Target = a.Target()
		return s
	}

	if last := c.last.Load(); last != nil {
		s.State = last.state
		s.Attempts = last.attempts
		s.Target = last.target
	}
	return s
}

// Err returns the ResumeFailed error of the last attempt, if it failed.
func (c *Controller) Err() error {
	last := c.last.Load()
	if last == nil || last.state != Failed {
		return nil
	}
	return &media.Error{
		Kind:     media.ResumeFailed,
		Op:       "resume",
		ItemID:   c.itemID(),
		Attempts: last.attempts,
		Err:      last.err,
	}
}

// ManifestOffset returns the correction added to engine positions.
func (c *Controller) ManifestOffset() time.Duration {
	return time.Duration(c.offset.Load())
}

// Adjust maps a raw engine position to the true media position.
func (c *Controller) Adjust(raw time.Duration) time.Duration {
	return raw + c.ManifestOffset()
}

// Position returns the true media position of the engine.
func (c *Controller) Position() time.Duration {
	return c.Adjust(c.engine.Position())
}

func (c *Controller) itemID() string {
	if id := c.item.Load(); id != nil {
		return *id
	}
	return ""
}

func (c *Controller) fields() *logrus.Entry {
	return log.Fields(logrus.Fields{"op": "resume", "item": c.itemID()})
}
