// Package player defines the playback engine abstraction consumed by the playback session.
// The engine is a black box: it opens a URI-addressable source and reports state, position and duration.
// The primary implementation drives mpv over its JSON-IPC interface.
package player

import (
	"context"
	"fmt"
	"time"
)

// State is the coarse playback state reported by an engine.
type State int

const (
	StateNone State = iota
	StateOpening
	StateBuffering
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "none"
	}
}

// Source is what the engine is asked to open.
type Source struct {
	URL     string
	Title   string
	Headers map[string]string
}

// EventKind identifies engine notifications.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventPositionChanged
	EventOpened
	EventFailed
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "stateChanged"
	case EventPositionChanged:
		return "positionChanged"
	case EventOpened:
		return "opened"
	case EventFailed:
		return "failed"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is a single engine notification.
type Event struct {
	Kind     EventKind
	State    State
	Position time.Duration
	Err      error
}

// Engine encapsulates the capabilities required from a media playback backend.
type Engine interface {
	// Open hands a source to the engine. It returns once the engine accepted the source,
	// not once playback started; progress is reported through State and Events.
	Open(ctx context.Context, src Source) error

	Play() error
	Pause() error

	// Seek moves playback to an absolute position. It does not wait for the seek to finish.
	Seek(pos time.Duration) error

	// Stop unloads the current source but keeps the engine alive for the next Open.
	Stop() error

	Position() time.Duration
	Duration() time.Duration
	State() State
	CanPause() bool
	CanSeek() bool

	// Events delivers notifications. Slow consumers may miss position updates.
	Events() <-chan Event

	// Close terminates the engine and releases its resources.
	Close() error
}

// Snapshot is a point-in-time view of an engine.
type Snapshot struct {
	State    State
	Position time.Duration
	Duration time.Duration
	CanPause bool
	CanSeek  bool
	At       time.Time
}

// Capture reads a snapshot from the engine.
func Capture(e Engine, now time.Time) Snapshot {
	return Snapshot{
		State:    e.State(),
		Position: e.Position(),
		Duration: e.Duration(),
		CanPause: e.CanPause(),
		CanSeek:  e.CanSeek(),
		At:       now,
	}
}

// New returns the engine registered under name.
func New(name, binary string) (Engine, error) {
	switch name {
	case "mpv", "":
		return NewMPV(binary), nil
	default:
		return nil, fmt.Errorf("unknown player: %s", name)
	}
}

const eventBuffer = 64

// emit delivers ev without blocking. Position updates are dropped first when the buffer is full.
func emit(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}

	if ev.Kind == EventPositionChanged {
		return
	}

	// make room for lifecycle events
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
