package player

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Mock is an in-memory Engine for tests and dry runs. It is safe for concurrent use.
type Mock struct {
	mu       sync.Mutex
	state    State
	position time.Duration
	duration time.Duration
	canPause bool
	canSeek  bool
	closed   bool

	// a server that ignores the requested offset is simulated with honorSeeks off
	honorSeeks bool

	opened []Source
	seeks  []time.Duration
	plays  int
	pauses int
	stops  int

	openErr error
	events  chan Event
}

// NewMock returns a Mock that honors seeks and reports duration d once opened.
func NewMock(d time.Duration) *Mock {
	return &Mock{
		duration:   d,
		canPause:   true,
		canSeek:    true,
		honorSeeks: true,
		events:     make(chan Event, eventBuffer),
	}
}

// FailOpen makes the next Open calls fail with err until reset with nil.
func (m *Mock) FailOpen(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// HonorSeeks toggles whether Seek updates the position.
func (m *Mock) HonorSeeks(honor bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.honorSeeks = honor
}

func (m *Mock) Open(_ context.Context, src Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("engine closed")
	}
	if m.openErr != nil {
		return m.openErr
	}

	m.opened = append(m.opened, src)
	m.position = 0
	m.setState(StateOpening)
	return nil
}

func (m *Mock) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays++
	if m.state != StateNone {
		m.setState(StatePlaying)
	}
	return nil
}

func (m *Mock) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	if m.state != StateNone {
		m.setState(StatePaused)
	}
	return nil
}

func (m *Mock) Seek(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks = append(m.seeks, pos)
	if m.honorSeeks {
		m.position = pos
		emit(m.events, Event{Kind: EventPositionChanged, State: m.state, Position: pos})
	}
	return nil
}

func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.position = 0
	m.setState(StateNone)
	return nil
}

func (m *Mock) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Mock) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *Mock) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mock) CanPause() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canPause
}

func (m *Mock) CanSeek() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canSeek
}

func (m *Mock) Events() <-chan Event {
	return m.events
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.setState(StateNone)
	return nil
}

// SetState forces the reported state, emitting stateChanged (and opened when leaving opening).
func (m *Mock) SetState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateOpening && s != StateOpening && s != StateNone {
		emit(m.events, Event{Kind: EventOpened, State: s, Position: m.position})
	}
	m.setState(s)
}

// SetPosition forces the reported position.
func (m *Mock) SetPosition(pos time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = pos
	emit(m.events, Event{Kind: EventPositionChanged, State: m.state, Position: pos})
}

// SetDuration forces the reported duration.
func (m *Mock) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

// Advance moves the position forward by d when playing.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePlaying {
		return
	}
	m.position += d
	emit(m.events, Event{Kind: EventPositionChanged, State: m.state, Position: m.position})
}

// End simulates the engine reaching the end of the media.
func (m *Mock) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setState(StateNone)
	emit(m.events, Event{Kind: EventEnded, State: StateNone, Position: m.position})
}

// Seeks returns every seek target received, in order.
func (m *Mock) Seeks() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seeks...)
}

// Opened returns every source handed to Open, in order.
func (m *Mock) Opened() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Source(nil), m.opened...)
}

// Calls returns the number of Play, Pause and Stop calls.
func (m *Mock) Calls() (plays, pauses, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plays, m.pauses, m.stops
}

func (m *Mock) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	emit(m.events, Event{Kind: EventStateChanged, State: s, Position: m.position})
}
