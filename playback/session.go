// Package playback runs one playback session: it negotiates a source, hands it to the engine,
// drives the resume machine from engine events and a poll timer, reports progress to the server
// and restarts the stream when the user changes tracks or quality.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reel-cli/reel/log"
	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/negotiate"
	"github.com/reel-cli/reel/player"
	"github.com/reel-cli/reel/restart"
	"github.com/reel-cli/reel/resume"
	"github.com/reel-cli/reel/server"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// ErrNotStarted is returned by controls used before Start or after Stop.
var ErrNotStarted = errors.New("no active playback")

// History stores the last position of an item.
type History interface {
	Save(itemID, name string, position, duration time.Duration) error
}

// Outbox keeps stop reports the server did not accept.
type Outbox interface {
	Push(r *server.Report) error
}

// Options tune a Session. Zero intervals fall back to the defaults.
type Options struct {
	PollInterval     time.Duration
	ProgressInterval time.Duration

	History History
	Outbox  Outbox

	Clock  func() time.Time
	Resume []resume.Option
}

const (
	defaultPollInterval     = 250 * time.Millisecond
	defaultProgressInterval = 10 * time.Second
)

// Session is a single playback lifecycle.
type Session struct {
	engine      player.Engine
	negotiator  restart.Negotiator
	reporter    server.Reporter
	resume      *resume.Controller
	coordinator *restart.Coordinator
	opts        Options

	mu           sync.Mutex
	item         *media.Item
	params       *media.Params
	current      *negotiate.Result
	lastProgress time.Time
	resumeErr    error

	restarting atomic.Bool
}

// New returns a session playing through engine.
func New(engine player.Engine, negotiator restart.Negotiator, reporter server.Reporter, opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	rc := resume.NewController(engine, append([]resume.Option{resume.WithClock(opts.Clock)}, opts.Resume...)...)

	return &Session{
		engine:      engine,
		negotiator:  negotiator,
		reporter:    reporter,
		resume:      rc,
		coordinator: restart.New(engine, negotiator, reporter, rc),
		opts:        opts,
	}
}

func (s *Session) fields() *logrus.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := logrus.Fields{"op": "playback"}
	if s.params != nil {
		fields["item"] = s.params.ItemID
	}
	return log.Fields(fields)
}

// Start negotiates item and opens it, resuming at params.StartPosition when positive.
// An active session is stopped first so its server session is closed.
func (s *Session) Start(ctx context.Context, item *media.Item, params *media.Params) (*negotiate.Result, error) {
	if s.active() {
		if err := s.Stop(ctx); err != nil {
			return nil, err
		}
	}
	s.resume.Reset()

	res, err := s.negotiator.Negotiate(ctx, item, params)
	if err != nil {
		return nil, err
	}

	src := player.Source{
		URL:     res.Playback.URL,
		Title:   item.Name,
		Headers: res.Playback.Headers,
	}
	if err := s.engine.Open(ctx, src); err != nil {
		return nil, media.NewError(media.EngineTransient, "open", item.ID, err)
	}

	s.resume.Begin(item.ID, params.StartPosition, resume.PolicyFor(res.Playback.Adaptive))

	s.mu.Lock()
	s.item = item
	s.params = params
	s.current = res
	s.lastProgress = s.opts.Clock()
	s.resumeErr = nil
	s.mu.Unlock()

	if err := s.reporter.ReportStart(ctx, res.Report(params, params.StartPosition, false)); err != nil {
		s.fields().WithError(err).Warn("report start")
	}

	if err := s.engine.Play(); err != nil {
		return nil, media.NewError(media.EngineTransient, "play", item.ID, err)
	}

	return res, nil
}

// Run pumps engine events and the poll timer until the media ends, the engine fails or ctx is done.
// The session is stopped before Run returns.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	events := s.engine.Events()

	for {
		select {
		case <-ctx.Done():
			return s.Stop(context.WithoutCancel(ctx))
		case <-ticker.C:
			s.Tick(ctx)
		case ev, ok := <-events:
			if !ok {
				return s.Stop(context.WithoutCancel(ctx))
			}

			switch ev.Kind {
			case player.EventEnded:
				if s.restarting.Load() {
					continue
				}
				return s.Stop(ctx)
			case player.EventFailed:
				if s.restarting.Load() {
					continue
				}
				itemID := s.itemID()
				_ = s.Stop(ctx)
				return media.NewError(media.EngineTransient, "play", itemID, ev.Err)
			default:
				s.Tick(ctx)
			}
		}
	}
}

// Tick polls the resume machine and sends a progress report when one is due.
func (s *Session) Tick(ctx context.Context) {
	if s.restarting.Load() {
		return
	}

	s.resume.ApplyPendingResume()

	s.mu.Lock()
	var abandoned error
	if s.resumeErr == nil {
		abandoned = s.resume.Err()
		s.resumeErr = abandoned
	}

	current, params := s.current, s.params
	now := s.opts.Clock()
	due := current != nil && now.Sub(s.lastProgress) >= s.opts.ProgressInterval
	if due {
		s.lastProgress = now
	}
	s.mu.Unlock()

	if abandoned != nil {
		s.fields().WithError(abandoned).Warn("resume abandoned, playing from the current position")
	}
	if !due {
		return
	}

	report := current.Report(params, s.resume.Position(), s.engine.State() == player.StatePaused)
	if err := s.reporter.ReportProgress(ctx, report); err != nil {
		s.fields().WithError(err).Debug("report progress")
	}
}

// SwitchAudio restarts the stream with another audio track. A negative index restores the default.
func (s *Session) SwitchAudio(ctx context.Context, index int) (*restart.Result, error) {
	return s.restart(ctx, "audio track", restart.Overrides{AudioStreamIndex: lo.ToPtr(index)})
}

// SwitchSubtitle restarts the stream with another subtitle track. A negative index disables subtitles.
func (s *Session) SwitchSubtitle(ctx context.Context, index int) (*restart.Result, error) {
	return s.restart(ctx, "subtitle track", restart.Overrides{SubtitleStreamIndex: lo.ToPtr(index)})
}

// SetMaxBitrate restarts the stream under a new bitrate ceiling in bits per second. Zero removes it.
func (s *Session) SetMaxBitrate(ctx context.Context, bitrate int64) (*restart.Result, error) {
	return s.restart(ctx, "quality", restart.Overrides{MaxBitrate: lo.ToPtr(bitrate)})
}

func (s *Session) restart(ctx context.Context, reason string, o restart.Overrides) (*restart.Result, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	params := *s.params
	session := restart.Session{Item: s.item, Params: &params, Current: s.current}
	s.mu.Unlock()

	if !s.restarting.CompareAndSwap(false, true) {
		return nil, restart.ErrRestartInProgress
	}
	defer s.restarting.Store(false)

	res, err := s.coordinator.Restart(ctx, session, reason, o)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// the coordinator already closed the server session and stopped the engine
		s.current = nil
		return nil, err
	}

	s.params = &params
	s.current = res.Negotiation
	s.lastProgress = s.opts.Clock()
	s.resumeErr = nil
	return res, nil
}

// Seek moves to an absolute media position, abandoning any pending resume.
func (s *Session) Seek(to time.Duration) error {
	if !s.active() {
		return ErrNotStarted
	}
	if !s.engine.CanSeek() {
		return errors.New("source is not seekable")
	}

	s.resume.Cancel("user seek")

	raw := max(to-s.resume.ManifestOffset(), 0)
	return s.engine.Seek(raw)
}

// SeekBy moves relative to the current media position.
func (s *Session) SeekBy(delta time.Duration) error {
	return s.Seek(max(s.resume.Position()+delta, 0))
}

// TogglePause pauses a playing engine and resumes a paused one.
func (s *Session) TogglePause() error {
	if !s.active() {
		return ErrNotStarted
	}
	if s.engine.State() == player.StatePaused {
		return s.engine.Play()
	}
	if !s.engine.CanPause() {
		return errors.New("source cannot be paused")
	}
	return s.engine.Pause()
}

// Position returns the true media position.
func (s *Session) Position() time.Duration {
	return s.resume.Position()
}

// Stop reports the session as stopped, saves the position and unloads the engine.
// A report the server rejects is queued in the outbox. Stopping twice is a no-op.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	current, params, item := s.current, s.params, s.item
	s.current = nil
	s.mu.Unlock()

	if current == nil {
		return nil
	}

	entry := s.fields()
	position := s.resume.Position()
	duration := s.duration(item)

	report := current.Report(params, position, s.engine.State() == player.StatePaused)
	if err := s.reporter.ReportStopped(ctx, report); err != nil {
		entry.WithError(err).Warn("report stopped")
		if s.opts.Outbox != nil {
			if err := s.opts.Outbox.Push(report); err != nil {
				entry.WithError(err).Error("queue stop report")
			}
		}
	}

	if s.opts.History != nil {
		if err := s.opts.History.Save(params.ItemID, item.Name, position, duration); err != nil {
			entry.WithError(err).Warn("save history")
		}
	}

	err := s.engine.Stop()
	s.resume.Reset()

	entry.WithField("position", position).Info("playback stopped")

	if err != nil {
		return fmt.Errorf("stop engine: %w", err)
	}
	return nil
}

// duration prefers the server's runtime, since adaptive manifests may misreport it.
func (s *Session) duration(item *media.Item) time.Duration {
	if item != nil && item.RunTimeTicks > 0 {
		return media.FromTicks(item.RunTimeTicks)
	}
	return s.resume.Adjust(s.engine.Duration())
}

func (s *Session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

func (s *Session) itemID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params == nil {
		return ""
	}
	return s.params.ItemID
}
