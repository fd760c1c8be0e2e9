// Package restart re-negotiates playback mid-stream when the user changes audio track, subtitle track
// or quality, preserving position and play state across the new server session.
package restart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reel-cli/reel/log"
	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/negotiate"
	"github.com/reel-cli/reel/player"
	"github.com/reel-cli/reel/resume"
	"github.com/reel-cli/reel/server"
	"github.com/sirupsen/logrus"
)

// ErrRestartInProgress is returned when a restart is requested while another is outstanding.
var ErrRestartInProgress = errors.New("restart already in progress")

// Negotiator runs negotiation and source selection.
type Negotiator interface {
	Negotiate(ctx context.Context, item *media.Item, params *media.Params) (*negotiate.Result, error)
}

// Overrides are the changes requested by the user. Nil fields keep the current value;
// a negative index clears the track override and a zero bitrate clears the ceiling.
type Overrides struct {
	AudioStreamIndex    *int
	SubtitleStreamIndex *int
	MaxBitrate          *int64
}

func (o Overrides) apply(params *media.Params) {
	if o.AudioStreamIndex != nil {
		params.AudioStreamIndex = normalizeIndex(*o.AudioStreamIndex)
	}
	if o.SubtitleStreamIndex != nil {
		params.SubtitleStreamIndex = normalizeIndex(*o.SubtitleStreamIndex)
	}
	if o.MaxBitrate != nil {
		if *o.MaxBitrate > 0 {
			bitrate := *o.MaxBitrate
			params.MaxBitrate = &bitrate
		} else {
			params.MaxBitrate = nil
		}
	}
}

func normalizeIndex(i int) int {
	if i < 0 {
		return media.NoIndex
	}
	return i
}

// Session is the playback state a restart replaces.
type Session struct {
	Item    *media.Item
	Params  *media.Params
	Current *negotiate.Result
}

// Result describes a completed restart.
type Result struct {
	Negotiation *negotiate.Result
	Position    time.Duration
	WasPlaying  bool
}

// Coordinator serializes restarts of one playback session.
type Coordinator struct {
	engine     player.Engine
	negotiator Negotiator
	reporter   server.Reporter
	resume     *resume.Controller

	inflight sync.Mutex
}

// New returns a coordinator.
func New(engine player.Engine, negotiator Negotiator, reporter server.Reporter, rc *resume.Controller) *Coordinator {
	return &Coordinator{
		engine:     engine,
		negotiator: negotiator,
		reporter:   reporter,
		resume:     rc,
	}
}

// Restart stops the current server session and engine source, re-negotiates with the overrides
// applied, then reopens at the captured position. A failure leaves playback stopped.
func (c *Coordinator) Restart(ctx context.Context, s Session, reason string, o Overrides) (*Result, error) {
	if !c.inflight.TryLock() {
		return nil, ErrRestartInProgress
	}
	defer c.inflight.Unlock()

	itemID := s.Params.ItemID
	entry := log.Fields(logrus.Fields{"op": "restart", "item": itemID, "reason": reason})

	// a pending resume has not reached its target yet, so the target is the position to keep
	position := c.resume.Position()
	if c.resume.IsResumeInProgress() {
		position = c.resume.Status().Target
	}
	state := c.engine.State()
	wasPlaying := state == player.StatePlaying || state == player.StateBuffering

	if s.Current != nil {
		report := s.Current.Report(s.Params, position, !wasPlaying)
		if err := c.reporter.ReportStopped(ctx, report); err != nil {
			entry.WithError(err).Warn("report stopped before restart")
		}
	}

	if err := c.engine.Stop(); err != nil {
		return nil, c.fail(entry, itemID, fmt.Errorf("stop engine: %w", err))
	}
	c.resume.Reset()

	s.Params.StartPosition = position
	s.Params.PlaySessionID = ""
	o.apply(s.Params)

	res, err := c.negotiator.Negotiate(ctx, s.Item, s.Params)
	if err != nil {
		return nil, c.fail(entry, itemID, err)
	}

	src := player.Source{
		URL:     res.Playback.URL,
		Title:   s.Item.Name,
		Headers: res.Playback.Headers,
	}
	if err := c.engine.Open(ctx, src); err != nil {
		return nil, c.fail(entry, itemID, fmt.Errorf("open: %w", err))
	}
	c.resume.Begin(itemID, position, resume.PolicyFor(res.Playback.Adaptive))

	if err := c.reporter.ReportStart(ctx, res.Report(s.Params, position, !wasPlaying)); err != nil {
		entry.WithError(err).Warn("report start after restart")
	}

	if wasPlaying {
		err = c.engine.Play()
	} else {
		err = c.engine.Pause()
	}
	if err != nil {
		return nil, c.fail(entry, itemID, fmt.Errorf("restore play state: %w", err))
	}

	entry.WithFields(logrus.Fields{
		"position":     position,
		"play_session": res.PlaySessionID,
		"method":       res.Playback.Method,
	}).Info("playback restarted")

	return &Result{Negotiation: res, Position: position, WasPlaying: wasPlaying}, nil
}

// fail stops the engine so it is never left stalled on a stale source, and classifies err.
func (c *Coordinator) fail(entry *logrus.Entry, itemID string, err error) error {
	_ = c.engine.Stop()
	c.resume.Reset()

	entry.WithError(err).Error("restart failed")

	if media.KindOf(err) != 0 {
		return fmt.Errorf("restart: %w", err)
	}
	return media.NewError(media.EngineTransient, "restart", itemID, err)
}
