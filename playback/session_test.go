package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/negotiate"
	"github.com/reel-cli/reel/player"
	"github.com/reel-cli/reel/resume"
	"github.com/reel-cli/reel/server"
	"github.com/reel-cli/reel/stream"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeAPI struct {
	mu       sync.Mutex
	sessions int
	requests []server.PlaybackInfoRequest
	err      error
}

func (f *fakeAPI) PlaybackInfo(_ context.Context, _ string, req *server.PlaybackInfoRequest) (*server.PlaybackInfoResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, *req)
	if f.err != nil {
		return nil, f.err
	}
	f.sessions++
	return &server.PlaybackInfoResponse{
		PlaySessionID: "ps" + string(rune('0'+f.sessions)),
		MediaSources: []media.Source{{
			ID:                 "a",
			Container:          "mkv",
			SupportsDirectPlay: true,
			Streams: []media.Stream{
				{Index: 1, Type: media.StreamAudio, Language: "jpn"},
				{Index: 2, Type: media.StreamAudio, Language: "eng"},
				{Index: 3, Type: media.StreamSubtitle, Language: "eng"},
			},
		}},
	}, nil
}

type fakeReporter struct {
	mu       sync.Mutex
	started  []server.Report
	progress []server.Report
	stopped  []server.Report
	err      error
}

func (f *fakeReporter) ReportStart(_ context.Context, r *server.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, *r)
	return nil
}

func (f *fakeReporter) ReportProgress(_ context.Context, r *server.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, *r)
	return nil
}

func (f *fakeReporter) ReportStopped(_ context.Context, r *server.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.stopped = append(f.stopped, *r)
	return nil
}

func (f *fakeReporter) counts() (started, progress, stopped int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started), len(f.progress), len(f.stopped)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeHistory struct {
	itemID   string
	position time.Duration
	duration time.Duration
}

func (h *fakeHistory) Save(itemID, _ string, position, duration time.Duration) error {
	h.itemID, h.position, h.duration = itemID, position, duration
	return nil
}

type fakeOutbox struct {
	pushed []server.Report
}

func (o *fakeOutbox) Push(r *server.Report) error {
	o.pushed = append(o.pushed, *r)
	return nil
}

type fixture struct {
	api      *fakeAPI
	reporter *fakeReporter
	engine   *player.Mock
	clock    *fakeClock
	history  *fakeHistory
	outbox   *fakeOutbox
	session  *Session
	item     *media.Item
}

func newFixture() *fixture {
	f := &fixture{
		api:      &fakeAPI{},
		reporter: &fakeReporter{},
		engine:   player.NewMock(2 * time.Hour),
		clock:    &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		history:  &fakeHistory{},
		outbox:   &fakeOutbox{},
		item:     &media.Item{ID: "i1", Name: "Movie", RunTimeTicks: media.Ticks(time.Hour)},
	}

	n := negotiate.New(f.api, stream.Builder{BaseURL: "https://media.local", DeviceID: "dev1"}, negotiate.Preferences{EnableDirectPlay: true}, "u1")
	f.session = New(f.engine, n, f.reporter, Options{
		PollInterval:     time.Hour,
		ProgressInterval: 10 * time.Second,
		History:          f.history,
		Outbox:           f.outbox,
		Clock:            f.clock.Now,
		Resume: []resume.Option{resume.WithScheduler(func(_ time.Duration, fn func()) func() {
			fn()
			return func() {}
		})},
	})
	return f
}

// step advances the clock and the engine by d, then polls.
func (f *fixture) step(d time.Duration) {
	f.clock.Add(d)
	f.engine.Advance(d)
	f.session.Tick(context.Background())
}

func TestStart(t *testing.T) {
	Convey("Given a session", t, func() {
		f := newFixture()

		Convey("When starting from the beginning", func() {
			res, err := f.session.Start(context.Background(), f.item, media.NewParams("i1"))

			Convey("Then the source should be opened, reported and played", func() {
				So(err, ShouldBeNil)
				So(res.PlaySessionID, ShouldEqual, "ps1")
				So(f.engine.Opened(), ShouldHaveLength, 1)
				So(f.engine.Opened()[0].Title, ShouldEqual, "Movie")
				So(f.engine.State(), ShouldEqual, player.StatePlaying)

				started, _, _ := f.reporter.counts()
				So(started, ShouldEqual, 1)
				So(f.session.Status().Resume.InProgress, ShouldBeFalse)
			})
		})

		Convey("When starting at 600 seconds on a direct play source", func() {
			params := media.NewParams("i1")
			params.StartPosition = 600 * time.Second
			_, err := f.session.Start(context.Background(), f.item, params)
			So(err, ShouldBeNil)
			So(f.session.Status().Resume.InProgress, ShouldBeTrue)

			for i := 0; i < 5 && f.session.Status().Resume.InProgress; i++ {
				f.step(time.Second)
			}

			Convey("Then the engine should be seeked once and the resume should succeed", func() {
				So(f.engine.Seeks(), ShouldResemble, []time.Duration{600 * time.Second})
				status := f.session.Status()
				So(status.Resume.InProgress, ShouldBeFalse)
				So(status.Resume.State, ShouldEqual, resume.Succeeded)
				So(status.ResumeErr, ShouldBeNil)
				So(status.Position, ShouldBeGreaterThanOrEqualTo, 600*time.Second)
			})

			Convey("Then the negotiation should carry the start ticks", func() {
				So(f.api.requests[0].StartTimeTicks, ShouldEqual, media.Ticks(600*time.Second))
			})
		})

		Convey("When starting again while the first session is active", func() {
			_, err := f.session.Start(context.Background(), f.item, media.NewParams("i1"))
			So(err, ShouldBeNil)
			f.engine.SetPosition(5 * time.Minute)

			res, err := f.session.Start(context.Background(), f.item, media.NewParams("i1"))

			Convey("Then the first server session should be reported stopped", func() {
				So(err, ShouldBeNil)
				So(res.PlaySessionID, ShouldEqual, "ps2")

				started, _, stopped := f.reporter.counts()
				So(started, ShouldEqual, 2)
				So(stopped, ShouldEqual, 1)
				So(f.reporter.stopped[0].PlaySessionID, ShouldEqual, "ps1")
				So(f.reporter.stopped[0].PositionTicks, ShouldEqual, media.Ticks(5*time.Minute))
				So(f.session.Status().PlaySessionID, ShouldEqual, "ps2")
			})
		})

		Convey("When the negotiation fails", func() {
			f.api.err = errors.New("connection refused")
			_, err := f.session.Start(context.Background(), f.item, media.NewParams("i1"))

			Convey("Then nothing should be opened", func() {
				So(errors.Is(err, media.ErrEngineTransient), ShouldBeTrue)
				So(f.engine.Opened(), ShouldBeEmpty)
				So(f.session.Status().Active, ShouldBeFalse)
			})
		})
	})
}

func TestProgress(t *testing.T) {
	Convey("Given a playing session", t, func() {
		f := newFixture()
		_, err := f.session.Start(context.Background(), f.item, media.NewParams("i1"))
		So(err, ShouldBeNil)

		Convey("When less than the progress interval passes", func() {
			f.step(5 * time.Second)

			Convey("Then no progress should be reported", func() {
				_, progress, _ := f.reporter.counts()
				So(progress, ShouldEqual, 0)
			})
		})

		Convey("When the progress interval passes", func() {
			f.step(5 * time.Second)
			f.step(5 * time.Second)

			Convey("Then the true position should be reported", func() {
				_, progress, _ := f.reporter.counts()
				So(progress, ShouldEqual, 1)
				So(f.reporter.progress[0].PositionTicks, ShouldEqual, media.Ticks(10*time.Second))
				So(f.reporter.progress[0].PlaySessionID, ShouldEqual, "ps1")
				So(f.reporter.progress[0].PlayMethod, ShouldEqual, server.DirectPlay)
			})
		})
	})
}

func TestControls(t *testing.T) {
	Convey("Controls before start fail", t, func() {
		f := newFixture()
		So(f.session.Seek(time.Second), ShouldEqual, ErrNotStarted)
		So(f.session.TogglePause(), ShouldEqual, ErrNotStarted)
		_, err := f.session.SwitchAudio(context.Background(), 2)
		So(err, ShouldEqual, ErrNotStarted)
		So(f.session.Stop(context.Background()), ShouldBeNil)
	})

	Convey("Given a session resuming at 600 seconds", t, func() {
		f := newFixture()
		params := media.NewParams("i1")
		params.StartPosition = 600 * time.Second
		_, err := f.session.Start(context.Background(), f.item, params)
		So(err, ShouldBeNil)

		Convey("When the audio track changes before the resume lands", func() {
			_, err := f.session.SwitchAudio(context.Background(), 2)

			Convey("Then the restart should keep the resume target", func() {
				So(err, ShouldBeNil)
				So(f.api.requests, ShouldHaveLength, 2)
				So(f.api.requests[1].StartTimeTicks, ShouldEqual, media.Ticks(600*time.Second))

				status := f.session.Status()
				So(status.Resume.InProgress, ShouldBeTrue)
				So(status.Resume.Target, ShouldEqual, 600*time.Second)
			})
		})

		Convey("When the user seeks", func() {
			So(f.session.Seek(42*time.Second), ShouldBeNil)

			Convey("Then the pending resume should be cancelled", func() {
				So(f.session.Status().Resume.InProgress, ShouldBeFalse)
				So(f.engine.Seeks(), ShouldResemble, []time.Duration{42 * time.Second})
				So(f.session.Position(), ShouldEqual, 42*time.Second)
			})

			Convey("And seeking back past the start should clamp to zero", func() {
				So(f.session.SeekBy(-time.Minute), ShouldBeNil)
				So(f.session.Position(), ShouldEqual, time.Duration(0))
			})
		})

		Convey("When toggling pause twice", func() {
			So(f.session.TogglePause(), ShouldBeNil)
			So(f.engine.State(), ShouldEqual, player.StatePaused)
			So(f.session.TogglePause(), ShouldBeNil)

			Convey("Then the engine should be playing again", func() {
				So(f.engine.State(), ShouldEqual, player.StatePlaying)
			})
		})
	})
}

func TestSwitch(t *testing.T) {
	Convey("Given a session at 125 seconds", t, func() {
		f := newFixture()
		_, err := f.session.Start(context.Background(), f.item, media.NewParams("i1"))
		So(err, ShouldBeNil)
		f.engine.SetPosition(125 * time.Second)

		Convey("When switching the audio track", func() {
			res, err := f.session.SwitchAudio(context.Background(), 2)

			Convey("Then a new server session should resume at the same position", func() {
				So(err, ShouldBeNil)
				So(res.Position, ShouldEqual, 125*time.Second)

				status := f.session.Status()
				So(status.PlaySessionID, ShouldEqual, "ps2")
				So(status.Audio, ShouldEqual, 2)
				So(status.Resume.Target, ShouldEqual, 125*time.Second)

				_, _, stopped := f.reporter.counts()
				So(stopped, ShouldEqual, 1)
				So(f.reporter.stopped[0].PlaySessionID, ShouldEqual, "ps1")
			})

			Convey("Then the tracks of the new source should be listed", func() {
				So(f.session.Streams(media.StreamAudio), ShouldHaveLength, 2)
				So(f.session.Streams(media.StreamSubtitle), ShouldHaveLength, 1)
			})
		})

		Convey("When the quality change fails to negotiate", func() {
			f.api.err = errors.New("server gone")
			_, err := f.session.SetMaxBitrate(context.Background(), 4_000_000)

			Convey("Then playback should be stopped", func() {
				So(err, ShouldNotBeNil)
				So(f.session.Status().Active, ShouldBeFalse)
				So(f.engine.State(), ShouldEqual, player.StateNone)
			})
		})

		Convey("When disabling subtitles", func() {
			_, err := f.session.SwitchSubtitle(context.Background(), -1)
			So(err, ShouldBeNil)
			So(f.session.Status().Subtitle, ShouldEqual, media.NoIndex)
		})
	})
}

func TestStop(t *testing.T) {
	Convey("Given a session at 20 minutes", t, func() {
		f := newFixture()
		_, err := f.session.Start(context.Background(), f.item, media.NewParams("i1"))
		So(err, ShouldBeNil)
		f.engine.SetPosition(20 * time.Minute)

		Convey("When stopping", func() {
			So(f.session.Stop(context.Background()), ShouldBeNil)

			Convey("Then the server and history should get the position", func() {
				_, _, stopped := f.reporter.counts()
				So(stopped, ShouldEqual, 1)
				So(f.reporter.stopped[0].PositionTicks, ShouldEqual, media.Ticks(20*time.Minute))
				So(f.history.itemID, ShouldEqual, "i1")
				So(f.history.position, ShouldEqual, 20*time.Minute)
				So(f.history.duration, ShouldEqual, time.Hour)
				So(f.outbox.pushed, ShouldBeEmpty)
				So(f.engine.State(), ShouldEqual, player.StateNone)
			})

			Convey("And stopping again should do nothing", func() {
				So(f.session.Stop(context.Background()), ShouldBeNil)
				_, _, stopped := f.reporter.counts()
				So(stopped, ShouldEqual, 1)
			})
		})

		Convey("When the server rejects the stop report", func() {
			f.reporter.err = errors.New("offline")
			So(f.session.Stop(context.Background()), ShouldBeNil)

			Convey("Then it should be queued in the outbox", func() {
				So(f.outbox.pushed, ShouldHaveLength, 1)
				So(f.outbox.pushed[0].PositionTicks, ShouldEqual, media.Ticks(20*time.Minute))
			})
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running session", t, func() {
		f := newFixture()
		_, err := f.session.Start(context.Background(), f.item, media.NewParams("i1"))
		So(err, ShouldBeNil)

		done := make(chan error, 1)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { done <- f.session.Run(ctx) }()

		Convey("When the media ends", func() {
			f.engine.End()

			Convey("Then Run should return after stopping", func() {
				select {
				case err := <-done:
					So(err, ShouldBeNil)
				case <-time.After(2 * time.Second):
					So("run did not return", ShouldBeEmpty)
				}
				_, _, stopped := f.reporter.counts()
				So(stopped, ShouldEqual, 1)
			})
		})

		Convey("When the context is cancelled", func() {
			cancel()

			Convey("Then Run should stop the session", func() {
				select {
				case err := <-done:
					So(err, ShouldBeNil)
				case <-time.After(2 * time.Second):
					So("run did not return", ShouldBeEmpty)
				}
				So(f.session.Status().Active, ShouldBeFalse)
			})
		})
	})
}
