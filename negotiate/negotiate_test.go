package negotiate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reel-cli/reel/config"
	"github.com/reel-cli/reel/filesystem"
	"github.com/reel-cli/reel/key"
	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/server"
	"github.com/reel-cli/reel/stream"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

type fakeAPI struct {
	resp     *server.PlaybackInfoResponse
	err      error
	requests []*server.PlaybackInfoRequest
}

func (f *fakeAPI) PlaybackInfo(_ context.Context, _ string, req *server.PlaybackInfoRequest) (*server.PlaybackInfoResponse, error) {
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func stereoItem() *media.Item {
	return &media.Item{
		ID: "i1",
		MediaSources: []media.Source{{
			ID: "a",
			Streams: []media.Stream{
				{Index: 0, Type: media.StreamVideo},
				{Index: 1, Type: media.StreamAudio, Channels: 2, IsDefault: true},
				{Index: 2, Type: media.StreamAudio, Channels: 6},
			},
		}},
	}
}

func TestBuildRequest(t *testing.T) {
	Convey("Given a stereo item and a preference against audio copy", t, func() {
		item := stereoItem()
		params := media.NewParams("i1")
		prefs := Preferences{EnableDirectPlay: true, AllowAudioStreamCopy: false}

		Convey("When the request is built", func() {
			req := BuildRequest(item, params, prefs)

			Convey("Then audio stream copy should still be allowed", func() {
				So(req.AllowAudioStreamCopy, ShouldBeTrue)
			})

			Convey("Then video stream copy should always be allowed", func() {
				So(req.AllowVideoStreamCopy, ShouldBeTrue)
			})

			Convey("Then the bitrate should be left to the server", func() {
				So(req.MaxStreamingBitrate, ShouldBeNil)
			})
		})

		Convey("When the surround track is selected", func() {
			params.AudioStreamIndex = 2
			req := BuildRequest(item, params, prefs)

			Convey("Then the preference should apply", func() {
				So(req.AllowAudioStreamCopy, ShouldBeFalse)
				So(*req.AudioStreamIndex, ShouldEqual, 2)
			})
		})

		Convey("When the source names a default audio stream", func() {
			item.MediaSources[0].DefaultAudioStreamIndex = func() *int { i := 2; return &i }()
			req := BuildRequest(item, params, prefs)

			Convey("Then that stream should decide", func() {
				So(req.AllowAudioStreamCopy, ShouldBeFalse)
			})
		})
	})

	Convey("Given a resume position with a track override", t, func() {
		params := media.NewParams("i1")
		params.StartPosition = 125*time.Second + 400*time.Millisecond
		params.SubtitleStreamIndex = 3

		req := BuildRequest(stereoItem(), params, Preferences{})

		Convey("Then the start ticks should still be sent", func() {
			So(req.StartTimeTicks, ShouldEqual, int64(1_254_000_000))
			So(*req.SubtitleStreamIndex, ShouldEqual, 3)
			So(req.AudioStreamIndex, ShouldBeNil)
		})
	})

	Convey("Given bitrate ceilings", t, func() {
		params := media.NewParams("i1")

		Convey("Then the preference ceiling should apply when no explicit one is set", func() {
			req := BuildRequest(stereoItem(), params, Preferences{MaxBitrate: 4_000_000})
			So(*req.MaxStreamingBitrate, ShouldEqual, int64(4_000_000))
		})

		Convey("Then an explicit ceiling should win", func() {
			explicit := int64(1_500_000)
			params.MaxBitrate = &explicit
			req := BuildRequest(stereoItem(), params, Preferences{MaxBitrate: 4_000_000})
			So(*req.MaxStreamingBitrate, ShouldEqual, explicit)
		})
	})
}

func TestPreferencesFromConfig(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		filesystem.SetMemMapFs()
		So(config.Setup(), ShouldBeNil)

		Convey("Then preferences should mirror it", func() {
			viper.Set(key.PlaybackMaxBitrate, 3_000_000)
			prefs := PreferencesFromConfig()
			So(prefs.EnableDirectPlay, ShouldBeTrue)
			So(prefs.AllowAudioStreamCopy, ShouldBeTrue)
			So(prefs.MaxBitrate, ShouldEqual, int64(3_000_000))
		})
	})
}

func testBuilder() stream.Builder {
	return stream.Builder{BaseURL: "https://media.local", DeviceID: "dev1"}
}

func TestNegotiate(t *testing.T) {
	Convey("Given a server offering a direct play source", t, func() {
		api := &fakeAPI{resp: &server.PlaybackInfoResponse{
			PlaySessionID: "ps1",
			MediaSources: []media.Source{
				{ID: "t", SupportsTranscoding: true},
				{ID: "a", SupportsDirectPlay: true},
			},
		}}
		n := New(api, testBuilder(), Preferences{EnableDirectPlay: true}, "u1")
		params := media.NewParams("i1")
		params.StartPosition = 600 * time.Second

		Convey("When negotiating", func() {
			res, err := n.Negotiate(context.Background(), stereoItem(), params)

			Convey("Then the play session should be captured", func() {
				So(err, ShouldBeNil)
				So(res.PlaySessionID, ShouldEqual, "ps1")
				So(params.PlaySessionID, ShouldEqual, "ps1")
			})

			Convey("Then the direct play source should be chosen", func() {
				So(res.Source.ID, ShouldEqual, "a")
				So(res.Playback.Method, ShouldEqual, server.DirectPlay)
				So(res.Playback.URL, ShouldContainSubstring, "playSessionId=ps1")
			})

			Convey("Then the resume target should be carried without client fallback", func() {
				So(res.ResumeTarget, ShouldEqual, 600*time.Second)
				So(res.ClientFallback, ShouldBeFalse)
				So(api.requests[0].UserID, ShouldEqual, "u1")
			})
		})

		Convey("When an explicit source is requested", func() {
			params.MediaSourceID = "t"
			res, err := n.Negotiate(context.Background(), stereoItem(), params)

			Convey("Then it should be honored", func() {
				So(err, ShouldBeNil)
				So(res.Source.ID, ShouldEqual, "t")
			})
		})

		Convey("When a track override is combined with resume", func() {
			params.AudioStreamIndex = 1
			res, err := n.Negotiate(context.Background(), stereoItem(), params)

			Convey("Then client fallback should be retained", func() {
				So(err, ShouldBeNil)
				So(res.ClientFallback, ShouldBeTrue)
				So(res.Request.StartTimeTicks, ShouldEqual, media.Ticks(600*time.Second))
			})
		})
	})

	Convey("Given a server returning no sources", t, func() {
		api := &fakeAPI{resp: &server.PlaybackInfoResponse{PlaySessionID: "ps1"}}
		n := New(api, testBuilder(), Preferences{}, "")

		Convey("Then negotiation should fail with no playable source", func() {
			_, err := n.Negotiate(context.Background(), stereoItem(), media.NewParams("i1"))
			So(errors.Is(err, media.ErrNoPlayableSource), ShouldBeTrue)
		})
	})

	Convey("Given a server returning an error code", t, func() {
		api := &fakeAPI{resp: &server.PlaybackInfoResponse{ErrorCode: "NotAllowed"}}
		n := New(api, testBuilder(), Preferences{}, "")

		Convey("Then negotiation should fail with no playable source", func() {
			_, err := n.Negotiate(context.Background(), stereoItem(), media.NewParams("i1"))
			So(errors.Is(err, media.ErrNoPlayableSource), ShouldBeTrue)
		})
	})

	Convey("Given a transport failure", t, func() {
		api := &fakeAPI{err: errors.New("connection reset")}
		n := New(api, testBuilder(), Preferences{}, "")

		Convey("Then negotiation should fail with a transient engine error", func() {
			_, err := n.Negotiate(context.Background(), stereoItem(), media.NewParams("i1"))
			So(errors.Is(err, media.ErrEngineTransient), ShouldBeTrue)
			So(err.Error(), ShouldNotContainSubstring, "connection reset")
		})
	})
}

func TestResultReport(t *testing.T) {
	Convey("Given a negotiation result", t, func() {
		res := &Result{
			PlaySessionID: "ps1",
			Source:        media.Source{ID: "a"},
			Playback:      &stream.Playback{Method: server.Transcode},
		}
		params := media.NewParams("i1")
		params.SubtitleStreamIndex = 2

		Convey("Then reports should carry the session identity and true position", func() {
			r := res.Report(params, 90*time.Second, true)
			So(r.ItemID, ShouldEqual, "i1")
			So(r.MediaSourceID, ShouldEqual, "a")
			So(r.PlaySessionID, ShouldEqual, "ps1")
			So(r.PositionTicks, ShouldEqual, media.Ticks(90*time.Second))
			So(r.IsPaused, ShouldBeTrue)
			So(r.PlayMethod, ShouldEqual, server.Transcode)
			So(*r.SubtitleStreamIndex, ShouldEqual, 2)
			So(r.AudioStreamIndex, ShouldBeNil)
		})
	})
}
