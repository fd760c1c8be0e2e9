package cmd

import (
	"testing"
	"time"

	"github.com/reel-cli/reel/config"
	"github.com/reel-cli/reel/key"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseControl(t *testing.T) {
	Convey("Single letter commands parse", t, func() {
		for line, kind := range map[string]controlKind{
			"a":   controlAudio,
			"s":   controlSubtitle,
			"p":   controlPause,
			" i ": controlInfo,
			"X":   controlQuit,
		} {
			c, err := parseControl(line)
			So(err, ShouldBeNil)
			So(c.kind, ShouldEqual, kind)
		}
	})

	Convey("Quality takes kbps", t, func() {
		c, err := parseControl("q 4000")
		So(err, ShouldBeNil)
		So(c.kind, ShouldEqual, controlQuality)
		So(c.amount, ShouldEqual, int64(4_000_000))

		c, err = parseControl("q 0")
		So(err, ShouldBeNil)
		So(c.amount, ShouldEqual, int64(0))

		_, err = parseControl("q")
		So(err, ShouldNotBeNil)
	})

	Convey("Seeks default to ten seconds", t, func() {
		c, err := parseControl("f")
		So(err, ShouldBeNil)
		So(c.kind, ShouldEqual, controlForward)
		So(time.Duration(c.amount), ShouldEqual, 10*time.Second)

		c, err = parseControl("b 30")
		So(err, ShouldBeNil)
		So(c.kind, ShouldEqual, controlBackward)
		So(time.Duration(c.amount), ShouldEqual, 30*time.Second)

		_, err = parseControl("f -3")
		So(err, ShouldNotBeNil)
	})

	Convey("Unknown input is rejected", t, func() {
		_, err := parseControl("")
		So(err, ShouldEqual, errUnknownControl)
		_, err = parseControl("zz")
		So(err, ShouldEqual, errUnknownControl)
	})
}

func TestConfigHelpers(t *testing.T) {
	Convey("Typos suggest the closest key", t, func() {
		So(closestKey("server.ulr"), ShouldEqual, key.ServerURL)
		So(closestKey("playback.max_bitrat"), ShouldEqual, key.PlaybackMaxBitrate)
	})

	Convey("Values are parsed by the default's type", t, func() {
		v, err := parseValue(config.Default[key.PlaybackMaxBitrate], []string{"8000000"})
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 8000000)

		v, err = parseValue(config.Default[key.PlaybackDirectPlay], []string{"false"})
		So(err, ShouldBeNil)
		So(v, ShouldEqual, false)

		v, err = parseValue(config.Default[key.ServerURL], []string{"https://media.local"})
		So(err, ShouldBeNil)
		So(v, ShouldEqual, "https://media.local")

		_, err = parseValue(config.Default[key.ServerTimeout], []string{"soon"})
		So(err, ShouldNotBeNil)
		_, err = parseValue(config.Default[key.ServerTimeout], nil)
		So(err, ShouldNotBeNil)
	})
}

func TestFormatPosition(t *testing.T) {
	Convey("Positions render as clock time", t, func() {
		So(formatPosition(65*time.Second), ShouldEqual, "1:05")
		So(formatPosition(time.Hour+2*time.Minute+3*time.Second), ShouldEqual, "1:02:03")
		So(formatPosition(0), ShouldEqual, "0:00")
	})
}
