package config

import (
	"testing"

	"github.com/reel-cli/reel/filesystem"
	"github.com/reel-cli/reel/key"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestSetup(t *testing.T) {
	Convey("Config Setup", t, func() {
		Convey("Should initialize without error", func() {
			So(Setup(), ShouldBeNil)
		})

		Convey("Should have default values populated", func() {
			_ = Setup()
			for name := range Default {
				So(viper.IsSet(name), ShouldBeTrue)
			}
			So(viper.GetBool(key.PlaybackDirectPlay), ShouldBeTrue)
			So(viper.GetInt(key.PlaybackMaxBitrate), ShouldEqual, 0)
		})

		Convey("EnvKeyReplacer should convert dots to underscores", func() {
			So(EnvKeyReplacer.Replace("playback.max_bitrate"), ShouldEqual, "playback_max_bitrate")
		})

		Convey("Env names carry the application prefix once", func() {
			f := Default[key.ServerURL]
			So(f.Env(), ShouldEqual, "REEL_SERVER_URL")
		})
	})
}
