// Package negotiate builds playback negotiation requests and turns the server's answer into an openable stream.
package negotiate

import (
	"github.com/reel-cli/reel/key"
	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/server"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Preferences are the read-only playback preferences consumed by negotiation.
type Preferences struct {
	EnableDirectPlay     bool
	AllowAudioStreamCopy bool

	// MaxBitrate is the preferred ceiling in bits per second, zero means unset.
	MaxBitrate int64
}

// PreferencesFromConfig reads the playback preferences from the configuration.
func PreferencesFromConfig() Preferences {
	return Preferences{
		EnableDirectPlay:     viper.GetBool(key.PlaybackDirectPlay),
		AllowAudioStreamCopy: viper.GetBool(key.PlaybackAllowAudioStreamCopy),
		MaxBitrate:           viper.GetInt64(key.PlaybackMaxBitrate),
	}
}

// stereoChannels is the largest channel count that is always stream copied.
const stereoChannels = 2

// BuildRequest builds the negotiation body for item.
// The resume position is always sent; servers that ignore it are handled by the resume machine.
func BuildRequest(item *media.Item, params *media.Params, prefs Preferences) *server.PlaybackInfoRequest {
	req := &server.PlaybackInfoRequest{
		MediaSourceID:        params.MediaSourceID,
		StartTimeTicks:       media.Ticks(params.StartPosition),
		EnableDirectPlay:     prefs.EnableDirectPlay,
		EnableDirectStream:   true,
		EnableTranscoding:    true,
		AllowVideoStreamCopy: true,
		AllowAudioStreamCopy: prefs.AllowAudioStreamCopy,
		AutoOpenLiveStream:   true,
	}

	switch {
	case params.MaxBitrate != nil && *params.MaxBitrate > 0:
		req.MaxStreamingBitrate = lo.ToPtr(*params.MaxBitrate)
	case prefs.MaxBitrate > 0:
		req.MaxStreamingBitrate = lo.ToPtr(prefs.MaxBitrate)
	}

	if params.AudioStreamIndex >= 0 {
		req.AudioStreamIndex = lo.ToPtr(params.AudioStreamIndex)
	}
	if params.SubtitleStreamIndex >= 0 {
		req.SubtitleStreamIndex = lo.ToPtr(params.SubtitleStreamIndex)
	}

	if audio, ok := selectedAudio(item, params); ok && audio.Channels > 0 && audio.Channels <= stereoChannels {
		req.AllowAudioStreamCopy = true
	}

	return req
}

// selectedAudio resolves the audio stream the server is expected to play:
// the explicit override, else the source default, else the stream flagged default, else the first one.
func selectedAudio(item *media.Item, params *media.Params) (media.Stream, bool) {
	if item == nil || len(item.MediaSources) == 0 {
		return media.Stream{}, false
	}

	src, ok := lo.Find(item.MediaSources, func(s media.Source) bool { return s.ID == params.MediaSourceID })
	if !ok {
		src = item.MediaSources[0]
	}

	if params.AudioStreamIndex >= 0 {
		return src.Stream(params.AudioStreamIndex)
	}

	if src.DefaultAudioStreamIndex != nil {
		if s, ok := src.Stream(*src.DefaultAudioStreamIndex); ok {
			return s, true
		}
	}

	audio := src.StreamsOf(media.StreamAudio)
	if s, ok := lo.Find(audio, func(s media.Stream) bool { return s.IsDefault }); ok {
		return s, true
	}

	return lo.First(audio)
}
