// Package media defines the domain model shared by negotiation, source selection and resume:
// items, the media sources a server offers for them, and the caller-owned playback parameters.
package media

import (
	"time"
)

// NoIndex marks an unset audio or subtitle stream override.
const NoIndex = -1

// StreamType distinguishes the kinds of elementary streams inside a source.
type StreamType string

const (
	StreamVideo    StreamType = "Video"
	StreamAudio    StreamType = "Audio"
	StreamSubtitle StreamType = "Subtitle"
)

// Stream is one audio, video or subtitle track of a source.
type Stream struct {
	Index        int        `json:"Index"`
	Type         StreamType `json:"Type"`
	Codec        string     `json:"Codec,omitempty"`
	Language     string     `json:"Language,omitempty"`
	Title        string     `json:"Title,omitempty"`
	DisplayTitle string     `json:"DisplayTitle,omitempty"`
	Channels     int        `json:"Channels,omitempty"`
	BitRate      int64      `json:"BitRate,omitempty"`
	IsDefault    bool       `json:"IsDefault,omitempty"`
	IsExternal   bool       `json:"IsExternal,omitempty"`
}

// String returns the most descriptive label available for the stream.
func (s Stream) String() string {
	switch {
	case s.DisplayTitle != "":
		return s.DisplayTitle
	case s.Title != "":
		return s.Title
	case s.Language != "":
		return s.Language
	default:
		return string(s.Type)
	}
}

// Source is a media source descriptor as returned by a negotiation.
// It is immutable once returned; a new negotiation produces new descriptors.
type Source struct {
	ID                   string `json:"Id"`
	Name                 string `json:"Name,omitempty"`
	Container            string `json:"Container,omitempty"`
	Bitrate              int64  `json:"Bitrate,omitempty"`
	RunTimeTicks         int64  `json:"RunTimeTicks,omitempty"`
	SupportsDirectPlay   bool   `json:"SupportsDirectPlay"`
	SupportsDirectStream bool   `json:"SupportsDirectStream"`
	SupportsTranscoding  bool   `json:"SupportsTranscoding"`

	// TranscodingURL is a server-issued path that already carries every query parameter it needs.
	TranscodingURL         string `json:"TranscodingUrl,omitempty"`
	TranscodingSubProtocol string `json:"TranscodingSubProtocol,omitempty"`
	TranscodingContainer   string `json:"TranscodingContainer,omitempty"`

	// DirectStreamURL is a server-issued path serving the original file without re-encoding.
	DirectStreamURL string `json:"DirectStreamUrl,omitempty"`

	Streams                    []Stream `json:"MediaStreams,omitempty"`
	DefaultAudioStreamIndex    *int     `json:"DefaultAudioStreamIndex,omitempty"`
	DefaultSubtitleStreamIndex *int     `json:"DefaultSubtitleStreamIndex,omitempty"`
}

// RunTime returns the natural duration the server reports for the source.
func (s *Source) RunTime() time.Duration {
	return FromTicks(s.RunTimeTicks)
}

// StreamsOf returns the streams of the given type in server order.
func (s *Source) StreamsOf(t StreamType) []Stream {
	var out []Stream
	for _, st := range s.Streams {
		if st.Type == t {
			out = append(out, st)
		}
	}
	return out
}

// Stream looks up a stream by its server index.
func (s *Source) Stream(index int) (Stream, bool) {
	for _, st := range s.Streams {
		if st.Index == index {
			return st, true
		}
	}
	return Stream{}, false
}

// UserData holds per-user state the server keeps for an item.
type UserData struct {
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks,omitempty"`
	Played                bool  `json:"Played,omitempty"`
}

// Item is a playable library entry.
type Item struct {
	ID           string    `json:"Id"`
	Name         string    `json:"Name"`
	Type         string    `json:"Type,omitempty"`
	MediaType    string    `json:"MediaType,omitempty"`
	RunTimeTicks int64     `json:"RunTimeTicks,omitempty"`
	MediaSources []Source  `json:"MediaSources,omitempty"`
	UserData     *UserData `json:"UserData,omitempty"`
}

// IsAudio reports whether the item streams from the audio endpoints.
func (i *Item) IsAudio() bool {
	return i.MediaType == "Audio" || i.Type == "Audio"
}

// SavedPosition returns the resume position the server stored for the user.
func (i *Item) SavedPosition() time.Duration {
	if i.UserData == nil {
		return 0
	}
	return FromTicks(i.UserData.PlaybackPositionTicks)
}

// Params are the playback request parameters owned by the caller.
// They are mutated only between negotiations; PlaySessionID is assigned by the negotiation response.
type Params struct {
	ItemID              string
	MediaSourceID       string
	AudioStreamIndex    int
	SubtitleStreamIndex int
	StartPosition       time.Duration

	// MaxBitrate is the explicit streaming ceiling in bits per second; nil lets the server adapt.
	MaxBitrate *int64

	PlaySessionID string
}

// NewParams returns parameters for itemID with no track overrides.
func NewParams(itemID string) *Params {
	return &Params{
		ItemID:              itemID,
		AudioStreamIndex:    NoIndex,
		SubtitleStreamIndex: NoIndex,
	}
}

// HasTrackOverride reports whether an audio or subtitle index override is set.
func (p *Params) HasTrackOverride() bool {
	return p.AudioStreamIndex >= 0 || p.SubtitleStreamIndex >= 0
}
