package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/reel-cli/reel/media"
)

// PlaybackInfoRequest is the negotiation body sent to /Items/{id}/PlaybackInfo.
type PlaybackInfoRequest struct {
	UserID               string `json:"UserId,omitempty"`
	MediaSourceID        string `json:"MediaSourceId,omitempty"`
	MaxStreamingBitrate  *int64 `json:"MaxStreamingBitrate,omitempty" jsonschema:"description=Bits per second ceiling; absent lets the server adapt"`
	StartTimeTicks       int64  `json:"StartTimeTicks"`
	AudioStreamIndex     *int   `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex  *int   `json:"SubtitleStreamIndex,omitempty"`
	EnableDirectPlay     bool   `json:"EnableDirectPlay"`
	EnableDirectStream   bool   `json:"EnableDirectStream"`
	EnableTranscoding    bool   `json:"EnableTranscoding"`
	AllowVideoStreamCopy bool   `json:"AllowVideoStreamCopy"`
	AllowAudioStreamCopy bool   `json:"AllowAudioStreamCopy"`
	AutoOpenLiveStream   bool   `json:"AutoOpenLiveStream"`
}

// PlaybackInfoResponse carries the ranked candidate sources and the new play session.
type PlaybackInfoResponse struct {
	PlaySessionID string         `json:"PlaySessionId"`
	MediaSources  []media.Source `json:"MediaSources"`
	ErrorCode     string         `json:"ErrorCode,omitempty"`
}

// PlaybackInfo negotiates playback of an item.
func (c *Client) PlaybackInfo(ctx context.Context, itemID string, req *PlaybackInfoRequest) (*PlaybackInfoResponse, error) {
	query := url.Values{}
	if c.userID != "" {
		query.Set("userId", c.userID)
	}

	var resp PlaybackInfoResponse
	path := "/Items/" + url.PathEscape(itemID) + "/PlaybackInfo"
	if err := c.do(ctx, "playback info", http.MethodPost, path, query, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PlayMethod is how the server delivers the stream.
type PlayMethod string

const (
	DirectPlay   PlayMethod = "DirectPlay"
	DirectStream PlayMethod = "DirectStream"
	Transcode    PlayMethod = "Transcode"
)

// Report is the body of the playback session lifecycle calls.
type Report struct {
	ItemID              string     `json:"ItemId"`
	MediaSourceID       string     `json:"MediaSourceId"`
	PlaySessionID       string     `json:"PlaySessionId"`
	PositionTicks       int64      `json:"PositionTicks"`
	IsPaused            bool       `json:"IsPaused"`
	CanSeek             bool       `json:"CanSeek"`
	PlayMethod          PlayMethod `json:"PlayMethod,omitempty"`
	AudioStreamIndex    *int       `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex *int       `json:"SubtitleStreamIndex,omitempty"`
}

// Reporter is the session lifecycle subset of the client.
type Reporter interface {
	ReportStart(ctx context.Context, r *Report) error
	ReportProgress(ctx context.Context, r *Report) error
	ReportStopped(ctx context.Context, r *Report) error
}

func (c *Client) ReportStart(ctx context.Context, r *Report) error {
	return c.do(ctx, "report start", http.MethodPost, "/Sessions/Playing", nil, r, nil)
}

func (c *Client) ReportProgress(ctx context.Context, r *Report) error {
	return c.do(ctx, "report progress", http.MethodPost, "/Sessions/Playing/Progress", nil, r, nil)
}

func (c *Client) ReportStopped(ctx context.Context, r *Report) error {
	return c.do(ctx, "report stopped", http.MethodPost, "/Sessions/Playing/Stopped", nil, r, nil)
}
