package negotiate

import (
	"context"
	"errors"
	"time"

	"github.com/reel-cli/reel/log"
	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/server"
	"github.com/reel-cli/reel/stream"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// API is the server call a negotiation needs.
type API interface {
	PlaybackInfo(ctx context.Context, itemID string, req *server.PlaybackInfoRequest) (*server.PlaybackInfoResponse, error)
}

// Result is the outcome of one negotiation.
type Result struct {
	PlaySessionID string                      `json:"play_session_id"`
	Source        media.Source                `json:"source"`
	Playback      *stream.Playback            `json:"playback"`
	Request       *server.PlaybackInfoRequest `json:"request"`
	ResumeTarget  time.Duration               `json:"resume_target"`

	// ClientFallback is set when track overrides are combined with a resume position,
	// a combination some servers answer without honoring StartTimeTicks.
	ClientFallback bool `json:"client_fallback"`
}

// Negotiator runs negotiation, source selection and URL building against one server.
type Negotiator struct {
	api     API
	builder stream.Builder
	prefs   Preferences
	userID  string
}

// New returns a negotiator.
func New(api API, builder stream.Builder, prefs Preferences, userID string) *Negotiator {
	return &Negotiator{
		api:     api,
		builder: builder,
		prefs:   prefs,
		userID:  userID,
	}
}

// Negotiate asks the server how to play item and builds the stream for the best source.
// On success params.PlaySessionID holds the server-issued session.
func (n *Negotiator) Negotiate(ctx context.Context, item *media.Item, params *media.Params) (*Result, error) {
	const op = "negotiate"

	req := BuildRequest(item, params, n.prefs)
	req.UserID = n.userID

	resp, err := n.api.PlaybackInfo(ctx, params.ItemID, req)
	if err != nil {
		return nil, media.NewError(media.EngineTransient, op, params.ItemID, err)
	}

	if resp.ErrorCode != "" {
		return nil, media.NewError(media.NoPlayableSource, op, params.ItemID, errors.New(resp.ErrorCode))
	}

	params.PlaySessionID = resp.PlaySessionID

	src, ok := pick(resp.MediaSources, params.MediaSourceID)
	if !ok {
		return nil, media.NewError(media.NoPlayableSource, op, params.ItemID, errors.New("no media sources"))
	}

	pb, err := n.builder.Build(src, item, params, resp.PlaySessionID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		PlaySessionID:  resp.PlaySessionID,
		Source:         src,
		Playback:       pb,
		Request:        req,
		ResumeTarget:   params.StartPosition,
		ClientFallback: params.HasTrackOverride() && params.StartPosition > 0,
	}

	log.Fields(logrus.Fields{
		"item":            params.ItemID,
		"source":          src.ID,
		"method":          pb.Method,
		"play_session":    resp.PlaySessionID,
		"start_ticks":     req.StartTimeTicks,
		"client_fallback": result.ClientFallback,
	}).Info("negotiated playback")

	return result, nil
}

// pick honors an explicit source id when the server returned it, otherwise ranks by capability.
func pick(candidates []media.Source, id string) (media.Source, bool) {
	if id != "" {
		if src, ok := lo.Find(candidates, func(s media.Source) bool { return s.ID == id }); ok {
			return src, true
		}
	}
	return stream.SelectBest(candidates).Get()
}

// Report builds a session report for this negotiation at the given true position.
func (r *Result) Report(params *media.Params, position time.Duration, paused bool) *server.Report {
	report := &server.Report{
		ItemID:        params.ItemID,
		MediaSourceID: r.Source.ID,
		PlaySessionID: r.PlaySessionID,
		PositionTicks: media.Ticks(position),
		IsPaused:      paused,
		CanSeek:       true,
	}

	if r.Playback != nil {
		report.PlayMethod = r.Playback.Method
	}
	if params.AudioStreamIndex >= 0 {
		report.AudioStreamIndex = lo.ToPtr(params.AudioStreamIndex)
	}
	if params.SubtitleStreamIndex >= 0 {
		report.SubtitleStreamIndex = lo.ToPtr(params.SubtitleStreamIndex)
	}
	return report
}
