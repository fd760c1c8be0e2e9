package stream

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/reel-cli/reel/log"
	"github.com/reel-cli/reel/media"
	"github.com/reel-cli/reel/server"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Playback is a fully built, openable stream.
type Playback struct {
	URL    string
	Method server.PlayMethod

	// Headers authenticate synthesized URLs. Server-issued paths carry their own credential and get none.
	Headers map[string]string

	// Adaptive is set for segmented streams described by a manifest.
	Adaptive bool
}

// Builder turns a chosen source into a Playback. It is a pure function of its fields and inputs.
type Builder struct {
	BaseURL  string
	DeviceID string
	Headers  map[string]string
}

// NewBuilder configures a builder from a server client.
func NewBuilder(c *server.Client) Builder {
	return Builder{
		BaseURL:  c.BaseURL(),
		DeviceID: c.DeviceID(),
		Headers:  c.AuthHeaders(),
	}
}

// Build constructs the playback URL for src.
func (b Builder) Build(src media.Source, item *media.Item, params *media.Params, playSessionID string) (*Playback, error) {
	itemID := params.ItemID
	if item != nil && item.ID != "" {
		itemID = item.ID
	}

	var pb *Playback
	switch {
	case src.TranscodingURL != "":
		raw := appendTrackIndices(b.resolve(src.TranscodingURL), params)
		pb = &Playback{
			URL:      raw,
			Method:   server.Transcode,
			Adaptive: IsAdaptive(src),
		}
	case src.DirectStreamURL != "":
		pb = &Playback{
			URL:    b.resolve(src.DirectStreamURL),
			Method: server.DirectStream,
		}
	default:
		pb = &Playback{
			URL:     b.static(src, item, itemID, params, playSessionID),
			Method:  server.DirectPlay,
			Headers: copyHeaders(b.Headers),
		}
	}

	if err := validate(pb.URL); err != nil {
		return nil, media.NewError(media.InvalidSource, "build stream url", itemID, err)
	}

	log.Fields(logrus.Fields{
		"item":     itemID,
		"source":   src.ID,
		"method":   pb.Method,
		"adaptive": pb.Adaptive,
	}).Debug("stream url built")

	return pb, nil
}

// IsAdaptive reports whether the source is served as a segmented manifest.
func IsAdaptive(src media.Source) bool {
	if strings.EqualFold(src.TranscodingSubProtocol, "hls") {
		return true
	}
	path, _, _ := strings.Cut(src.TranscodingURL, "?")
	return strings.HasSuffix(strings.ToLower(path), ".m3u8")
}

// resolve prefixes a server-issued path with the base URL. The path is otherwise opaque.
func (b Builder) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := strings.TrimRight(b.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (b Builder) static(src media.Source, item *media.Item, itemID string, params *media.Params, playSessionID string) string {
	kind := "Videos"
	if item != nil && item.IsAudio() {
		kind = "Audio"
	}

	query := url.Values{}
	query.Set("static", "true")
	query.Set("mediaSourceId", src.ID)
	if playSessionID != "" {
		query.Set("playSessionId", playSessionID)
	}
	if b.DeviceID != "" {
		query.Set("deviceId", b.DeviceID)
	}
	if params.AudioStreamIndex >= 0 {
		query.Set("audioStreamIndex", strconv.Itoa(params.AudioStreamIndex))
	}
	if params.SubtitleStreamIndex >= 0 {
		query.Set("subtitleStreamIndex", strconv.Itoa(params.SubtitleStreamIndex))
	}

	return fmt.Sprintf("%s/%s/%s/stream?%s", strings.TrimRight(b.BaseURL, "/"), kind, url.PathEscape(itemID), query.Encode())
}

// appendTrackIndices adds index overrides missing from a transcode URL without touching the rest of it.
func appendTrackIndices(raw string, params *media.Params) string {
	present := queryKeys(raw)

	var extra []string
	if params.AudioStreamIndex >= 0 && !present["audiostreamindex"] {
		extra = append(extra, "AudioStreamIndex="+strconv.Itoa(params.AudioStreamIndex))
	}
	if params.SubtitleStreamIndex >= 0 && !present["subtitlestreamindex"] {
		extra = append(extra, "SubtitleStreamIndex="+strconv.Itoa(params.SubtitleStreamIndex))
		if !present["subtitlemethod"] {
			extra = append(extra, "SubtitleMethod=Encode")
		}
	}

	if len(extra) == 0 {
		return raw
	}

	sep := "&"
	switch {
	case !strings.Contains(raw, "?"):
		sep = "?"
	case strings.HasSuffix(raw, "?"), strings.HasSuffix(raw, "&"):
		sep = ""
	}
	return raw + sep + strings.Join(extra, "&")
}

// queryKeys returns the lower-cased parameter names of raw's query string.
func queryKeys(raw string) map[string]bool {
	keys := make(map[string]bool)
	_, query, ok := strings.Cut(raw, "?")
	if !ok {
		return keys
	}
	for _, pair := range strings.Split(query, "&") {
		name, _, _ := strings.Cut(pair, "=")
		if name != "" {
			keys[strings.ToLower(name)] = true
		}
	}
	return keys
}

func validate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("not an absolute url: %q", raw)
	}
	return nil
}

func copyHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	return lo.Assign(h)
}
