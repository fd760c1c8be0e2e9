// Package stream picks the best media source from a negotiation and builds the URL the player opens.
package stream

import (
	"github.com/reel-cli/reel/media"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// SelectBest returns the first direct play capable source, else the first direct stream capable one,
// else the first candidate, which the server is assumed to transcode. Empty input yields none.
func SelectBest(candidates []media.Source) mo.Option[media.Source] {
	if len(candidates) == 0 {
		return mo.None[media.Source]()
	}

	if src, ok := lo.Find(candidates, func(s media.Source) bool { return s.SupportsDirectPlay }); ok {
		return mo.Some(src)
	}

	if src, ok := lo.Find(candidates, func(s media.Source) bool { return s.SupportsDirectStream }); ok {
		return mo.Some(src)
	}

	return mo.Some(candidates[0])
}
