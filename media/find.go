package media

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// FindStream resolves a user query such as "jpn" or "commentary" to a stream of the given type.
// Exact language matches win over fuzzy matches on titles, ties go to the lowest rank distance.
func FindStream(streams []Stream, t StreamType, query string) mo.Option[Stream] {
	query = strings.ToLower(strings.TrimSpace(query))
	candidates := lo.Filter(streams, func(s Stream, _ int) bool {
		return s.Type == t
	})

	if query == "" || len(candidates) == 0 {
		return mo.None[Stream]()
	}

	if exact, ok := lo.Find(candidates, func(s Stream) bool {
		return strings.EqualFold(s.Language, query)
	}); ok {
		return mo.Some(exact)
	}

	best, bestRank := Stream{}, -1
	for _, s := range candidates {
		for _, field := range []string{s.Language, s.Title, s.DisplayTitle} {
			if field == "" {
				continue
			}
			rank := fuzzy.RankMatchNormalizedFold(query, field)
			if rank < 0 {
				continue
			}
			if bestRank < 0 || rank < bestRank {
				best, bestRank = s, rank
			}
		}
	}

	if bestRank < 0 {
		return mo.None[Stream]()
	}
	return mo.Some(best)
}
