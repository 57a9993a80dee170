package biz

import (
	"sort"
	"strings"

	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/types"
)

// Merge deduplicates candidates by canonical name, unions their feature
// lists, and keeps the score/reason of the highest-scoring candidate in
// each group (ties broken by first-seen order). Output is sorted by score
// descending; equal scores preserve first-merged order. Deterministic for
// a fixed input order, and idempotent.
func Merge(candidates []types.Candidate) []types.Competitor {
	type group struct {
		name     string
		features []string
		seen     map[string]struct{}
		score    int
		reason   string
		order    int
	}

	groups := make(map[string]*group)
	ordered := make([]*group, 0, len(candidates))

	for _, c := range candidates {
		key := types.CanonicalName(c.Name)
		if key == "" {
			continue
		}

		g, ok := groups[key]
		if !ok {
			g = &group{
				name:   strings.TrimSpace(c.Name),
				seen:   make(map[string]struct{}),
				score:  types.ClampScore(c.Score),
				reason: c.Reason,
				order:  len(ordered),
			}
			groups[key] = g
			ordered = append(ordered, g)
		} else if types.ClampScore(c.Score) > g.score {
			g.score = types.ClampScore(c.Score)
			g.reason = c.Reason
		}

		for _, f := range c.Features {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			fkey := strings.ToLower(f)
			if _, dup := g.seen[fkey]; dup {
				continue
			}
			g.seen[fkey] = struct{}{}
			g.features = append(g.features, f)
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].score > ordered[j].score
	})

	competitors := make([]types.Competitor, 0, len(ordered))
	for _, g := range ordered {
		features := g.features
		if features == nil {
			features = []string{}
		}
		competitors = append(competitors, types.Competitor{
			Name:     g.name,
			Features: features,
			Score:    g.score,
			Reason:   g.reason,
		})
	}
	return competitors
}
