package ranking

import "sort"

// Select keeps the best link per domain (earliest wins a tie), orders the
// survivors by score descending and returns at most n of them.
func Select(links []ScoredLink, n int) []ScoredLink {
	best := make(map[string]int, len(links))
	kept := make([]ScoredLink, 0, len(links))
	for _, l := range links {
		i, seen := best[l.Domain]
		if !seen {
			best[l.Domain] = len(kept)
			kept = append(kept, l)
			continue
		}
		if l.Score > kept[i].Score {
			kept[i] = l
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	if n >= 0 && len(kept) > n {
		kept = kept[:n]
	}
	return kept
}
