package ranking

import (
	"math"

	"github.com/linkscout/citefinder/internal/config"
)

// Input is everything a signal may look at for one result. Lookups that
// failed leave the Has* flags false.
type Input struct {
	Index  int // position in the raw result list
	Host   string
	Domain string
	Title  string
	Phrase string

	PageRank    int
	HasPageRank bool

	Similarity    float64
	HasSimilarity bool
}

// Signal is one additive scoring term. Fn must be pure.
type Signal struct {
	Name string
	Fn   func(in Input) float64
}

// DefaultSignals returns the scoring terms in evaluation order
func DefaultSignals(w config.Weights, policy *config.DomainPolicy) []Signal {
	return []Signal{
		{Name: "rank", Fn: RankSignal(w.RankBase)},
		{Name: "tld", Fn: TLDSignal(w.TLDHigh, w.TLDMedium, policy)},
		{Name: "authority", Fn: AuthoritySignal(w.AuthorityMax)},
		{Name: "brand", Fn: BrandSignal(w.Brand, policy)},
		{Name: "semantic", Fn: SemanticSignal(w.SemanticMax)},
	}
}

// RankSignal keeps the search engine's ordering as a prior
func RankSignal(base float64) func(Input) float64 {
	return func(in Input) float64 {
		return base - float64(in.Index)
	}
}

// TLDSignal rewards government and education suffixes (and allow-listed
// authorities such as who.int) with high, and .org with medium.
func TLDSignal(high, medium float64, policy *config.DomainPolicy) func(Input) float64 {
	return func(in Input) float64 {
		labels := suffixLabels(in.Host)
		for _, l := range labels {
			if l == "gov" || l == "edu" {
				return high
			}
		}
		if policy != nil && policy.IsAllowlisted(in.Host) {
			return high
		}
		for _, l := range labels {
			if l == "org" {
				return medium
			}
		}
		return 0
	}
}

// AuthoritySignal scales page_rank_integer (0-10) into [0, scale]
func AuthoritySignal(scale float64) func(Input) float64 {
	return func(in Input) float64 {
		if !in.HasPageRank {
			return 0
		}
		pr := math.Min(math.Max(float64(in.PageRank), 0), 10)
		return pr / 10 * scale
	}
}

func BrandSignal(bonus float64, policy *config.DomainPolicy) func(Input) float64 {
	return func(in Input) float64 {
		if policy != nil && policy.IsBrand(in.Phrase, in.Host) {
			return bonus
		}
		return 0
	}
}

// SemanticSignal scales positive cosine similarity into [0, scale]
func SemanticSignal(scale float64) func(Input) float64 {
	return func(in Input) float64 {
		if !in.HasSimilarity {
			return 0
		}
		return math.Min(math.Max(in.Similarity, 0), 1) * scale
	}
}
