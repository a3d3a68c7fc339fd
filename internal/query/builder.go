// Package query turns an accepted phrase into a web search query with
// context terms taken from the article.
package query

import (
	"strings"
	"unicode/utf8"

	"github.com/linkscout/citefinder/internal/config"
	"github.com/linkscout/citefinder/internal/textproc"
)

// MaxContextTerms is the number of terms taken from the article
const MaxContextTerms = 3

// SearchQuery is the query for one phrase
type SearchQuery struct {
	Phrase          string
	ContextTerms    []string // article terms first, then caller extras
	ExcludedDomains []string
	Text            string
}

// Builder builds queries against a fixed domain policy
type Builder struct {
	policy *config.DomainPolicy
}

func NewBuilder(policy *config.DomainPolicy) *Builder {
	if policy == nil {
		policy = config.DefaultDomainPolicy()
	}
	return &Builder{policy: policy}
}

// Build is deterministic in its inputs
func (b *Builder) Build(phrase, article string, extraTerms []string) SearchQuery {
	phrase = strings.Join(strings.Fields(phrase), " ")
	terms := mergeTerms(ContextTerms(phrase, article), extraTerms)
	excluded := b.policy.Blacklist()

	var sb strings.Builder
	sb.WriteString(phrase)
	for _, t := range terms {
		sb.WriteByte(' ')
		sb.WriteString(t)
	}
	for _, d := range excluded {
		sb.WriteString(" -site:")
		sb.WriteString(d)
	}

	return SearchQuery{
		Phrase:          phrase,
		ContextTerms:    terms,
		ExcludedDomains: excluded,
		Text:            strings.TrimSpace(sb.String()),
	}
}

// ContextTerms returns up to MaxContextTerms frequent words from the sentence
// holding the first occurrence of phrase and its neighbours. Frequency ties
// go to the word seen first. No occurrence means no terms.
func ContextTerms(phrase, article string) []string {
	if phrase == "" || article == "" {
		return nil
	}
	sentences := textproc.SplitSentences(article)
	at := -1
	for i, s := range sentences {
		if textproc.ContainsFold(s, phrase) {
			at = i
			break
		}
	}
	if at < 0 {
		return nil
	}

	lo, hi := at-1, at+1
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sentences) {
		hi = len(sentences) - 1
	}
	window := strings.Join(sentences[lo:hi+1], " ")

	lowerPhrase := strings.ToLower(phrase)
	counts := make(map[string]int)
	var order []string
	for _, w := range textproc.Words(window) {
		if utf8.RuneCountInString(w) <= 3 || textproc.IsQueryStopWord(w) || strings.Contains(lowerPhrase, w) {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	// stable selection by count, first-seen breaks ties
	terms := make([]string, 0, MaxContextTerms)
	used := make(map[string]bool, MaxContextTerms)
	for len(terms) < MaxContextTerms {
		best := ""
		for _, w := range order {
			if used[w] {
				continue
			}
			if best == "" || counts[w] > counts[best] {
				best = w
			}
		}
		if best == "" {
			break
		}
		used[best] = true
		terms = append(terms, best)
	}
	return terms
}

// mergeTerms appends extras not already present, ignoring case
func mergeTerms(terms, extras []string) []string {
	out := append([]string(nil), terms...)
	seen := make(map[string]bool, len(terms)+len(extras))
	for _, t := range terms {
		seen[strings.ToLower(t)] = true
	}
	for _, e := range extras {
		e = strings.Join(strings.Fields(e), " ")
		if e == "" || seen[strings.ToLower(e)] {
			continue
		}
		seen[strings.ToLower(e)] = true
		out = append(out, e)
	}
	return out
}
