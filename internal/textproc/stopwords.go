package textproc

// queryStopWords are dropped from sentence context before ranking terms by frequency
var queryStopWords = toSet(
	"the", "and", "with", "that", "from", "your", "have", "will", "this", "more", "such",
	"about", "after", "also", "been", "being", "between", "both", "could", "does", "each",
	"even", "into", "just", "like", "many", "most", "much", "only", "other", "over",
	"same", "should", "some", "than", "their", "them", "then", "there", "these", "they",
	"those", "through", "very", "were", "what", "when", "where", "which", "while", "whose",
	"would", "you", "yours", "our", "ours", "here", "because", "before", "during",
)

// genericTerms are vague nouns and adjectives that make a phrase useless as a
// citation anchor on their own
var genericTerms = toSet(
	"thing", "things", "stuff", "way", "ways", "lot", "lots", "people", "person",
	"important", "good", "best", "better", "great", "new", "nice", "various", "different",
	"example", "examples", "information", "info", "article", "post", "blog", "content",
	"introduction", "conclusion", "overview", "summary", "today", "time", "times",
	"something", "everything", "anything", "someone", "everyone", "many", "several",
	"really", "very", "amazing", "awesome", "key", "tips", "guide", "ultimate",
)

// IsQueryStopWord reports whether w (lower case) carries no search context
func IsQueryStopWord(w string) bool {
	_, ok := queryStopWords[w]
	return ok
}

// IsGenericTerm reports whether w (lower case) is a generic noun or adjective
func IsGenericTerm(w string) bool {
	_, ok := genericTerms[w]
	return ok
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
