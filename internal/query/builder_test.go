package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linkscout/citefinder/internal/config"
)

func TestContextTerms(t *testing.T) {
	tests := []struct {
		name    string
		phrase  string
		article string
		want    []string
	}{
		{
			name:    "phrase words and short words excluded",
			phrase:  "diabetes rates",
			article: "The WHO reports rising diabetes rates.",
			want:    []string{"reports", "rising"},
		},
		{
			name:    "frequency then first seen",
			phrase:  "solar",
			article: "Panels cost less. Solar panels need sunlight and panels need cleaning. Sunlight matters.",
			want:    []string{"panels", "need", "sunlight"},
		},
		{
			name:    "phrase not found",
			phrase:  "nuclear",
			article: "Solar panels need sunlight.",
			want:    nil,
		},
		{
			name:    "neighbours only",
			phrase:  "grid",
			article: "Alpha words here. Bravo sentence talks. The grid strains. Charlie follows. Delta distant distant distant.",
			want:    []string{"bravo", "sentence", "talks"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContextTerms(tt.phrase, tt.article))
		})
	}
}

func TestBuildUsesFirstOccurrenceOnly(t *testing.T) {
	article := "Installing an EV charger at home requires permits. " +
		"Electricians handle wiring. " +
		"Unrelated paragraph about gardening tomatoes. " +
		"Zoning boards review applications. " +
		"Public EV charger networks expand nationwide quickly nationwide."

	b := NewBuilder(config.NewDomainPolicy(nil, nil, nil))
	q := b.Build("EV charger", article, nil)

	assert.Equal(t, []string{"installing", "home", "requires"}, q.ContextTerms)
	assert.NotContains(t, q.ContextTerms, "nationwide")
	assert.Equal(t, "EV charger installing home requires", q.Text)
}

func TestBuildExtrasAndExclusions(t *testing.T) {
	b := NewBuilder(config.NewDomainPolicy(nil, []string{"medium.com", "reddit.com"}, nil))
	q := b.Build("  diabetes   rates ", "The WHO reports rising diabetes rates.", []string{"Rising", "public health", " "})

	assert.Equal(t, "diabetes rates", q.Phrase)
	assert.Equal(t, []string{"reports", "rising", "public health"}, q.ContextTerms)
	assert.Equal(t, []string{"medium.com", "reddit.com"}, q.ExcludedDomains)
	assert.Equal(t, "diabetes rates reports rising public health -site:medium.com -site:reddit.com", q.Text)
}

func TestBuildDeterministic(t *testing.T) {
	b := NewBuilder(nil)
	article := "Heat pumps cut bills. Heat pumps work in cold climates with backup heat."
	first := b.Build("heat pumps", article, []string{"hvac"})
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, b.Build("heat pumps", article, []string{"hvac"}))
	}
}
