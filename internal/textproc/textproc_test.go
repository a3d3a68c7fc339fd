package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"basic", "One. Two! Three? Four", []string{"One.", "Two!", "Three?", "Four"}},
		{"newline", "Heading\nBody text. More", []string{"Heading", "Body text.", "More"}},
		{"decimal stays", "Rates rose 3.5 percent. Then fell.", []string{"Rates rose 3.5 percent.", "Then fell."}},
		{"blank", "  \n ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"the", "u", "s", "ev", "market", "grew"}, Words("The U.S. EV-market grew 40%!"))
	assert.Empty(t, Words("123 456"))
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Install an EV Charger at home", "ev charger"))
	assert.False(t, ContainsFold("Install a charger", "ev charger"))
}

func TestNormalizePhrase(t *testing.T) {
	assert.Equal(t, "diabetes rates", NormalizePhrase("  Diabetes   RATES "))
}

func TestStopWords(t *testing.T) {
	assert.True(t, IsQueryStopWord("with"))
	assert.False(t, IsQueryStopWord("charger"))
	assert.True(t, IsGenericTerm("things"))
	assert.False(t, IsGenericTerm("diabetes"))
}

func TestHTMLToText(t *testing.T) {
	t.Run("plain text passes through", func(t *testing.T) {
		in := "Rates rose 5 < 6 percent."
		assert.Equal(t, in, HTMLToText(in))
	})

	t.Run("comparisons are not tags", func(t *testing.T) {
		in := "Prices rose when supply<demand and demand>supply. Inflation hit 5 percent. Also a<b and c>d."
		assert.Equal(t, in, HTMLToText(in))
	})

	t.Run("markup reduced to lines", func(t *testing.T) {
		in := `<html><head><style>p{color:red}</style></head><body>
			<h1>EV charging</h1>
			<p>Home   chargers are <b>cheap</b>.<br>Public ones are not.</p>
			<script>alert(1)</script>
			<ul><li>Level 1</li><li>Level 2</li></ul>
		</body></html>`
		got := HTMLToText(in)
		assert.Equal(t, "EV charging\nHome chargers are cheap.\nPublic ones are not.\nLevel 1\nLevel 2", got)
	})
}

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"a<b and c>d", false},
		{"supply<demand and demand>supply", false},
		{"x <y> z", false},
		{"<b>bold</b>", true},
		{"line one<br/>line two", true},
		{"Before <P class=\"lead\">text", true},
		{"text</p>", true},
		{"<!-- note -->text", true},
		{"<h2>Heading</h2>", true},
		{"<bold>", false},
		{"trailing <p", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeHTML(tt.in))
		})
	}
}
