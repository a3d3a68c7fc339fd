package textproc

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p,li,div,section,article,blockquote,pre,tr,h1,h2,h3,h4,h5,h6"

// knownTags are the elements that mark pasted text as HTML. A bare "<"
// followed by a word, as in "supply<demand", is not a tag.
var knownTags = map[string]bool{
	"a": true, "abbr": true, "article": true, "b": true, "blockquote": true,
	"body": true, "br": true, "code": true, "div": true, "em": true,
	"figcaption": true, "figure": true, "footer": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "head": true, "header": true,
	"hr": true, "html": true, "i": true, "img": true, "li": true, "main": true,
	"mark": true, "nav": true, "noscript": true, "ol": true, "p": true,
	"pre": true, "script": true, "section": true, "small": true, "span": true,
	"strong": true, "style": true, "sub": true, "sup": true, "table": true,
	"tbody": true, "td": true, "template": true, "th": true, "thead": true,
	"title": true, "tr": true, "u": true, "ul": true,
}

// LooksLikeHTML reports whether s contains a known element tag, a comment
// or a doctype
func LooksLikeHTML(s string) bool {
	for i := strings.IndexByte(s, '<'); i >= 0 && i+1 < len(s); {
		if isTagAt(s[i+1:]) {
			return true
		}
		next := strings.IndexByte(s[i+1:], '<')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return false
}

// isTagAt reports whether rest, the text after a "<", opens a real tag
func isTagAt(rest string) bool {
	// the longest known name plus one delimiter fits in 16 bytes
	if len(rest) > 16 {
		rest = rest[:16]
	}
	lower := strings.ToLower(rest)
	if strings.HasPrefix(lower, "!--") || strings.HasPrefix(lower, "!doctype") {
		return true
	}
	lower = strings.TrimPrefix(lower, "/")

	n := 0
	for n < len(lower) && (lower[n] >= 'a' && lower[n] <= 'z' || lower[n] >= '0' && lower[n] <= '9') {
		n++
	}
	if n == 0 || !knownTags[lower[:n]] {
		return false
	}
	if n == len(lower) {
		return false
	}
	switch lower[n] {
	case '>', '/', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// HTMLToText reduces pasted rich text to its visible text. Block elements
// and <br> become line breaks so sentence splitting still sees them. Plain
// text is returned unchanged.
func HTMLToText(s string) string {
	if !LooksLikeHTML(s) {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}

	doc.Find("script,noscript,style,template").Each(func(i int, sel *goquery.Selection) {
		sel.Remove()
	})
	doc.Find("br").Each(func(i int, sel *goquery.Selection) {
		sel.ReplaceWithHtml("\n")
	})
	doc.Find(blockSelector).Each(func(i int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
