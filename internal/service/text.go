package service

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// ExcerptLength is the rune budget of an automatic excerpt.
const ExcerptLength = 200

// PlainText strips markup from post HTML and collapses whitespace.
func PlainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	doc.Find("script, style, noscript, iframe, object, embed, svg, form").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Excerpt returns the first ExcerptLength runes of the post's text, cut at
// a word boundary.
func Excerpt(html string) string {
	text := PlainText(html)
	runes := []rune(text)
	if len(runes) <= ExcerptLength {
		return text
	}

	cut := ExcerptLength
	for i := ExcerptLength; i > ExcerptLength/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + "..."
}

var stopWords = map[string]bool{
	"about": true, "after": true, "also": true, "been": true, "before": true,
	"being": true, "from": true, "have": true, "into": true, "more": true,
	"over": true, "some": true, "such": true, "than": true, "that": true,
	"their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "will": true,
	"with": true, "would": true, "your": true,
}

// Keywords returns the distinct significant words of a text.
func Keywords(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := make(map[string]bool, len(words))
	for _, w := range words {
		if len([]rune(w)) < 4 || stopWords[w] {
			continue
		}
		out[w] = true
	}
	return out
}
