package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	html := `<h1>Road  works</h1><script>track()</script><p>Main street is <b>closed</b>
	until Friday.</p><style>p{}</style>`
	assert.Equal(t, "Road works Main street is closed until Friday.", PlainText(html))
	assert.Equal(t, "", PlainText("   "))
}

func TestExcerpt(t *testing.T) {
	short := "<p>Short and sweet.</p>"
	assert.Equal(t, "Short and sweet.", Excerpt(short))

	long := "<p>" + strings.Repeat("harbour festival, ", 30) + "</p>"
	got := Excerpt(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len([]rune(got)), ExcerptLength+3)
	assert.False(t, strings.Contains(got, ",..."))
}

func TestKeywords(t *testing.T) {
	kw := Keywords("The new Harbour bridge opens; harbour traffic will change with it.")
	assert.True(t, kw["harbour"])
	assert.True(t, kw["bridge"])
	assert.True(t, kw["traffic"])
	assert.False(t, kw["will"])
	assert.False(t, kw["new"])
	assert.False(t, kw["with"])
}
