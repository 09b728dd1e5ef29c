package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelHref(t *testing.T) {
	tests := []struct {
		from, target, want string
	}{
		{"", "OEBPS/content/a.xhtml", "OEBPS/content/a.xhtml"},
		{"OEBPS", "OEBPS/content/a.xhtml", "content/a.xhtml"},
		{"OEBPS/content", "OEBPS/content/a.xhtml", "a.xhtml"},
		{"OEBPS/nav", "OEBPS/content/a.xhtml", "../content/a.xhtml"},
		{"other", "OEBPS/a.xhtml", "../OEBPS/a.xhtml"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relHref(tt.from, tt.target), "%s -> %s", tt.from, tt.target)
	}
}

func TestHrefFor_EscapesSegments(t *testing.T) {
	assert.Equal(t, "content/100%25.xhtml", hrefFor("OEBPS", "OEBPS/content/100%.xhtml"))
	assert.Equal(t, "../a%20b/c.css", hrefFor("OEBPS/nav", "OEBPS/a b/c.css"))

	for _, target := range []string{"OEBPS/content/100%.xhtml", "OEBPS/styles/a%20b.css", "OEBPS/a b.xhtml"} {
		assert.Equal(t, target, resolveHref("OEBPS", hrefFor("OEBPS", target)))
	}
}

func TestResolveHref(t *testing.T) {
	assert.Equal(t, "OEBPS/styles/a b.css", resolveHref("OEBPS", "styles/a%20b.css#frag"))
	assert.Equal(t, "", resolveHref("OEBPS", "https://example.com/x.css"))
	assert.Equal(t, "", resolveHref("OEBPS", "  "))
	assert.Equal(t, "x.css", resolveHref("", "./x.css"))
}

func TestSerialize_StableAcrossPasses(t *testing.T) {
	doc, _, ok := parseXML([]byte("<a><b>  <c/></b></a>"), "a", "")
	assert.True(t, ok)
	first, err := serialize(doc)
	assert.NoError(t, err)

	again, _, ok := parseXML(first, "a", "")
	assert.True(t, ok)
	second, err := serialize(again)
	assert.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), `<?xml version="1.0" encoding="UTF-8"?>`)
}
