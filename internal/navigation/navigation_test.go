package navigation_test

import (
	"fmt"
	"testing"

	"github.com/beevik/etree"
	"github.com/jvs-project/epubpack/internal/navigation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, s string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	return doc
}

func TestEntries_OrderAndLabels(t *testing.T) {
	entries := navigation.Entries([]string{"c/b.xhtml", "c/a.xhtml", "c/z.xhtml"})
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Order)
		assert.Equal(t, fmt.Sprintf("Chapter %d", i+1), e.Label)
	}
	assert.Equal(t, "c/b.xhtml", entries[0].Href)
	assert.Equal(t, "c/z.xhtml", entries[2].Href)
}

func TestDocument_ListsChaptersInInputOrder(t *testing.T) {
	orderings := [][]string{
		{},
		{"content/one.xhtml"},
		{"content/b.xhtml", "content/a.xhtml"},
		{"z.xhtml", "m.xhtml", "a.xhtml", "q & r.xhtml"},
	}
	for _, hrefs := range orderings {
		doc := parse(t, navigation.Document(hrefs))

		nav := doc.FindElement("//nav")
		require.NotNil(t, nav)
		assert.Equal(t, "toc", nav.SelectAttrValue("epub:type", ""))

		items := doc.FindElements("//nav/ol/li/a")
		require.Len(t, items, len(hrefs))
		for i, a := range items {
			assert.Equal(t, hrefs[i], a.SelectAttrValue("href", ""))
			assert.Equal(t, fmt.Sprintf("Chapter %d", i+1), a.Text())
		}
	}
}

func TestDocument_Deterministic(t *testing.T) {
	hrefs := []string{"content/a.xhtml", "content/b.xhtml"}
	assert.Equal(t, navigation.Document(hrefs), navigation.Document(hrefs))
}

func TestDocument_HasXHTMLNamespaces(t *testing.T) {
	doc := parse(t, navigation.Document([]string{"a.xhtml"}))
	html := doc.Root()
	require.NotNil(t, html)
	assert.Equal(t, "html", html.Tag)
	assert.Equal(t, navigation.NamespaceXHTML, html.SelectAttrValue("xmlns", ""))
	assert.Equal(t, navigation.NamespaceOPS, html.SelectAttrValue("xmlns:epub", ""))
}

func TestNavMap(t *testing.T) {
	navMap := navigation.NavMap([]string{"content/a.xhtml", "content/b.xhtml"})
	points := navMap.SelectElements("navPoint")
	require.Len(t, points, 2)
	for i, np := range points {
		n := fmt.Sprint(i + 1)
		assert.Equal(t, "navPoint"+n, np.SelectAttrValue("id", ""))
		assert.Equal(t, n, np.SelectAttrValue("playOrder", ""))
		assert.Equal(t, "Chapter "+n, np.FindElement("navLabel/text").Text())
	}
	assert.Equal(t, "content/b.xhtml", points[1].FindElement("content").SelectAttrValue("src", ""))
}

func TestNCX(t *testing.T) {
	doc := parse(t, navigation.NCX("urn:uuid:1", "Air born", []string{"a.xhtml"}))
	root := doc.Root()
	assert.Equal(t, "ncx", root.Tag)
	assert.Equal(t, "Air born", root.FindElement("docTitle/text").Text())
	assert.Equal(t, "urn:uuid:1", root.FindElement("head/meta").SelectAttrValue("content", ""))
	assert.Len(t, root.FindElements("navMap/navPoint"), 1)
}
