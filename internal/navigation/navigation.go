// Package navigation synthesizes table-of-contents documents from an ordered
// list of chapter hrefs. Everything here is pure: same input, same bytes.
package navigation

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/jvs-project/epubpack/pkg/model"
)

// Namespaces used by navigation documents.
const (
	NamespaceXHTML = "http://www.w3.org/1999/xhtml"
	NamespaceOPS   = "http://www.idpf.org/2007/ops"
	NamespaceNCX   = "http://www.daisy.org/z3986/2005/ncx/"
)

// Title is the heading of synthesized navigation documents.
const Title = "Table of Contents"

// Entries assigns 1-based order and "Chapter n" labels to hrefs, keeping
// input order.
func Entries(hrefs []string) []model.NavigationEntry {
	out := make([]model.NavigationEntry, len(hrefs))
	for i, href := range hrefs {
		out[i] = model.NavigationEntry{Href: href, Label: model.ChapterLabel(i + 1), Order: i + 1}
	}
	return out
}

// Document renders an EPUB 3 navigation document listing hrefs, in order, as
// one ordered-list item each.
func Document(hrefs []string) string {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.CreateDirective("DOCTYPE html")

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", NamespaceXHTML)
	html.CreateAttr("xmlns:epub", NamespaceOPS)

	head := html.CreateElement("head")
	head.CreateElement("title").SetText(Title)

	nav := html.CreateElement("body").CreateElement("nav")
	nav.CreateAttr("epub:type", "toc")
	nav.CreateAttr("id", "toc")
	nav.CreateElement("h1").SetText(Title)
	ol := nav.CreateElement("ol")
	for _, e := range Entries(hrefs) {
		a := ol.CreateElement("li").CreateElement("a")
		a.CreateAttr("href", e.Href)
		a.SetText(e.Label)
	}

	return serialize(doc)
}

// NavMap builds a legacy NCX <navMap> for hrefs.
func NavMap(hrefs []string) *etree.Element {
	navMap := etree.NewElement("navMap")
	for _, e := range Entries(hrefs) {
		AppendNavPoint(navMap, e)
	}
	return navMap
}

// AppendNavPoint adds one <navPoint> for e to parent.
func AppendNavPoint(parent *etree.Element, e model.NavigationEntry) {
	order := strconv.Itoa(e.Order)
	np := parent.CreateElement("navPoint")
	np.CreateAttr("id", "navPoint"+order)
	np.CreateAttr("playOrder", order)
	np.CreateElement("navLabel").CreateElement("text").SetText(e.Label)
	np.CreateElement("content").CreateAttr("src", e.Href)
}

// NCX renders a minimal NCX document around NavMap(hrefs). It is used when
// the generator's NCX is unusable.
func NCX(uid, title string, hrefs []string) string {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", NamespaceNCX)
	ncx.CreateAttr("version", "2005-1")

	head := ncx.CreateElement("head")
	meta := head.CreateElement("meta")
	meta.CreateAttr("name", "dtb:uid")
	meta.CreateAttr("content", uid)

	ncx.CreateElement("docTitle").CreateElement("text").SetText(title)
	ncx.AddChild(NavMap(hrefs))

	return serialize(doc)
}

func serialize(doc *etree.Document) string {
	doc.Indent(2)
	s, err := doc.WriteToString()
	if err != nil {
		// Writing to a strings.Builder cannot fail.
		panic(err)
	}
	return s
}
