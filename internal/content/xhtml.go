package content

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jvs-project/epubpack/pkg/errclass"
)

// bodyContext is the element chapter fragments are parsed inside.
var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// renderBody parses an HTML fragment the way a browser would inside <body>
// and re-renders it with self-closed void elements and balanced tags, which
// is what an XHTML content document needs.
func renderBody(body string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(body), bodyContext)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, n := range nodes {
		if err := html.Render(&sb, n); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// chapterDocument wraps a rendered body in an XHTML content document.
func chapterDocument(title, lang, stylesheetHref, body string) (string, error) {
	rendered, err := renderBody(body)
	if err != nil {
		return "", errclass.ErrStructure.WithMessagef("chapter %q: %v", title, err)
	}
	t := html.EscapeString(title)
	l := html.EscapeString(lang)

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops"`)
	sb.WriteString(` xml:lang="` + l + `" lang="` + l + `">` + "\n")
	sb.WriteString("<head>\n")
	sb.WriteString("  <title>" + t + "</title>\n")
	if stylesheetHref != "" {
		sb.WriteString(`  <link rel="stylesheet" type="text/css" href="` + html.EscapeString(stylesheetHref) + `"/>` + "\n")
	}
	sb.WriteString("</head>\n")
	sb.WriteString("<body>\n")
	sb.WriteString("  <h1>" + t + "</h1>\n")
	sb.WriteString(rendered)
	sb.WriteString("\n</body>\n</html>\n")
	return sb.String(), nil
}
