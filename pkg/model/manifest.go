package model

import (
	"fmt"
	"regexp"
)

// Media types written into the package document.
const (
	MediaTypeXHTML = "application/xhtml+xml"
	MediaTypeNCX   = "application/x-dtbncx+xml"
	MediaTypeCSS   = "text/css"
	MediaTypeOPF   = "application/oebps-package+xml"
)

// NavID is the manifest id of the navigation document.
const NavID = "nav"

// NavProperty flags the navigation document in the manifest.
const NavProperty = "nav"

var chapterIDPattern = regexp.MustCompile(`^chapter[0-9]+$`)

// ManifestEntry is one <item> of the package manifest. Href is relative to
// the package root.
type ManifestEntry struct {
	ID         string `json:"id"`
	Href       string `json:"href"`
	MediaType  string `json:"media_type"`
	Properties string `json:"properties,omitempty"`
}

// SpineItem references a manifest entry in reading order.
type SpineItem struct {
	IDRef string `json:"idref"`
}

// NavigationEntry is one table-of-contents row. Order is 1-based.
type NavigationEntry struct {
	Href  string `json:"href"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

// ChapterID returns the manifest id for the chapter at 0-based index i.
func ChapterID(i int) string {
	return fmt.Sprintf("chapter%d", i)
}

// AssetID returns the manifest id for the asset at 0-based index i.
func AssetID(i int) string {
	return fmt.Sprintf("asset%d", i)
}

// IsChapterID reports whether id has the chapter id shape.
func IsChapterID(id string) bool {
	return chapterIDPattern.MatchString(id)
}

// ChapterLabel is the navigation label for 1-based order n.
func ChapterLabel(order int) string {
	return fmt.Sprintf("Chapter %d", order)
}
