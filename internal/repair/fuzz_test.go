package repair

import (
	"path"
	"strings"
	"testing"

	"github.com/jvs-project/epubpack/pkg/pathutil"
)

// FuzzRelHref checks that a relative href joined back onto its base names
// the original target.
func FuzzRelHref(f *testing.F) {
	f.Add("OEBPS", "OEBPS/content/chapter0001.xhtml")
	f.Add("OEBPS/content", "OEBPS/styles/book.css")
	f.Add("", "OEBPS/content.opf")
	f.Add("a/b/c", "d")
	f.Add("a", "a")

	f.Fuzz(func(t *testing.T, fromDir, target string) {
		from, err := pathutil.CleanRel(fromDir)
		if err != nil {
			from = ""
		}
		to, err := pathutil.CleanRel(target)
		if err != nil || strings.Contains(to, "..") {
			return
		}
		href := relHref(from, to)
		if got := path.Join(from, href); got != to {
			t.Fatalf("relHref(%q, %q) = %q, joins back to %q", from, to, href, got)
		}
	})
}

// FuzzResolveHref checks that fragments never reach the resolved path.
func FuzzResolveHref(f *testing.F) {
	f.Add("OEBPS", "content/chapter0001.xhtml#p3")
	f.Add("OEBPS", "https://example.com/x.css")
	f.Add("OEBPS", "images/a%20b.png")
	f.Add("", "#only-a-fragment")
	f.Add("OEBPS", "%zz")

	f.Fuzz(func(t *testing.T, root, href string) {
		if strings.Contains(root, "#") || strings.Contains(href, "%23") {
			return
		}
		if got := resolveHref(root, href); strings.Contains(got, "#") {
			t.Fatalf("resolveHref(%q, %q) = %q keeps the fragment", root, href, got)
		}
	})
}
