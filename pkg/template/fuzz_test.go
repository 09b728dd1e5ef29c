package template

import (
	"strings"
	"testing"
	"unicode"

	"github.com/jvs-project/epubpack/pkg/model"
)

// FuzzSanitizeFileName checks that any title yields a usable file name.
func FuzzSanitizeFileName(f *testing.F) {
	f.Add("")
	f.Add("Air Born")
	f.Add("../../etc/passwd")
	f.Add(`C:\Books\a?b*c`)
	f.Add("...hidden")
	f.Add(" \t\n")
	f.Add("title\x00with\x1fcontrols")

	f.Fuzz(func(t *testing.T, name string) {
		got := SanitizeFileName(name)
		if got == "" {
			t.Fatalf("SanitizeFileName(%q) is empty", name)
		}
		if strings.ContainsAny(got, `/\:*?"<>|`) || strings.IndexFunc(got, unicode.IsControl) >= 0 {
			t.Fatalf("SanitizeFileName(%q) = %q keeps a reserved character", name, got)
		}
		if got[0] == '.' || got[0] == ' ' {
			t.Fatalf("SanitizeFileName(%q) = %q starts with %q", name, got, got[0])
		}

		out := OutputName("{title}", model.Book{Title: name})
		if !strings.HasSuffix(strings.ToLower(out), ".epub") || strings.ContainsAny(out, `/\`) {
			t.Fatalf("OutputName for %q = %q", name, out)
		}
	})
}
