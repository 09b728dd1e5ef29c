package pathutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/pathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanRel_Normalizes(t *testing.T) {
	tests := map[string]string{
		"OEBPS/content.opf":          "OEBPS/content.opf",
		`OEBPS\content\a.xhtml`:      "OEBPS/content/a.xhtml",
		"./OEBPS//toc.ncx":           "OEBPS/toc.ncx",
		"OEBPS/content/../nav.xhtml": "OEBPS/nav.xhtml",
		"mimetype":                   "mimetype",
	}
	for in, want := range tests {
		got, err := pathutil.CleanRel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestCleanRel_NFC(t *testing.T) {
	decomposed := "OEBPS/cafe\u0301.xhtml"
	got, err := pathutil.CleanRel(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "OEBPS/caf\u00e9.xhtml", got)
}

func TestCleanRel_Rejects(t *testing.T) {
	for _, in := range []string{"", "  ", "/etc/passwd", "..", "../x", "a/../../x", ".", "a\x00b"} {
		_, err := pathutil.CleanRel(in)
		require.ErrorIs(t, err, errclass.ErrPathEscape, "should reject: %q", in)
	}
}

func TestValidateFileName(t *testing.T) {
	for _, name := range []string{"chapter0001.xhtml", "cover.png", "style-1.css"} {
		assert.NoError(t, pathutil.ValidateFileName(name), name)
	}
	for _, name := range []string{"", "..", "a/b", `a\b`, "Air born.xhtml"} {
		assert.ErrorIs(t, pathutil.ValidateFileName(name), errclass.ErrPathEscape, name)
	}
}

func TestValidatePathSafety_UnderRoot(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "OEBPS", "content")
	require.NoError(t, os.MkdirAll(target, 0755))
	assert.NoError(t, pathutil.ValidatePathSafety(root, target))
}

func TestValidatePathSafety_Escape(t *testing.T) {
	root := t.TempDir()
	err := pathutil.ValidatePathSafety(root, filepath.Join(filepath.Dir(root), "evil"))
	require.ErrorIs(t, err, errclass.ErrPathEscape)
}

func TestValidatePathSafety_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	err := pathutil.ValidatePathSafety(root, filepath.Join(link, "file.xhtml"))
	require.ErrorIs(t, err, errclass.ErrPathEscape)
}

func TestValidatePathSafety_NonExistentTarget(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "OEBPS", "content", "new.xhtml")
	assert.NoError(t, pathutil.ValidatePathSafety(root, target))
}
