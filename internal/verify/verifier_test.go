package verify_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/epubpack/internal/pack"
	"github.com/jvs-project/epubpack/internal/verify"
	"github.com/jvs-project/epubpack/pkg/logging"
	"github.com/jvs-project/epubpack/pkg/model"
)

func buildBook(t *testing.T) string {
	t.Helper()
	b := pack.New(model.Book{
		Title: "Verified",
		Chapters: []model.Chapter{
			{Title: "One", Body: "<p>1</p>"},
			{Title: "Two", Body: "<p>2</p>"},
		},
	}, pack.Options{StagingDir: t.TempDir(), OutputDir: t.TempDir(), Logger: logging.Discard()})
	require.NoError(t, b.Prepare(context.Background()))
	out, err := b.Save(context.Background(), nil)
	require.NoError(t, err)
	return out
}

// writeZip writes entries in order; a nil method map entry means Deflate.
func writeZip(t *testing.T, entries [][2]string, stored map[string]bool) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "hand.epub")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, e := range entries {
		method := zip.Deflate
		if stored[e[0]] {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e[0], Method: method})
		require.NoError(t, err)
		_, err = w.Write([]byte(e[1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func messages(r *verify.Result) []string {
	var out []string
	for _, p := range r.Problems {
		out = append(out, p.Message)
	}
	return out
}

func TestVerifier_PackagedBookIsValid(t *testing.T) {
	out := buildBook(t)

	res, err := verify.NewVerifier(true).VerifyArchive(out)
	require.NoError(t, err)
	assert.True(t, res.Valid, "problems: %v", messages(res))
	assert.Empty(t, res.Problems)
	assert.Equal(t, 2, res.Chapters)
	assert.Equal(t, "OEBPS/content.opf", res.PackageDoc)
	assert.Len(t, res.SHA256, 64)
	assert.Len(t, res.ContentDigest, 64)
}

func TestVerifier_NotAZip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "junk.epub")
	require.NoError(t, os.WriteFile(p, []byte("junk"), 0644))

	res, err := verify.NewVerifier(false).VerifyArchive(p)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, verify.SeverityCritical, res.Severity)
}

func TestVerifier_MimetypeNotFirst(t *testing.T) {
	p := writeZip(t, [][2]string{
		{"META-INF/container.xml", "<container/>"},
		{"mimetype", model.MimetypeContent},
	}, map[string]bool{"mimetype": true})

	res, err := verify.NewVerifier(false).VerifyArchive(p)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, messages(res)[0], "first entry is META-INF/container.xml")
}

func TestVerifier_CompressedMimetype(t *testing.T) {
	p := writeZip(t, [][2]string{{"mimetype", model.MimetypeContent}}, nil)

	res, err := verify.NewVerifier(false).VerifyArchive(p)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, verify.SeverityCritical, res.Severity)
}

func TestVerifier_SpineReferencesUnknownID(t *testing.T) {
	const container = `<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container"><rootfiles><rootfile full-path="content.opf"/></rootfiles></container>`
	const opf = `<package xmlns="http://www.idpf.org/2007/opf">
  <manifest>
    <item id="chapter0" href="a.xhtml" media-type="application/xhtml+xml"/>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
  </manifest>
  <spine><itemref idref="chapter0"/><itemref idref="ghost"/></spine>
</package>`
	p := writeZip(t, [][2]string{
		{"mimetype", model.MimetypeContent},
		{"META-INF/container.xml", container},
		{"content.opf", opf},
		{"a.xhtml", "<html/>"},
		{"nav.xhtml", "<html/>"},
	}, map[string]bool{"mimetype": true})

	res, err := verify.NewVerifier(false).VerifyArchive(p)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, messages(res), `spine references unknown id "ghost"`)
	assert.Equal(t, 1, res.Chapters)
}

func TestVerifier_StrictFailsOnWarnings(t *testing.T) {
	const container = `<container><rootfiles><rootfile full-path="content.opf"/></rootfiles></container>`
	const opf = `<package>
  <manifest>
    <item id="chapter0" href="a.xhtml" media-type="application/xhtml+xml"/>
    <item id="nav" href="missing-nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
  </manifest>
  <spine><itemref idref="chapter0"/></spine>
</package>`
	p := writeZip(t, [][2]string{
		{"mimetype", model.MimetypeContent},
		{"META-INF/container.xml", container},
		{"content.opf", opf},
		{"a.xhtml", "<html/>"},
	}, map[string]bool{"mimetype": true})

	lenient, err := verify.NewVerifier(false).VerifyArchive(p)
	require.NoError(t, err)
	assert.True(t, lenient.Valid)
	assert.Equal(t, verify.SeverityWarning, lenient.Severity)

	strict, err := verify.NewVerifier(true).VerifyArchive(p)
	require.NoError(t, err)
	assert.False(t, strict.Valid)
}

func TestVerifier_VerifyAll(t *testing.T) {
	good := buildBook(t)
	bad := filepath.Join(t.TempDir(), "bad.epub")
	require.NoError(t, os.WriteFile(bad, nil, 0644))

	results, err := verify.NewVerifier(false).VerifyAll([]string{good, bad})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Valid)
	assert.False(t, results[1].Valid)
}

func TestListEntries(t *testing.T) {
	entries, err := verify.ListEntries(buildBook(t))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "mimetype", entries[0].Name)
	assert.Equal(t, "store", entries[0].Method)
	assert.Equal(t, uint64(len(model.MimetypeContent)), entries[0].Size)
	assert.Equal(t, "deflate", entries[1].Method)

	_, err = verify.ListEntries(filepath.Join(t.TempDir(), "nope.epub"))
	assert.Error(t, err)
}
