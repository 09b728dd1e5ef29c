// Package verify checks the container invariants epubpack guarantees on a
// finished archive. It is not a full EPUB validator.
package verify

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/beevik/etree"

	"github.com/jvs-project/epubpack/internal/integrity"
	"github.com/jvs-project/epubpack/pkg/model"
)

// Severity levels, most severe first.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
)

// localHeaderLen is the fixed part of a ZIP local file header.
const localHeaderLen = 30

// Problem is one failed check.
type Problem struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Result contains verification results for a single archive.
type Result struct {
	Path          string    `json:"path"`
	Valid         bool      `json:"valid"`
	Entries       int       `json:"entries"`
	Chapters      int       `json:"chapters"`
	PackageDoc    string    `json:"package_doc,omitempty"`
	SHA256        string    `json:"sha256,omitempty"`
	ContentDigest string    `json:"content_digest,omitempty"`
	Severity      string    `json:"severity,omitempty"`
	Problems      []Problem `json:"problems,omitempty"`
}

func (r *Result) add(severity, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{Severity: severity, Message: fmt.Sprintf(format, args...)})
	if rank(severity) > rank(r.Severity) {
		r.Severity = severity
	}
}

func rank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 3
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Verifier checks archives.
type Verifier struct {
	// Strict turns warnings into failures.
	Strict bool
}

// NewVerifier creates a new verifier.
func NewVerifier(strict bool) *Verifier {
	return &Verifier{Strict: strict}
}

// VerifyArchive checks one archive. Problems are reported in the Result; the
// error is reserved for failures unrelated to the archive's content.
func (v *Verifier) VerifyArchive(archivePath string) (*Result, error) {
	result := &Result{Path: archivePath}
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		result.add(SeverityCritical, "not a readable zip archive: %v", err)
		return v.finish(result), nil
	}
	defer r.Close()

	result.Entries = len(r.File)
	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		if _, dup := files[f.Name]; dup {
			result.add(SeverityError, "duplicate entry %s", f.Name)
		}
		files[f.Name] = f
	}

	checkMimetype(result, r.File)
	pkgDoc := checkContainer(result, files)
	if pkgDoc != "" {
		result.PackageDoc = pkgDoc
		checkPackage(result, files, pkgDoc)
	}

	if sum, err := integrity.FileDigest(archivePath); err == nil {
		result.SHA256 = sum
	}
	if sum, err := integrity.ContentDigest(archivePath); err != nil {
		result.add(SeverityError, "unreadable entry: %v", err)
	} else {
		result.ContentDigest = sum
	}
	return v.finish(result), nil
}

// VerifyAll verifies every archive in paths, in order.
func (v *Verifier) VerifyAll(paths []string) ([]*Result, error) {
	results := make([]*Result, 0, len(paths))
	for _, p := range paths {
		res, err := v.VerifyArchive(p)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (v *Verifier) finish(r *Result) *Result {
	limit := rank(SeverityError)
	if v.Strict {
		limit = rank(SeverityWarning)
	}
	r.Valid = rank(r.Severity) < limit
	return r
}

func checkMimetype(r *Result, files []*zip.File) {
	if len(files) == 0 {
		r.add(SeverityCritical, "archive is empty")
		return
	}
	first := files[0]
	if first.Name != model.MimetypePath {
		r.add(SeverityCritical, "first entry is %s, want %s", first.Name, model.MimetypePath)
		return
	}
	if first.Method != zip.Store {
		r.add(SeverityCritical, "mimetype is compressed (method %d)", first.Method)
	}
	if first.Flags&0x8 != 0 {
		r.add(SeverityError, "mimetype uses a data descriptor")
	}
	if off, err := first.DataOffset(); err == nil && off != localHeaderLen+int64(len(model.MimetypePath)) {
		r.add(SeverityError, "mimetype local header carries an extra field")
	}
	data, err := readEntry(first)
	if err != nil {
		r.add(SeverityCritical, "read mimetype: %v", err)
		return
	}
	if data != model.MimetypeContent {
		r.add(SeverityCritical, "mimetype content is %q, want %q", data, model.MimetypeContent)
	}
}

func checkContainer(r *Result, files map[string]*zip.File) string {
	f, ok := files[model.ContainerPath]
	if !ok {
		r.add(SeverityCritical, "missing %s", model.ContainerPath)
		return ""
	}
	doc, err := readXML(f)
	if err != nil {
		r.add(SeverityCritical, "%s: %v", model.ContainerPath, err)
		return ""
	}
	rf := doc.FindElement("//rootfiles/rootfile")
	if rf == nil {
		r.add(SeverityCritical, "%s names no rootfile", model.ContainerPath)
		return ""
	}
	full := rf.SelectAttrValue("full-path", "")
	if _, ok := files[full]; !ok {
		r.add(SeverityCritical, "rootfile %q is not in the archive", full)
		return ""
	}
	return full
}

func checkPackage(r *Result, files map[string]*zip.File, pkgDoc string) {
	doc, err := readXML(files[pkgDoc])
	if err != nil {
		r.add(SeverityCritical, "%s: %v", pkgDoc, err)
		return
	}
	root := path.Dir(pkgDoc)

	ids := map[string]*etree.Element{}
	navItems := 0
	for _, item := range doc.FindElements("//manifest/item") {
		id := item.SelectAttrValue("id", "")
		if _, dup := ids[id]; dup {
			r.add(SeverityError, "duplicate manifest id %q", id)
		}
		ids[id] = item
		href := item.SelectAttrValue("href", "")
		if _, ok := files[hrefPath(root, href)]; !ok {
			r.add(SeverityWarning, "manifest item %q references missing %s", id, href)
		}
		if hasProperty(item, model.NavProperty) {
			navItems++
		}
	}
	if navItems != 1 {
		r.add(SeverityError, "manifest has %d navigation items, want 1", navItems)
	}

	spine := doc.FindElement("//spine")
	if spine == nil {
		r.add(SeverityError, "package document has no spine")
		return
	}
	for _, ref := range spine.SelectElements("itemref") {
		idref := ref.SelectAttrValue("idref", "")
		item, ok := ids[idref]
		if !ok {
			r.add(SeverityError, "spine references unknown id %q", idref)
			continue
		}
		if !model.IsChapterID(idref) {
			r.add(SeverityWarning, "spine id %q does not have the chapter id shape", idref)
		}
		if item.SelectAttrValue("media-type", "") == model.MediaTypeXHTML {
			r.Chapters++
		}
	}

	if toc := spine.SelectAttrValue("toc", ""); toc != "" {
		item, ok := ids[toc]
		if !ok {
			r.add(SeverityError, "spine toc references unknown id %q", toc)
			return
		}
		if f, ok := files[hrefPath(root, item.SelectAttrValue("href", ""))]; ok {
			if _, err := readXML(f); err != nil {
				r.add(SeverityError, "NCX: %v", err)
			}
		}
	}
}

// hrefPath maps a manifest href to its archive entry name.
func hrefPath(root, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return path.Join(root, href)
}

func hasProperty(item *etree.Element, prop string) bool {
	for _, p := range strings.Fields(item.SelectAttrValue("properties", "")) {
		if p == prop {
			return true
		}
	}
	return false
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	return string(data), err
}

func readXML(f *zip.File) (*etree.Document, error) {
	data, err := readEntry(f)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, errors.New("no root element")
	}
	return doc, nil
}
