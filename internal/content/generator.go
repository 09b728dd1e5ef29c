// Package content renders a model.Book into the files of an EPUB container.
//
// The generator writes a best-effort package document and NCX. It does not
// try to keep them perfectly consistent with the chapter files; the
// repairer owns that.
package content

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/model"
	"github.com/jvs-project/epubpack/pkg/pathutil"
)

// Container layout written by the generator.
const (
	PackageRoot    = "OEBPS"
	PackageDoc     = PackageRoot + "/content.opf"
	NcxPath        = PackageRoot + "/toc.ncx"
	StylesheetPath = PackageRoot + "/styles/book.css"
	ImageDir       = PackageRoot + "/images"
	MiscDir        = PackageRoot + "/misc"
	chapterWidth   = 4
)

// DefaultStylesheet is used when the book carries none.
const DefaultStylesheet = `body { margin: 0 5%; line-height: 1.4; }
h1 { text-align: center; margin: 1.5em 0; }
p { text-indent: 1.2em; margin: 0; }
img { max-width: 100%; }
`

const xmlDecl = `version="1.0" encoding="UTF-8"`

// Generator is the default content generator.
type Generator struct {
	// Now stamps dcterms:modified. Defaults to time.Now.
	Now func() time.Time
}

// New returns a generator using the wall clock.
func New() *Generator {
	return &Generator{Now: time.Now}
}

type chapterFile struct {
	path  string
	title string
}

// Generate renders book. onProgress receives the fraction of chapters and
// assets rendered so far and may be nil.
func (g *Generator) Generate(ctx context.Context, book model.Book, onProgress func(float64)) ([]model.GeneratedFile, error) {
	report := func(f float64) {
		if onProgress != nil {
			onProgress(f)
		}
	}
	book = withDefaults(book)

	css := book.Stylesheet
	if strings.TrimSpace(css) == "" {
		css = DefaultStylesheet
	}
	files := []model.GeneratedFile{
		{Path: model.MimetypePath, Content: []byte(model.MimetypeContent)},
		{Path: model.ContainerPath, Content: containerXML()},
		{Path: StylesheetPath, Content: []byte(css)},
	}
	taken := newPathSet()
	for _, f := range files {
		taken.add(f.Path)
	}

	total := len(book.Chapters) + len(book.Assets)
	names, err := chapterNames(book.Chapters)
	if err != nil {
		return nil, err
	}
	chapters := make([]chapterFile, 0, len(book.Chapters))
	for i, ch := range book.Chapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := PackageRoot + "/" + model.ContentDir + "/" + names[i]
		if err := taken.claim(p); err != nil {
			return nil, err
		}
		title := chapterTitle(ch, i)
		doc, err := chapterDocument(title, book.Language, "../styles/book.css", ch.Body)
		if err != nil {
			return nil, err
		}
		files = append(files, model.GeneratedFile{Path: p, Content: []byte(doc)})
		chapters = append(chapters, chapterFile{path: p, title: title})
		report(float64(i+1) / float64(max(total, 1)))
	}

	var assets []model.GeneratedFile
	for i, a := range book.Assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, err := pathutil.CleanRel(a.Name)
		if err != nil {
			return nil, err
		}
		dir := MiscDir
		if a.IsImage {
			dir = ImageDir
		}
		p := dir + "/" + rel
		if err := taken.claim(p); err != nil {
			return nil, err
		}
		assets = append(assets, model.GeneratedFile{Path: p, Content: a.Content, IsImage: a.IsImage})
		report(float64(len(book.Chapters)+i+1) / float64(max(total, 1)))
	}
	files = append(files, assets...)

	files = append(files,
		model.GeneratedFile{Path: PackageDoc, Content: g.packageDocument(book, chapters)},
		model.GeneratedFile{Path: NcxPath, Content: ncxDocument(book, chapters)},
	)
	report(1)
	return files, nil
}

func withDefaults(book model.Book) model.Book {
	if strings.TrimSpace(book.Title) == "" {
		book.Title = "Untitled"
	}
	if strings.TrimSpace(book.Language) == "" {
		book.Language = "en"
	}
	if strings.TrimSpace(book.Identifier) == "" {
		book.Identifier = "urn:uuid:" + uuid.NewString()
	}
	return book
}

// chapterNames returns one file name per chapter. Generated names are
// zero-padded so that lexicographic order equals insertion order.
func chapterNames(chapters []model.Chapter) ([]string, error) {
	width := max(chapterWidth, len(strconv.Itoa(len(chapters))))
	names := make([]string, len(chapters))
	for i, ch := range chapters {
		if ch.FileName == "" {
			names[i] = fmt.Sprintf("chapter%0*d.xhtml", width, i+1)
			continue
		}
		if err := pathutil.ValidateFileName(ch.FileName); err != nil {
			return nil, err
		}
		if !model.IsMarkup(ch.FileName) {
			return nil, errclass.ErrStructure.WithMessagef("chapter file name must end in .xhtml or .html: %s", ch.FileName)
		}
		names[i] = ch.FileName
	}
	return names, nil
}

// chapterTitle falls back to a title derived from the file name, then to
// the chapter's position.
func chapterTitle(ch model.Chapter, i int) string {
	if t := strings.TrimSpace(ch.Title); t != "" {
		return t
	}
	if ch.FileName != "" {
		base := strings.TrimSuffix(ch.FileName, path.Ext(ch.FileName))
		base = strings.Join(strings.FieldsFunc(base, func(r rune) bool {
			return r == '-' || r == '_' || r == '.' || r == ' '
		}), " ")
		if base != "" {
			return cases.Title(language.Und).String(base)
		}
	}
	return model.ChapterLabel(i + 1)
}

// pathSet rejects paths that collide once case is folded, since the
// archive may be unpacked onto a case-insensitive filesystem.
type pathSet struct {
	fold   cases.Caser
	folded map[string]string
}

func newPathSet() *pathSet {
	return &pathSet{fold: cases.Fold(), folded: map[string]string{}}
}

func (s *pathSet) add(p string) {
	s.folded[s.fold.String(p)] = p
}

func (s *pathSet) claim(p string) error {
	key := s.fold.String(p)
	if prev, ok := s.folded[key]; ok {
		return errclass.ErrIO.WithKind(errclass.KindAlreadyExists).WithMessagef("%s collides with %s", p, prev)
	}
	s.folded[key] = p
	return nil
}

func containerXML() []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlDecl)
	c := doc.CreateElement("container")
	c.CreateAttr("version", "1.0")
	c.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")
	rf := c.CreateElement("rootfiles").CreateElement("rootfile")
	rf.CreateAttr("full-path", PackageDoc)
	rf.CreateAttr("media-type", model.MediaTypeOPF)
	return write(doc)
}

// packageDocument writes the generator's own view of the package. Chapter
// items use file-derived ids; the repairer renumbers them.
func (g *Generator) packageDocument(book model.Book, chapters []chapterFile) []byte {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlDecl)
	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("version", "3.0")
	pkg.CreateAttr("unique-identifier", "bookid")

	meta := pkg.CreateElement("metadata")
	meta.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	id := meta.CreateElement("dc:identifier")
	id.CreateAttr("id", "bookid")
	id.SetText(book.Identifier)
	meta.CreateElement("dc:title").SetText(book.Title)
	meta.CreateElement("dc:language").SetText(book.Language)
	if book.Author != "" {
		meta.CreateElement("dc:creator").SetText(book.Author)
	}
	mod := meta.CreateElement("meta")
	mod.CreateAttr("property", "dcterms:modified")
	mod.SetText(now().UTC().Format("2006-01-02T15:04:05Z"))

	manifest := pkg.CreateElement("manifest")
	item := func(id, href, mediaType string) {
		el := manifest.CreateElement("item")
		el.CreateAttr("id", id)
		el.CreateAttr("href", href)
		el.CreateAttr("media-type", mediaType)
	}
	item("ncx", relToPackage(NcxPath), model.MediaTypeNCX)
	item("css", relToPackage(StylesheetPath), model.MediaTypeCSS)
	spine := pkg.CreateElement("spine")
	spine.CreateAttr("toc", "ncx")
	for _, ch := range chapters {
		cid := "c-" + strings.TrimSuffix(path.Base(ch.path), path.Ext(ch.path))
		item(cid, relToPackage(ch.path), model.MediaTypeXHTML)
		spine.CreateElement("itemref").CreateAttr("idref", cid)
	}
	return write(doc)
}

func ncxDocument(book model.Book, chapters []chapterFile) []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlDecl)
	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	ncx.CreateAttr("version", "2005-1")

	head := ncx.CreateElement("head")
	for _, kv := range [][2]string{
		{"dtb:uid", book.Identifier},
		{"dtb:depth", "1"},
		{"dtb:totalPageCount", "0"},
		{"dtb:maxPageNumber", "0"},
	} {
		m := head.CreateElement("meta")
		m.CreateAttr("name", kv[0])
		m.CreateAttr("content", kv[1])
	}
	ncx.CreateElement("docTitle").CreateElement("text").SetText(book.Title)
	if book.Author != "" {
		ncx.CreateElement("docAuthor").CreateElement("text").SetText(book.Author)
	}

	navMap := ncx.CreateElement("navMap")
	for i, ch := range chapters {
		np := navMap.CreateElement("navPoint")
		np.CreateAttr("id", "np-"+strconv.Itoa(i+1))
		np.CreateAttr("playOrder", strconv.Itoa(i+1))
		np.CreateElement("navLabel").CreateElement("text").SetText(ch.title)
		np.CreateElement("content").CreateAttr("src", relToPackage(ch.path))
	}
	return write(doc)
}

func relToPackage(p string) string {
	return strings.TrimPrefix(p, PackageRoot+"/")
}

func write(doc *etree.Document) []byte {
	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		// Writing to an in-memory buffer cannot fail.
		panic(err)
	}
	return out
}
