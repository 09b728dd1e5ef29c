package repair

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/jvs-project/epubpack/pkg/model"
)

// Defaults for a synthesized package document.
const (
	DefaultTitle    = "Untitled"
	DefaultLanguage = "en"
	uniqueIDName    = "bookid"
)

type opfDocument struct {
	doc *etree.Document
	pkg *etree.Element
}

// loadOPF parses data, or synthesizes a minimal package document when data
// is not a usable OPF. The synthesized identifier is derived from data so
// the same broken input always repairs to the same bytes.
func loadOPF(data []byte) (*opfDocument, bool) {
	if doc, pkg, ok := parseXML(data, "package", NamespaceOPF); ok {
		return &opfDocument{doc: doc, pkg: pkg}, true
	}
	id := "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, data).String()
	return minimalOPF(id), false
}

func minimalOPF(identifier string) *opfDocument {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlDecl)

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", NamespaceOPF)
	pkg.CreateAttr("version", "3.0")
	pkg.CreateAttr("unique-identifier", uniqueIDName)

	meta := pkg.CreateElement("metadata")
	meta.CreateAttr("xmlns:dc", NamespaceDC)
	id := meta.CreateElement("dc:identifier")
	id.CreateAttr("id", uniqueIDName)
	id.SetText(identifier)
	meta.CreateElement("dc:title").SetText(DefaultTitle)
	meta.CreateElement("dc:language").SetText(DefaultLanguage)

	pkg.CreateElement("manifest")
	pkg.CreateElement("spine")
	return &opfDocument{doc: doc, pkg: pkg}
}

// identifier returns the dc:identifier named by unique-identifier, else the
// first one found.
func (o *opfDocument) identifier() string {
	want := o.pkg.SelectAttrValue("unique-identifier", "")
	ids := descendants(o.pkg, "identifier", NamespaceDC)
	for _, el := range ids {
		if want != "" && el.SelectAttrValue("id", "") == want {
			return strings.TrimSpace(el.Text())
		}
	}
	if len(ids) > 0 {
		return strings.TrimSpace(ids[0].Text())
	}
	return ""
}

func (o *opfDocument) title() string {
	if el := findDescendant(o.pkg, "title", NamespaceDC); el != nil {
		if t := strings.TrimSpace(el.Text()); t != "" {
			return t
		}
	}
	return DefaultTitle
}

func descendants(parent *etree.Element, tag, namespace string) []*etree.Element {
	var out []*etree.Element
	for _, c := range parent.ChildElements() {
		if isElement(c, tag, namespace) {
			out = append(out, c)
		}
		out = append(out, descendants(c, tag, namespace)...)
	}
	return out
}

// keptItem is a manifest item carried into the rebuilt manifest: either an
// existing stylesheet or NCX item, or one discovered on disk.
type keptItem struct {
	el     *etree.Element
	prefix string
}

// manifestPlan collects what survives from the old manifest before the
// manifest and spine are rebuilt.
type manifestPlan struct {
	opf     *opfDocument
	pkgRoot string
	kept    []keptItem
	covered map[string]bool
	ncx     *etree.Element
	ncxPath string
}

func newManifestPlan(opf *opfDocument, pkgRoot string, sc *scan) *manifestPlan {
	p := &manifestPlan{opf: opf, pkgRoot: pkgRoot, covered: map[string]bool{}}

	for _, m := range childElements(opf.pkg, "manifest", NamespaceOPF) {
		for _, item := range childElements(m, "item", NamespaceOPF) {
			mt := strings.TrimSpace(item.SelectAttrValue("media-type", ""))
			isNCX := strings.EqualFold(mt, model.MediaTypeNCX)
			if !isNCX && !strings.EqualFold(mt, model.MediaTypeCSS) {
				continue
			}
			el := item.Copy()
			p.kept = append(p.kept, keptItem{el: el, prefix: "res"})
			target := resolveHref(pkgRoot, item.SelectAttrValue("href", ""))
			if target != "" {
				p.covered[target] = true
			}
			if isNCX && p.ncx == nil {
				p.ncx = el
				if sc.has(target) {
					p.ncxPath = target
				}
			}
		}
	}

	// Stylesheets and an NCX the generator staged but never declared.
	for _, f := range sc.files {
		if !underRoot(f, pkgRoot) || p.covered[f] {
			continue
		}
		switch strings.ToLower(path.Ext(f)) {
		case ".css":
			p.discover(f, model.MediaTypeCSS, "style")
		case ".ncx":
			if p.ncx == nil {
				p.ncx = p.discover(f, model.MediaTypeNCX, "ncx")
				p.ncxPath = f
			}
		}
	}
	return p
}

func (p *manifestPlan) discover(f, mediaType, prefix string) *etree.Element {
	el := newChild(p.opf.pkg, "item")
	el.CreateAttr("id", "")
	el.CreateAttr("href", hrefFor(p.pkgRoot, f))
	el.CreateAttr("media-type", mediaType)
	p.kept = append(p.kept, keptItem{el: el, prefix: prefix})
	p.covered[f] = true
	return el
}

// covers reports whether a kept item already describes f.
func (p *manifestPlan) covers(f string) bool {
	return p.covered[f]
}

// build rewrites <manifest> and <spine> in the document and returns their
// model form. Kept items come first, in their original order, followed by
// chapters, assets and the navigation document.
func (p *manifestPlan) build(chapterHrefs []string, assets []model.ManifestEntry, navHref string) ([]model.ManifestEntry, []model.SpineItem) {
	generated := make([]model.ManifestEntry, 0, len(chapterHrefs)+len(assets)+1)
	spine := make([]model.SpineItem, 0, len(chapterHrefs))
	for i, href := range chapterHrefs {
		id := model.ChapterID(i)
		generated = append(generated, model.ManifestEntry{ID: id, Href: href, MediaType: model.MediaTypeXHTML})
		spine = append(spine, model.SpineItem{IDRef: id})
	}
	generated = append(generated, assets...)
	generated = append(generated, model.ManifestEntry{
		ID:         model.NavID,
		Href:       navHref,
		MediaType:  model.MediaTypeXHTML,
		Properties: model.NavProperty,
	})

	reserved := make(map[string]bool, len(generated))
	for _, e := range generated {
		reserved[e.ID] = true
	}
	taken := map[string]bool{}
	entries := make([]model.ManifestEntry, 0, len(p.kept)+len(generated))
	for _, k := range p.kept {
		id := strings.TrimSpace(k.el.SelectAttrValue("id", ""))
		if id == "" || reserved[id] || taken[id] {
			id = freeID(k.prefix, reserved, taken)
			k.el.CreateAttr("id", id)
		}
		taken[id] = true
		entries = append(entries, entryOf(k.el))
	}
	entries = append(entries, generated...)

	tocID := ""
	if p.ncx != nil {
		tocID = p.ncx.SelectAttrValue("id", "")
	}
	p.rewrite(generated, spine, tocID)
	return entries, spine
}

func (p *manifestPlan) rewrite(generated []model.ManifestEntry, spine []model.SpineItem, tocID string) {
	pkg := p.opf.pkg

	var oldSpine *etree.Element
	if spines := childElements(pkg, "spine", NamespaceOPF); len(spines) > 0 {
		oldSpine = spines[0]
	}
	for _, m := range childElements(pkg, "manifest", NamespaceOPF) {
		pkg.RemoveChild(m)
	}
	for _, s := range childElements(pkg, "spine", NamespaceOPF) {
		pkg.RemoveChild(s)
	}

	manifest := newChild(pkg, "manifest")
	for _, k := range p.kept {
		manifest.AddChild(k.el)
	}
	for _, e := range generated {
		item := newChild(manifest, "item")
		item.CreateAttr("id", e.ID)
		item.CreateAttr("href", e.Href)
		item.CreateAttr("media-type", e.MediaType)
		if e.Properties != "" {
			item.CreateAttr("properties", e.Properties)
		}
		manifest.AddChild(item)
	}

	spineEl := newChild(pkg, "spine")
	if oldSpine != nil {
		for _, a := range oldSpine.Attr {
			spineEl.CreateAttr(a.FullKey(), a.Value)
		}
	}
	if tocID != "" {
		spineEl.CreateAttr("toc", tocID)
	} else {
		spineEl.RemoveAttr("toc")
	}
	for _, s := range spine {
		ref := newChild(spineEl, "itemref")
		ref.CreateAttr("idref", s.IDRef)
		spineEl.AddChild(ref)
	}

	at := 0
	if metas := childElements(pkg, "metadata", NamespaceOPF); len(metas) > 0 {
		at = metas[0].Index() + 1
	}
	pkg.InsertChildAt(at, manifest)
	pkg.InsertChildAt(at+1, spineEl)
}

func entryOf(el *etree.Element) model.ManifestEntry {
	return model.ManifestEntry{
		ID:         el.SelectAttrValue("id", ""),
		Href:       el.SelectAttrValue("href", ""),
		MediaType:  el.SelectAttrValue("media-type", ""),
		Properties: el.SelectAttrValue("properties", ""),
	}
}

func freeID(prefix string, reserved, taken map[string]bool) string {
	if !reserved[prefix] && !taken[prefix] {
		return prefix
	}
	for n := 1; ; n++ {
		id := prefix + strconv.Itoa(n)
		if !reserved[id] && !taken[id] {
			return id
		}
	}
}

// resolveHref maps a manifest href to a container-root path. External and
// empty hrefs resolve to "".
func resolveHref(pkgRoot, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimSpace(href)
	if href == "" || strings.Contains(href, "://") {
		return ""
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return joinRel(pkgRoot, href)
}
