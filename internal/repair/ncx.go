package repair

import (
	"github.com/beevik/etree"

	"github.com/jvs-project/epubpack/internal/navigation"
	"github.com/jvs-project/epubpack/pkg/model"
)

// repairNCX rebuilds the navPoints of the NCX at ncxPath, leaving its head,
// docTitle and any navMap labels alone. An unusable NCX is replaced by a
// minimal one; the returned flag reports that case.
func (r *Repairer) repairNCX(ncxPath string, chapters []string, uid, title string) (bool, error) {
	data, err := r.tree.Read(ncxPath)
	if err != nil {
		return false, err
	}
	ncxDir := dirOf(ncxPath)
	hrefs := make([]string, len(chapters))
	for i, c := range chapters {
		hrefs[i] = hrefFor(ncxDir, c)
	}

	doc, root, ok := parseXML(data, "ncx", navigation.NamespaceNCX)
	if !ok {
		out := navigation.NCX(uid, title, hrefs)
		return true, r.tree.Replace(ncxPath, []byte(out), model.RoleNcx)
	}

	var navMap *etree.Element
	for i, m := range childElements(root, "navMap", navigation.NamespaceNCX) {
		if i == 0 {
			navMap = m
			continue
		}
		root.RemoveChild(m)
	}
	if navMap == nil {
		navMap = newChild(root, "navMap")
		root.AddChild(navMap)
	}
	for _, np := range childElements(navMap, "navPoint", navigation.NamespaceNCX) {
		navMap.RemoveChild(np)
	}
	for _, e := range navigation.Entries(hrefs) {
		navigation.AppendNavPoint(navMap, e)
	}
	if root.Space != "" {
		for _, np := range navMap.ChildElements() {
			setSpace(np, root.Space)
		}
	}

	out, err := serialize(doc)
	if err != nil {
		return false, err
	}
	return false, r.tree.Replace(ncxPath, out, model.RoleNcx)
}
