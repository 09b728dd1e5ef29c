package repair

import (
	"github.com/beevik/etree"

	"github.com/jvs-project/epubpack/pkg/model"
	"github.com/jvs-project/epubpack/pkg/pathutil"
)

// rootfilePath returns the package document named by a container.xml, or ""
// when the document is unusable.
func rootfilePath(data []byte) string {
	_, root, ok := parseXML(data, "container", NamespaceContainer)
	if !ok {
		return ""
	}
	rf := findDescendant(root, "rootfile", NamespaceContainer)
	if rf == nil {
		return ""
	}
	p, err := pathutil.CleanRel(rf.SelectAttrValue("full-path", ""))
	if err != nil {
		return ""
	}
	return p
}

// ContainerDocument renders META-INF/container.xml pointing at pkgDoc.
func ContainerDocument(pkgDoc string) []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlDecl)
	c := doc.CreateElement("container")
	c.CreateAttr("version", "1.0")
	c.CreateAttr("xmlns", NamespaceContainer)
	rf := c.CreateElement("rootfiles").CreateElement("rootfile")
	rf.CreateAttr("full-path", pkgDoc)
	rf.CreateAttr("media-type", model.MediaTypeOPF)
	out, _ := serialize(doc)
	return out
}

// ensureContainer leaves a container.xml that already names pkgDoc untouched
// and rewrites anything else.
func (r *Repairer) ensureContainer(pkgDoc string) error {
	exists, err := r.tree.Exists(model.ContainerPath)
	if err != nil {
		return err
	}
	if exists {
		data, err := r.tree.Read(model.ContainerPath)
		if err != nil {
			return err
		}
		if rootfilePath(data) == pkgDoc {
			return nil
		}
		r.logger.Warn("container.xml does not name the package document, rewriting",
			map[string]any{"package": pkgDoc})
	}
	return r.tree.Replace(model.ContainerPath, ContainerDocument(pkgDoc), model.RoleContainer)
}
