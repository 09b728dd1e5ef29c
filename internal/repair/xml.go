package repair

import (
	"net/url"
	"path"
	"strings"

	"github.com/beevik/etree"
)

// Namespaces of the documents the repairer rewrites.
const (
	NamespaceOPF       = "http://www.idpf.org/2007/opf"
	NamespaceDC        = "http://purl.org/dc/elements/1.1/"
	NamespaceContainer = "urn:oasis:names:tc:opendocument:xmlns:container"
)

const xmlDecl = `version="1.0" encoding="UTF-8"`

// parseXML returns the parsed document and its root, or ok=false when the
// bytes are not well-formed XML with a root element named rootTag.
func parseXML(data []byte, rootTag, namespace string) (*etree.Document, *etree.Element, bool) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, nil, false
	}
	root := doc.Root()
	if root == nil || !isElement(root, rootTag, namespace) {
		return nil, nil, false
	}
	return doc, root, true
}

// isElement matches by local name and namespace. An element with no
// resolvable namespace is accepted so that generators which omit xmlns are
// still repaired rather than rejected.
func isElement(el *etree.Element, tag, namespace string) bool {
	if el.Tag != tag {
		return false
	}
	ns := el.NamespaceURI()
	return ns == "" || ns == namespace
}

// childElements returns the direct children of parent matching tag.
func childElements(parent *etree.Element, tag, namespace string) []*etree.Element {
	var out []*etree.Element
	for _, c := range parent.ChildElements() {
		if isElement(c, tag, namespace) {
			out = append(out, c)
		}
	}
	return out
}

// findDescendant returns the first element below parent matching tag.
func findDescendant(parent *etree.Element, tag, namespace string) *etree.Element {
	for _, c := range parent.ChildElements() {
		if isElement(c, tag, namespace) {
			return c
		}
		if found := findDescendant(c, tag, namespace); found != nil {
			return found
		}
	}
	return nil
}

// newChild creates an element using the same prefix as its parent so the
// element lands in the parent's namespace.
func newChild(parent *etree.Element, tag string) *etree.Element {
	el := etree.NewElement(tag)
	el.Space = parent.Space
	return el
}

// setSpace applies prefix to el and all of its descendants.
func setSpace(el *etree.Element, prefix string) {
	el.Space = prefix
	for _, c := range el.ChildElements() {
		setSpace(c, prefix)
	}
}

// serialize writes doc with a leading XML declaration and normalized
// two-space indentation. Re-serializing the output yields the same bytes.
func serialize(doc *etree.Document) ([]byte, error) {
	hasDecl := false
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			hasDecl = true
			break
		}
	}
	if !hasDecl {
		doc.InsertChildAt(0, &etree.ProcInst{Target: "xml", Inst: xmlDecl})
	}
	doc.Indent(2)
	return doc.WriteToBytes()
}

// relHref expresses target (relative to the container root) relative to
// fromDir (also container-root relative, "" for the root itself).
func relHref(fromDir, target string) string {
	if fromDir == "" || fromDir == "." {
		return target
	}
	from := strings.Split(fromDir, "/")
	to := strings.Split(target, "/")
	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	parts := make([]string, 0, len(from)-i+len(to)-i)
	for range from[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[i:]...)
	return strings.Join(parts, "/")
}

// hrefFor is relHref percent-encoded segment by segment, for use in href
// attributes. resolveHref reverses it.
func hrefFor(fromDir, target string) string {
	parts := strings.Split(relHref(fromDir, target), "/")
	for i, p := range parts {
		if p != ".." {
			parts[i] = url.PathEscape(p)
		}
	}
	return strings.Join(parts, "/")
}

// joinRel joins a package-root-relative href onto the package root.
func joinRel(root, href string) string {
	if root == "" {
		return path.Clean(href)
	}
	return path.Join(root, href)
}
