// Package model defines the data types shared by the packaging pipeline.
package model

import (
	"path"
	"strings"
)

// Role tags a staged file with its function in the container. It is inferred
// once when the file is staged and carried explicitly afterward.
type Role string

const (
	RoleMimetype  Role = "mimetype"
	RoleContainer Role = "container"
	RoleManifest  Role = "manifest"
	RoleNcx       Role = "ncx"
	RoleNav       Role = "nav"
	RoleChapter   Role = "chapter"
	RoleAsset     Role = "asset"
	RoleOther     Role = "other"
)

// Well-known container paths and values.
const (
	MimetypePath    = "mimetype"
	MimetypeContent = "application/epub+zip"
	ContainerPath   = "META-INF/container.xml"
	ContentDir      = "content"
)

// NavFileNames are the conventional navigation document names, relative to
// the package root, in lookup order.
var NavFileNames = []string{"nav.xhtml", "toc.xhtml"}

// StagedFile is one file materialized under the working root.
type StagedFile struct {
	RelPath string
	Content []byte
	Role    Role
}

// InferRole derives a role from a slash-separated relative path. isImage is
// the generator's hint and always yields RoleAsset.
func InferRole(rel string, isImage bool) Role {
	if isImage {
		return RoleAsset
	}
	base := path.Base(rel)
	switch {
	case rel == MimetypePath:
		return RoleMimetype
	case rel == ContainerPath:
		return RoleContainer
	case strings.HasPrefix(rel, "META-INF/"):
		return RoleOther
	}

	switch strings.ToLower(path.Ext(base)) {
	case ".opf":
		return RoleManifest
	case ".ncx":
		return RoleNcx
	case ".xhtml", ".html", ".htm":
		for _, nav := range NavFileNames {
			if strings.EqualFold(base, nav) {
				return RoleNav
			}
		}
		return RoleChapter
	case "":
		return RoleOther
	default:
		return RoleAsset
	}
}

// IsMarkup reports whether name has a chapter markup extension.
func IsMarkup(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xhtml", ".html", ".htm":
		return true
	}
	return false
}
