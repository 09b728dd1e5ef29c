package pack

import (
	"github.com/jvs-project/epubpack/pkg/model"
)

// PackageContext is the per-session state a Builder accumulates. It is
// owned by one Builder and returned to callers as a copy.
type PackageContext struct {
	SessionID   string                  `json:"session_id"`
	WorkingRoot string                  `json:"working_root"`
	OutputPath  string                  `json:"output_path"`
	PackageDoc  string                  `json:"package_doc,omitempty"`
	Files       []model.StagedFile      `json:"-"`
	Manifest    []model.ManifestEntry   `json:"manifest,omitempty"`
	Spine       []model.SpineItem       `json:"spine,omitempty"`
	Navigation  []model.NavigationEntry `json:"navigation,omitempty"`
	Replaced    []string                `json:"replaced,omitempty"`
	Progress    float64                 `json:"progress"`
}

func (c PackageContext) clone() PackageContext {
	out := c
	out.Files = append([]model.StagedFile(nil), c.Files...)
	out.Manifest = append([]model.ManifestEntry(nil), c.Manifest...)
	out.Spine = append([]model.SpineItem(nil), c.Spine...)
	out.Navigation = append([]model.NavigationEntry(nil), c.Navigation...)
	out.Replaced = append([]string(nil), c.Replaced...)
	return out
}
