// Package repair reconciles a generator's package document, spine and
// navigation with the chapter files that were actually staged.
//
// Generators are allowed to emit stale or inconsistent metadata. The
// repairer treats the staged files as the source of truth and rewrites the
// package document structurally, so it never matches on exact markup.
package repair

import (
	"path"
	"sort"
	"strings"

	"github.com/jvs-project/epubpack/internal/navigation"
	"github.com/jvs-project/epubpack/internal/staging"
	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/fsutil"
	"github.com/jvs-project/epubpack/pkg/logging"
	"github.com/jvs-project/epubpack/pkg/mediatype"
	"github.com/jvs-project/epubpack/pkg/model"
)

// Result describes the repaired package. Hrefs are relative to the package
// root; PackageDoc, NcxPath, NavPath and Chapters are relative to the
// container root.
type Result struct {
	PackageDoc  string
	PackageRoot string
	Manifest    []model.ManifestEntry
	Spine       []model.SpineItem
	Navigation  []model.NavigationEntry
	NavHref     string
	NavPath     string
	NcxHref     string
	NcxPath     string
	Chapters    []string
	// Replaced lists documents that were unusable and rewritten from scratch.
	Replaced []string
}

// StepFunc receives the fraction of the repair phase completed so far.
type StepFunc func(fraction float64, label string)

// Repairer rewrites the package metadata of one staged tree.
type Repairer struct {
	tree   *staging.Tree
	logger *logging.Logger
}

// New returns a repairer for tree. A nil logger discards output.
func New(tree *staging.Tree, logger *logging.Logger) *Repairer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Repairer{tree: tree, logger: logger}
}

// scan is a snapshot of the staged tree taken once per repair.
type scan struct {
	files []string
	set   map[string]bool
}

func (s *scan) has(p string) bool { return s.set[p] }

// Repair runs the full reconciliation. The only fatal structural problem is
// a missing (or ambiguous) package document; unusable OPF or NCX content is
// replaced instead.
func (r *Repairer) Repair(onStep StepFunc) (*Result, error) {
	step := func(f float64, label string) {
		if onStep != nil {
			onStep(f, label)
		}
	}

	sc, err := r.scan()
	if err != nil {
		return nil, err
	}
	step(0.05, "scanning staged files")

	pkgDoc, err := r.locatePackage(sc)
	if err != nil {
		return nil, err
	}
	pkgRoot := dirOf(pkgDoc)
	res := &Result{PackageDoc: pkgDoc, PackageRoot: pkgRoot}
	log := r.logger.WithFields(map[string]any{"package": pkgDoc})
	log.Debug("package document located")

	data, err := r.tree.Read(pkgDoc)
	if err != nil {
		return nil, err
	}
	opf, ok := loadOPF(data)
	if !ok {
		log.Warn("package document unusable, synthesizing a minimal one")
		res.Replaced = append(res.Replaced, pkgDoc)
	}

	navPath, navExists := locateNav(sc, pkgRoot)
	chapters, loose := enumerateChapters(sc, pkgRoot, navPath)
	if len(loose) > 0 {
		log.Warn("markup outside the content directory is not part of the spine",
			map[string]any{"files": strings.Join(loose, ",")})
	}
	res.Chapters = chapters
	hrefs := make([]string, len(chapters))
	for i, c := range chapters {
		hrefs[i] = hrefFor(pkgRoot, c)
	}
	step(0.2, "enumerating chapters")

	plan := newManifestPlan(opf, pkgRoot, sc)

	if !navExists {
		if err := r.tree.Replace(navPath, []byte(navigation.Document(hrefs)), model.RoleNav); err != nil {
			return nil, err
		}
		log.Debug("navigation document synthesized", map[string]any{"path": navPath})
	}
	res.NavPath = navPath
	res.NavHref = hrefFor(pkgRoot, navPath)

	excluded := map[string]bool{pkgDoc: true, navPath: true}
	for _, c := range chapters {
		excluded[c] = true
	}
	assets, err := r.collectAssets(sc, pkgRoot, excluded, plan)
	if err != nil {
		return nil, err
	}

	manifest, spine := plan.build(hrefs, assets, res.NavHref)
	res.Manifest = manifest
	res.Spine = spine
	res.NcxPath = plan.ncxPath
	if plan.ncxPath != "" {
		res.NcxHref = hrefFor(pkgRoot, plan.ncxPath)
	}
	out, err := serialize(opf.doc)
	if err != nil {
		return nil, errclass.ErrStructure.WithMessagef("serialize package document: %v", err)
	}
	if err := r.tree.Replace(pkgDoc, out, model.RoleManifest); err != nil {
		return nil, err
	}
	step(0.5, "rebuilding manifest and spine")

	res.Navigation = navigation.Entries(hrefs)
	if plan.ncxPath != "" && sc.has(plan.ncxPath) {
		replaced, err := r.repairNCX(plan.ncxPath, chapters, opf.identifier(), opf.title())
		if err != nil {
			return nil, err
		}
		if replaced {
			log.Warn("NCX unusable, synthesizing a minimal one", map[string]any{"ncx": plan.ncxPath})
			res.Replaced = append(res.Replaced, plan.ncxPath)
		}
	}
	step(0.75, "rebuilding navigation map")

	if err := r.ensureContainer(pkgDoc); err != nil {
		return nil, err
	}
	if err := r.ensureMimetype(); err != nil {
		return nil, err
	}
	step(1, "container repaired")

	log.Info("package repaired", map[string]any{
		"chapters": len(chapters),
		"assets":   len(assets),
		"manifest": len(manifest),
	})
	return res, nil
}

func (r *Repairer) scan() (*scan, error) {
	sc := &scan{set: map[string]bool{}}
	for e, err := range r.tree.Walk("") {
		if err != nil {
			return nil, err
		}
		if e.IsDir {
			continue
		}
		if strings.HasPrefix(e.Name, fsutil.TempPrefix) {
			continue
		}
		sc.files = append(sc.files, e.RelPath)
		sc.set[e.RelPath] = true
	}
	return sc, nil
}

// locatePackage prefers the rootfile named by container.xml and falls back
// to the single file carrying the manifest role.
func (r *Repairer) locatePackage(sc *scan) (string, error) {
	if sc.has(model.ContainerPath) {
		data, err := r.tree.Read(model.ContainerPath)
		if err != nil {
			return "", err
		}
		if p := rootfilePath(data); p != "" && sc.has(p) {
			return p, nil
		}
	}

	var candidates []string
	for _, f := range sc.files {
		if r.tree.Role(f) == model.RoleManifest {
			candidates = append(candidates, f)
		}
	}
	switch len(candidates) {
	case 0:
		return "", errclass.ErrStructure.WithMessage("missing package document")
	case 1:
		return candidates[0], nil
	default:
		return "", errclass.ErrStructure.WithMessagef("multiple package documents: %s", strings.Join(candidates, ", "))
	}
}

// enumerateChapters returns the chapter paths sorted by file name. When the
// content directory under the package root holds markup, that markup is the
// chapter set and loose markup next to the package document is reported
// separately. Navigation documents are never chapters.
func enumerateChapters(sc *scan, pkgRoot, navPath string) (chapters, loose []string) {
	contentDir := joinRel(pkgRoot, model.ContentDir)

	var nested, root []string
	for _, f := range sc.files {
		if f == navPath || !model.IsMarkup(f) || isNavName(path.Base(f)) {
			continue
		}
		switch dirOf(f) {
		case contentDir:
			nested = append(nested, f)
		case pkgRoot:
			root = append(root, f)
		}
	}
	chapters, loose = root, nil
	if len(nested) > 0 {
		chapters, loose = nested, root
	}
	sort.Slice(chapters, func(i, j int) bool {
		return path.Base(chapters[i]) < path.Base(chapters[j])
	})
	return chapters, loose
}

func isNavName(name string) bool {
	for _, n := range model.NavFileNames {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}

// locateNav returns the first conventional navigation document present in
// the package root or its content directory, or the path a synthesized one
// should take.
func locateNav(sc *scan, pkgRoot string) (string, bool) {
	for _, dir := range []string{pkgRoot, joinRel(pkgRoot, model.ContentDir)} {
		for _, name := range model.NavFileNames {
			p := joinRel(dir, name)
			if sc.has(p) {
				return p, true
			}
		}
	}
	return joinRel(pkgRoot, model.NavFileNames[0]), false
}

// collectAssets lists every remaining file under the package root that the
// manifest does not already describe, sorted lexicographically.
func (r *Repairer) collectAssets(sc *scan, pkgRoot string, excluded map[string]bool, plan *manifestPlan) ([]model.ManifestEntry, error) {
	var paths []string
	for _, f := range sc.files {
		if excluded[f] || plan.covers(f) || !underRoot(f, pkgRoot) {
			continue
		}
		if f == model.MimetypePath || strings.HasPrefix(f, "META-INF/") {
			continue
		}
		paths = append(paths, f)
	}
	sort.Strings(paths)

	assets := make([]model.ManifestEntry, 0, len(paths))
	for i, p := range paths {
		content, err := r.tree.Read(p)
		if err != nil {
			return nil, err
		}
		assets = append(assets, model.ManifestEntry{
			ID:        model.AssetID(i),
			Href:      hrefFor(pkgRoot, p),
			MediaType: mediatype.Detect(path.Base(p), content, true),
		})
	}
	return assets, nil
}

func (r *Repairer) ensureMimetype() error {
	ok, err := r.tree.Exists(model.MimetypePath)
	if err != nil {
		return err
	}
	if ok {
		data, err := r.tree.Read(model.MimetypePath)
		if err != nil {
			return err
		}
		if string(data) == model.MimetypeContent {
			return nil
		}
	}
	return r.tree.Replace(model.MimetypePath, []byte(model.MimetypeContent), model.RoleMimetype)
}

func dirOf(p string) string {
	d := path.Dir(p)
	if d == "." {
		return ""
	}
	return d
}

func underRoot(p, root string) bool {
	return root == "" || strings.HasPrefix(p, root+"/")
}
