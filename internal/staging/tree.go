// Package staging materializes generated content under a session's working
// root.
package staging

import (
	"io"
	"iter"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/fsutil"
	"github.com/jvs-project/epubpack/pkg/model"
	"github.com/jvs-project/epubpack/pkg/pathutil"
)

// listBatch bounds how many directory entries List reads per syscall.
const listBatch = 64

// Entry is one item yielded by List or Walk.
type Entry struct {
	RelPath string
	Name    string
	IsDir   bool
	Role    model.Role
}

// Tree is an addressable set of files under a working root, keyed by
// slash-separated relative path. It is not safe for concurrent use.
type Tree struct {
	root  string
	fs    fsutil.FS
	files []model.StagedFile
	index map[string]int
}

// NewTree returns a tree rooted at root. An empty root is allowed; every
// operation then fails with E_IO.
func NewTree(root string, fs fsutil.FS) *Tree {
	if fs == nil {
		fs = fsutil.OSFS{}
	}
	return &Tree{root: root, fs: fs, index: make(map[string]int)}
}

// Root returns the working root.
func (t *Tree) Root() string {
	return t.root
}

// Resolve validates rel and returns its cleaned form and absolute path.
func (t *Tree) Resolve(rel string) (string, string, error) {
	if t.root == "" {
		return "", "", errclass.ErrIO.WithKind(errclass.KindOther).WithMessage("working root is not set")
	}
	cleaned, err := pathutil.CleanRel(rel)
	if err != nil {
		return "", "", escapeErr(err)
	}
	if _, err := os.Stat(t.root); err != nil {
		return "", "", errclass.IO("stat working root", t.root, err)
	}
	abs := filepath.Join(t.root, filepath.FromSlash(cleaned))
	if err := pathutil.ValidatePathSafety(t.root, abs); err != nil {
		return "", "", escapeErr(err)
	}
	return cleaned, abs, nil
}

func escapeErr(err error) error {
	return errclass.ErrIO.WithKind(errclass.KindPermissionDenied).WithMessage(err.Error()).Wrap(err)
}

// Put writes content at rel and records its role. The first writer of a
// path wins; staging the same path twice is an E_IO already_exists error.
func (t *Tree) Put(rel string, content []byte, role model.Role) error {
	cleaned, abs, err := t.Resolve(rel)
	if err != nil {
		return err
	}
	if _, dup := t.index[cleaned]; dup {
		return errclass.ErrIO.WithKind(errclass.KindAlreadyExists).WithMessagef("already staged: %s", cleaned)
	}
	if err := t.fs.WriteBytes(abs, content); err != nil {
		return err
	}
	t.index[cleaned] = len(t.files)
	t.files = append(t.files, model.StagedFile{RelPath: cleaned, Content: content, Role: role})
	return nil
}

// Replace overwrites an existing file atomically, keeping its role. Files
// that were never staged through Put are adopted with roleIfNew.
func (t *Tree) Replace(rel string, content []byte, roleIfNew model.Role) error {
	cleaned, abs, err := t.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return errclass.IO("mkdir", filepath.Dir(abs), err)
	}
	if err := fsutil.AtomicWrite(abs, content, 0644); err != nil {
		return errclass.IO("write", abs, err)
	}
	if i, ok := t.index[cleaned]; ok {
		t.files[i].Content = content
		return nil
	}
	t.index[cleaned] = len(t.files)
	t.files = append(t.files, model.StagedFile{RelPath: cleaned, Content: content, Role: roleIfNew})
	return nil
}

// Read returns the current content of rel.
func (t *Tree) Read(rel string) ([]byte, error) {
	cleaned, abs, err := t.Resolve(rel)
	if err != nil {
		return nil, err
	}
	if i, ok := t.index[cleaned]; ok && t.files[i].Content != nil {
		return t.files[i].Content, nil
	}
	return t.fs.ReadBytes(abs)
}

// Exists reports whether rel is present on disk.
func (t *Tree) Exists(rel string) (bool, error) {
	_, abs, err := t.Resolve(rel)
	if err != nil {
		return false, err
	}
	return t.fs.Exists(abs)
}

// EnsureDir creates rel and any missing parents. Idempotent.
func (t *Tree) EnsureDir(rel string) error {
	_, abs, err := t.Resolve(rel)
	if err != nil {
		return err
	}
	return t.fs.CreateDir(abs)
}

// Remove deletes rel if present. Removing a directory removes its staged
// descendants from the tree as well.
func (t *Tree) Remove(rel string) error {
	cleaned, abs, err := t.Resolve(rel)
	if err != nil {
		return err
	}
	if err := t.fs.DeleteRecursive(abs); err != nil {
		return err
	}
	kept := t.files[:0]
	for _, f := range t.files {
		if f.RelPath == cleaned || isUnder(f.RelPath, cleaned) {
			continue
		}
		kept = append(kept, f)
	}
	t.files = kept
	t.reindex()
	return nil
}

func (t *Tree) reindex() {
	t.index = make(map[string]int, len(t.files))
	for i, f := range t.files {
		t.index[f.RelPath] = i
	}
}

func isUnder(p, dir string) bool {
	return len(p) > len(dir) && p[len(dir)] == '/' && p[:len(dir)] == dir
}

// Role returns the role recorded for rel, or an inferred one for files that
// reached the disk some other way.
func (t *Tree) Role(rel string) model.Role {
	if i, ok := t.index[rel]; ok {
		return t.files[i].Role
	}
	return model.InferRole(rel, false)
}

// Files returns the staged files in staging order.
func (t *Tree) Files() []model.StagedFile {
	out := make([]model.StagedFile, len(t.files))
	copy(out, t.files)
	return out
}

// FilesWithRole returns staged files carrying role, in staging order.
func (t *Tree) FilesWithRole(role model.Role) []model.StagedFile {
	var out []model.StagedFile
	for _, f := range t.files {
		if f.Role == role {
			out = append(out, f)
		}
	}
	return out
}

// List yields the direct children of rel ("" or "." for the root). Reading
// is lazy and each range over the sequence starts a fresh listing. Order is
// whatever the filesystem returns.
func (t *Tree) List(rel string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		dirRel, abs, err := t.resolveDir(rel)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		d, err := os.Open(abs)
		if err != nil {
			yield(Entry{}, errclass.IO("open", abs, err))
			return
		}
		defer d.Close()

		for {
			batch, err := d.ReadDir(listBatch)
			for _, de := range batch {
				childRel := path.Join(dirRel, de.Name())
				e := Entry{RelPath: childRel, Name: de.Name(), IsDir: de.IsDir()}
				if !e.IsDir {
					e.Role = t.Role(childRel)
				}
				if !yield(e, nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Entry{}, errclass.IO("readdir", abs, err))
				return
			}
		}
	}
}

func (t *Tree) resolveDir(rel string) (string, string, error) {
	if rel == "" || rel == "." {
		if t.root == "" {
			return "", "", errclass.ErrIO.WithKind(errclass.KindOther).WithMessage("working root is not set")
		}
		return "", t.root, nil
	}
	return t.Resolve(rel)
}

// Walk yields every entry below rel depth-first. Within a directory,
// subdirectories come before files and each group is sorted by name so the
// traversal is reproducible.
func (t *Tree) Walk(rel string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		t.walk(rel, yield)
	}
}

func (t *Tree) walk(rel string, yield func(Entry, error) bool) bool {
	var dirs, files []Entry
	for e, err := range t.List(rel) {
		if err != nil {
			return yield(Entry{}, err)
		}
		if e.IsDir {
			dirs = append(dirs, e)
		} else {
			files = append(files, e)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	for _, d := range dirs {
		if !yield(d, nil) {
			return false
		}
		if !t.walk(d.RelPath, yield) {
			return false
		}
	}
	for _, f := range files {
		if !yield(f, nil) {
			return false
		}
	}
	return true
}
