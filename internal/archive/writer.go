// Package archive writes EPUB containers: a ZIP whose first entry is an
// uncompressed mimetype, produced in a temp file and moved into place only
// once complete.
package archive

import (
	"archive/zip"
	"context"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/jvs-project/epubpack/internal/compression"
	"github.com/jvs-project/epubpack/internal/staging"
	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/fsutil"
	"github.com/jvs-project/epubpack/pkg/model"
	"github.com/jvs-project/epubpack/pkg/pathutil"
)

// LockSuffix is appended to the destination path to form its lock file.
const LockSuffix = ".lock"

// lockRetry is the polling interval while waiting for another writer of the
// same destination.
const lockRetry = 50 * time.Millisecond

// EntryFunc is called after each entry WriteTree adds.
type EntryFunc func(done, total int, name string)

// Writer produces one archive. It is not safe for concurrent use.
type Writer struct {
	dest     string
	tmp      *os.File
	zw       *zip.Writer
	comp     *compression.Compressor
	lock     *flock.Flock
	modified time.Time

	names    map[string]bool
	mimetype bool
	err      error
	done     bool
}

// NewWriter waits for the destination lock, then opens a temp file next to
// dest. Nothing appears at dest until Close succeeds.
func NewWriter(ctx context.Context, dest string, comp *compression.Compressor) (*Writer, error) {
	if comp == nil {
		comp = compression.NewCompressor(compression.LevelDefault)
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errclass.IO("mkdir", dir, err)
	}

	lock := flock.New(dest + LockSuffix)
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, errclass.IO("lock", lock.Path(), err)
	}
	if !locked {
		return nil, errclass.ErrIO.WithKind(errclass.KindOther).WithMessagef("destination is locked: %s", dest)
	}

	tmp, err := os.CreateTemp(dir, fsutil.TempPrefix+"*.epub")
	if err != nil {
		releaseLock(lock)
		return nil, errclass.IO("create temp archive", dir, err)
	}

	zw := zip.NewWriter(tmp)
	comp.Register(zw)
	return &Writer{
		dest:     dest,
		tmp:      tmp,
		zw:       zw,
		comp:     comp,
		lock:     lock,
		modified: time.Now(),
		names:    make(map[string]bool),
	}, nil
}

// Dest returns the final archive path.
func (w *Writer) Dest() string {
	return w.dest
}

// TempPath returns the in-flight archive path.
func (w *Writer) TempPath() string {
	return w.tmp.Name()
}

// WriteMimetype writes the mimetype entry. It must be the first entry.
func (w *Writer) WriteMimetype() error {
	if err := w.usable(); err != nil {
		return err
	}
	if w.mimetype || len(w.names) > 0 {
		return errclass.ErrStructure.WithMessage("mimetype must be the first entry and written once")
	}
	data := []byte(model.MimetypeContent)
	hdr := &zip.FileHeader{
		Name:               model.MimetypePath,
		Method:             zip.Store,
		ReaderVersion:      20,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: uint64(len(data)),
	}
	// CreateRaw writes no data descriptor and no extra field, so the
	// content sits at a fixed offset after the local header.
	hdr.ModifiedDate, hdr.ModifiedTime = msDosTime(w.modified)
	ew, err := w.zw.CreateRaw(hdr)
	if err != nil {
		return w.fail(errclass.IO("write mimetype", w.tmp.Name(), err))
	}
	if _, err := ew.Write(data); err != nil {
		return w.fail(errclass.IO("write mimetype", w.tmp.Name(), err))
	}
	w.mimetype = true
	w.names[model.MimetypePath] = true
	return nil
}

// Create starts a compressed entry and returns a writer for its content.
func (w *Writer) Create(name string) (io.Writer, error) {
	return w.create(name, w.comp.Method())
}

// WriteFile adds a complete entry. Empty content is stored uncompressed.
func (w *Writer) WriteFile(name string, data []byte) error {
	method := w.comp.Method()
	if len(data) == 0 {
		method = zip.Store
	}
	ew, err := w.create(name, method)
	if err != nil {
		return err
	}
	if _, err := ew.Write(data); err != nil {
		return w.fail(errclass.IO("write entry", name, err))
	}
	return nil
}

func (w *Writer) create(name string, method uint16) (io.Writer, error) {
	if err := w.usable(); err != nil {
		return nil, err
	}
	if !w.mimetype {
		return nil, errclass.ErrStructure.WithMessagef("entry %s written before mimetype", name)
	}
	cleaned, err := pathutil.CleanRel(name)
	if err != nil {
		return nil, errclass.ErrStructure.WithMessage(err.Error()).Wrap(err)
	}
	if w.names[cleaned] {
		return nil, errclass.ErrStructure.WithMessagef("duplicate entry: %s", cleaned)
	}
	ew, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     cleaned,
		Method:   method,
		Modified: w.modified,
	})
	if err != nil {
		return nil, w.fail(errclass.IO("create entry", cleaned, err))
	}
	w.names[cleaned] = true
	return &entryWriter{w: w, name: cleaned, dst: ew}, nil
}

// entryWriter makes any write failure sticky for the whole archive.
type entryWriter struct {
	w    *Writer
	name string
	dst  io.Writer
}

func (e *entryWriter) Write(p []byte) (int, error) {
	n, err := e.dst.Write(p)
	if err != nil {
		return n, e.w.fail(errclass.IO("write entry", e.name, err))
	}
	return n, nil
}

// WriteTree adds every file of tree: mimetype first, then priority paths in
// the given order, then the remaining files depth-first with subdirectories
// before the files of their parent. The staged mimetype file is skipped in
// favor of the canonical entry.
func (w *Writer) WriteTree(tree *staging.Tree, priority []string, onEntry EntryFunc) error {
	if !w.mimetype {
		if err := w.WriteMimetype(); err != nil {
			return err
		}
	}

	var rest []string
	present := map[string]bool{}
	for e, err := range tree.Walk("") {
		if err != nil {
			return w.fail(err)
		}
		if e.IsDir || e.RelPath == model.MimetypePath || strings.HasPrefix(e.Name, fsutil.TempPrefix) {
			continue
		}
		present[e.RelPath] = true
		rest = append(rest, e.RelPath)
	}

	ordered := make([]string, 0, len(rest))
	queued := map[string]bool{}
	for _, p := range priority {
		if present[p] && !queued[p] {
			ordered = append(ordered, p)
			queued[p] = true
		}
	}
	for _, p := range rest {
		if !queued[p] {
			ordered = append(ordered, p)
		}
	}

	for i, rel := range ordered {
		if err := w.copyFile(tree, rel); err != nil {
			return err
		}
		if onEntry != nil {
			onEntry(i+1, len(ordered), rel)
		}
	}
	return nil
}

func (w *Writer) copyFile(tree *staging.Tree, rel string) error {
	_, abs, err := tree.Resolve(rel)
	if err != nil {
		return w.fail(err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return w.fail(errclass.IO("open", abs, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return w.fail(errclass.IO("stat", abs, err))
	}
	if info.Size() == 0 {
		return w.WriteFile(rel, nil)
	}
	ew, err := w.Create(rel)
	if err != nil {
		return err
	}
	if _, err := io.Copy(ew, f); err != nil {
		return w.fail(errclass.IO("copy", abs, err))
	}
	return nil
}

// Close finishes the archive and moves it to its destination.
func (w *Writer) Close() error {
	if w.done {
		return w.err
	}
	if w.err != nil {
		w.Abort()
		return w.err
	}
	if !w.mimetype {
		w.Abort()
		w.err = errclass.ErrStructure.WithMessage("archive has no mimetype entry")
		return w.err
	}

	w.done = true
	defer releaseLock(w.lock)
	tmpPath := w.tmp.Name()
	if err := w.zw.Close(); err != nil {
		return w.cleanup(tmpPath, errclass.IO("finish archive", tmpPath, err))
	}
	if err := w.tmp.Sync(); err != nil {
		return w.cleanup(tmpPath, errclass.IO("fsync", tmpPath, err))
	}
	if err := w.tmp.Close(); err != nil {
		return w.cleanup(tmpPath, errclass.IO("close", tmpPath, err))
	}
	if err := fsutil.RenameAndSync(tmpPath, w.dest); err != nil {
		return w.cleanup(tmpPath, errclass.IO("rename", w.dest, err))
	}
	return nil
}

func (w *Writer) cleanup(tmpPath string, err error) error {
	w.tmp.Close()
	os.Remove(tmpPath)
	w.err = err
	return err
}

// Abort discards the in-flight archive. Safe to call more than once and
// after Close.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.tmp.Close()
	os.Remove(w.tmp.Name())
	releaseLock(w.lock)
}

func (w *Writer) usable() error {
	if w.done {
		return errclass.ErrState.WithMessage("archive already closed")
	}
	return w.err
}

func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return err
}

// releaseLock unlocks and removes the lock file. A waiter that already
// opened the old file may then race a newcomer, which at worst lets two
// writers finish in turn: each publishes by rename, so dest is never torn.
func releaseLock(lock *flock.Flock) {
	lock.Unlock()
	os.Remove(lock.Path())
}

// msDosTime converts t to the MS-DOS date and time fields of a ZIP header.
func msDosTime(t time.Time) (date, clock uint16) {
	t = t.UTC()
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	date = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	clock = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return date, clock
}
