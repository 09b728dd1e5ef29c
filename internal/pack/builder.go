// Package pack drives one packaging session: generate, stage, repair and
// archive a book into a single EPUB file.
package pack

import (
	"context"
	"path/filepath"

	"github.com/jvs-project/epubpack/internal/archive"
	"github.com/jvs-project/epubpack/internal/compression"
	"github.com/jvs-project/epubpack/internal/content"
	"github.com/jvs-project/epubpack/internal/repair"
	"github.com/jvs-project/epubpack/internal/staging"
	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/fsutil"
	"github.com/jvs-project/epubpack/pkg/logging"
	"github.com/jvs-project/epubpack/pkg/model"
	"github.com/jvs-project/epubpack/pkg/progress"
	"github.com/jvs-project/epubpack/pkg/template"
)

// Generator renders a book into container files.
type Generator interface {
	Generate(ctx context.Context, book model.Book, onProgress func(float64)) ([]model.GeneratedFile, error)
}

// Phase bands of the overall percentage.
var phaseRanges = map[progress.Phase]progress.Range{
	progress.PhaseStaging:   {Start: 0, End: 40},
	progress.PhaseRepairing: {Start: 40, End: 60},
	progress.PhaseArchiving: {Start: 60, End: 100},
}

// generateShare is the part of the staging band spent inside the generator.
const generateShare = 0.5

// Options configures a Builder. Zero values select defaults.
type Options struct {
	// StagingDir holds session working roots; the OS temp dir when empty.
	StagingDir string
	// OutputDir receives the archive. When empty, Resolver is asked.
	OutputDir string
	// OutputName is a template.OutputName pattern.
	OutputName  string
	Compression *compression.Compressor
	KeepStaging bool
	Generator   Generator
	Resolver    Resolver
	FS          fsutil.FS
	Logger      *logging.Logger
}

// Builder packages one book. It is a single-writer object: callers must not
// use one Builder from several goroutines at once. Independent Builders
// share nothing and may run concurrently.
type Builder struct {
	opts     Options
	book     model.Book
	state    State
	session  *staging.Session
	tree     *staging.Tree
	pc       PackageContext
	priority []string
	logger   *logging.Logger
}

// New returns an idle builder for book. Chapters and assets already on book
// are kept; more can be added after Prepare.
func New(book model.Book, opts Options) *Builder {
	if opts.Generator == nil {
		opts.Generator = content.New()
	}
	if opts.Compression == nil {
		opts.Compression = compression.NewCompressor(compression.LevelDefault)
	}
	if opts.FS == nil {
		opts.FS = fsutil.OSFS{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Global()
	}
	return &Builder{opts: opts, book: book, logger: opts.Logger}
}

// State returns the current lifecycle state.
func (b *Builder) State() State {
	return b.state
}

// Context returns a snapshot of the package context.
func (b *Builder) Context() PackageContext {
	return b.pc.clone()
}

// Prepare resolves the destination and allocates a locked working root.
// Calling it again once prepared is a no-op.
func (b *Builder) Prepare(ctx context.Context) error {
	switch b.state {
	case StatePrepared:
		return nil
	case StateIdle:
	default:
		return errclass.ErrState.WithMessagef("cannot prepare a %s builder", b.state)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := b.opts.OutputDir
	if dir == "" {
		if b.opts.Resolver == nil {
			b.state = StateFailed
			return errclass.ErrPermission.WithMessage("no output directory and no resolver")
		}
		resolved, err := b.opts.Resolver.Resolve(ctx)
		if err != nil {
			b.state = StateFailed
			return errclass.ErrPermission.WithMessagef("resolve output directory: %v", err).Wrap(err)
		}
		dir = resolved
	}
	if err := ensureWritable(dir); err != nil {
		b.state = StateFailed
		return err
	}

	session, err := staging.NewSession(b.opts.StagingDir)
	if err != nil {
		b.state = StateFailed
		return err
	}
	b.session = session
	b.tree = staging.NewTree(session.Root, b.opts.FS)
	b.pc = PackageContext{
		SessionID:   session.ID,
		WorkingRoot: session.Root,
		OutputPath:  filepath.Join(dir, template.OutputName(b.opts.OutputName, b.book)),
	}
	b.logger = b.opts.Logger.WithFields(map[string]any{"session": session.ID})
	b.state = StatePrepared
	b.logger.Debug("session prepared", map[string]any{
		"working_root": session.Root,
		"output":       b.pc.OutputPath,
	})
	return nil
}

// AddChapter appends a chapter. Only legal while prepared.
func (b *Builder) AddChapter(ch model.Chapter) error {
	if b.state != StatePrepared {
		return errclass.ErrState.WithMessagef("add chapter: builder is %s, not prepared", b.state)
	}
	b.book.Chapters = append(b.book.Chapters, ch)
	return nil
}

// AddAsset appends an asset. Only legal while prepared.
func (b *Builder) AddAsset(a model.Asset) error {
	if b.state != StatePrepared {
		return errclass.ErrState.WithMessagef("add asset: builder is %s, not prepared", b.state)
	}
	b.book.Assets = append(b.book.Assets, a)
	return nil
}

// Save generates, stages, repairs and archives the book and returns the
// archive path. onProgress may be nil; its percentages never decrease.
//
// Cancellation is observed up to the start of archiving. Once archiving
// starts the archive is finished or aborted, never left half written. Any
// error leaves the builder failed with its working root removed and is
// returned as is.
func (b *Builder) Save(ctx context.Context, onProgress progress.Callback) (string, error) {
	if b.state != StatePrepared {
		return "", errclass.ErrState.WithMessagef("save: builder is %s, not prepared", b.state)
	}
	tracker := progress.NewTracker(func(ev progress.Event) {
		b.pc.Progress = ev.Percent
		if onProgress != nil {
			onProgress(ev)
		}
	}, phaseRanges)

	if err := b.stage(ctx, tracker); err != nil {
		return "", b.fail(progress.PhaseStaging, err)
	}
	if err := ctx.Err(); err != nil {
		return "", b.fail(progress.PhaseStaging, err)
	}

	if err := b.repair(tracker); err != nil {
		return "", b.fail(progress.PhaseRepairing, err)
	}
	if err := ctx.Err(); err != nil {
		return "", b.fail(progress.PhaseRepairing, err)
	}

	if err := b.archive(ctx, tracker); err != nil {
		return "", b.fail(progress.PhaseArchiving, err)
	}

	tracker.Finish("done")
	out := b.pc.OutputPath
	b.logger.Info("book packaged", map[string]any{"output": out, "chapters": len(b.pc.Spine)})
	if !b.opts.KeepStaging {
		if err := b.session.Release(); err != nil {
			b.logger.WarnErr("working root cleanup failed", err)
		}
		b.session = nil
		b.state = StateCleaned
	}
	return out, nil
}

func (b *Builder) stage(ctx context.Context, tracker *progress.Tracker) error {
	tracker.Report(progress.PhaseStaging, 0, "generating content")
	files, err := b.opts.Generator.Generate(ctx, b.book, func(f float64) {
		tracker.Report(progress.PhaseStaging, f*generateShare, "generating content")
	})
	if err != nil {
		return err
	}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.tree.Put(f.Path, f.Content, model.InferRole(f.Path, f.IsImage)); err != nil {
			return err
		}
		frac := generateShare + (1-generateShare)*float64(i+1)/float64(len(files))
		tracker.Report(progress.PhaseStaging, frac, "staging "+f.Path)
	}
	b.pc.Files = b.tree.Files()
	b.state = StateStaged
	b.logger.Debug("content staged", map[string]any{"phase": progress.PhaseStaging, "files": len(files)})
	return nil
}

func (b *Builder) repair(tracker *progress.Tracker) error {
	res, err := repair.New(b.tree, b.logger).Repair(func(f float64, label string) {
		tracker.Report(progress.PhaseRepairing, f, label)
	})
	if err != nil {
		return err
	}
	b.pc.PackageDoc = res.PackageDoc
	b.pc.Manifest = res.Manifest
	b.pc.Spine = res.Spine
	b.pc.Navigation = res.Navigation
	b.pc.Replaced = res.Replaced
	b.pc.Files = b.tree.Files()
	b.state = StateRepaired
	b.priority = priorityOf(res)
	return nil
}

// archive runs to completion once started; waiting on the destination lock
// ignores cancellation of ctx.
func (b *Builder) archive(ctx context.Context, tracker *progress.Tracker) error {
	tracker.Report(progress.PhaseArchiving, 0, "archiving")
	w, err := archive.NewWriter(context.WithoutCancel(ctx), b.pc.OutputPath, b.opts.Compression)
	if err != nil {
		return err
	}
	err = w.WriteTree(b.tree, b.priority, func(done, total int, name string) {
		tracker.Report(progress.PhaseArchiving, float64(done)/float64(total), "archiving "+name)
	})
	if err != nil {
		w.Abort()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	b.state = StateArchived
	return nil
}

// priorityOf lists the entries that follow mimetype, in archive order.
func priorityOf(res *repair.Result) []string {
	out := []string{model.ContainerPath, res.PackageDoc}
	if res.NcxPath != "" {
		out = append(out, res.NcxPath)
	}
	out = append(out, res.NavPath)
	return append(out, res.Chapters...)
}

func (b *Builder) fail(phase progress.Phase, err error) error {
	b.state = StateFailed
	b.logger.ErrorErr("packaging failed", err, map[string]any{"phase": phase})
	if rerr := b.session.Release(); rerr != nil {
		b.logger.WarnErr("working root cleanup failed", rerr)
	}
	b.session = nil
	return err
}

// DiscardChanges removes the working root. It is legal in any state and
// does nothing when there is nothing to remove.
func (b *Builder) DiscardChanges() error {
	if b.session == nil {
		return nil
	}
	err := b.session.Release()
	b.session = nil
	if b.state != StateFailed {
		b.state = StateCleaned
	}
	return err
}
