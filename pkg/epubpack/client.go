package epubpack

import (
	"context"
	"time"

	"github.com/jvs-project/epubpack/internal/compression"
	"github.com/jvs-project/epubpack/internal/pack"
	"github.com/jvs-project/epubpack/internal/staging"
	"github.com/jvs-project/epubpack/internal/verify"
	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/logging"
	"github.com/jvs-project/epubpack/pkg/model"
	"github.com/jvs-project/epubpack/pkg/progress"
)

// Re-exported types so callers never import internal packages.
type (
	Book          = model.Book
	Chapter       = model.Chapter
	Asset         = model.Asset
	Builder       = pack.Builder
	Resolver      = pack.Resolver
	Generator     = pack.Generator
	Event         = progress.Event
	VerifyResult  = verify.Result
	CleanupResult = staging.CleanStaleResult
)

// Options configures a Client.
type Options struct {
	OutputDir   string // Destination directory; Resolver is asked when empty
	StagingDir  string // Parent of working roots; the OS temp dir when empty
	OutputName  string // File name template, e.g. "{author} - {title}.epub"
	Compression string // none, fast, default or max
	KeepStaging bool   // Keep working roots after a successful save
	Resolver    Resolver
	Generator   Generator
	Logger      *logging.Logger
}

// Client packages books with a fixed set of options.
type Client struct {
	opts pack.Options
}

// New validates opts and returns a client.
func New(opts Options) (*Client, error) {
	comp, err := compression.NewCompressorFromString(opts.Compression)
	if err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessage(err.Error())
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{opts: pack.Options{
		StagingDir:  opts.StagingDir,
		OutputDir:   opts.OutputDir,
		OutputName:  opts.OutputName,
		Compression: comp,
		KeepStaging: opts.KeepStaging,
		Generator:   opts.Generator,
		Resolver:    opts.Resolver,
		Logger:      logger,
	}}, nil
}

// NewBuilder returns an idle builder for book, for callers that add
// chapters incrementally or need the package context after saving.
func (c *Client) NewBuilder(book Book) *Builder {
	return pack.New(book, c.opts)
}

// Package builds book in one call and returns the archive path.
// onProgress may be nil. The working root is always removed unless the
// client keeps staging and the save succeeded.
func (c *Client) Package(ctx context.Context, book Book, onProgress func(Event)) (string, error) {
	b := c.NewBuilder(book)
	if err := b.Prepare(ctx); err != nil {
		b.DiscardChanges()
		return "", err
	}
	return b.Save(ctx, onProgress)
}

// Verify checks the container invariants of a finished archive. Strict
// verification also fails on warnings.
func (c *Client) Verify(path string, strict bool) (*VerifyResult, error) {
	return verify.NewVerifier(strict).VerifyArchive(path)
}

// CleanStale removes working roots older than maxAge that no live session
// holds.
func (c *Client) CleanStale(ctx context.Context, maxAge time.Duration) CleanupResult {
	dir := c.opts.StagingDir
	if dir == "" {
		dir = staging.DefaultDir()
	}
	return staging.CleanStale(ctx, dir, maxAge, c.opts.Logger)
}
