package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jvs-project/epubpack/internal/compression"
	"github.com/jvs-project/epubpack/internal/integrity"
	"github.com/jvs-project/epubpack/internal/pack"
	"github.com/jvs-project/epubpack/pkg/color"
	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/logging"
	"github.com/jvs-project/epubpack/pkg/progress"
)

var (
	buildOutputDir   string
	buildStagingDir  string
	buildOutputName  string
	buildCompression string
	buildKeepStaging bool
	buildJobs        int
)

// buildResult is reported per book.
type buildResult struct {
	Book        string `json:"book"`
	Output      string `json:"output"`
	Size        int64  `json:"size"`
	Chapters    int    `json:"chapters"`
	SHA256      string `json:"sha256"`
	SessionID   string `json:"session_id"`
	WorkingRoot string `json:"working_root,omitempty"`
}

var buildCmd = &cobra.Command{
	Use:   "build <book.yaml>...",
	Short: "Package book descriptions into EPUB files",
	Long: `Package one or more book descriptions into EPUB files.

Each description is built by its own builder in its own working root, so
books are packaged concurrently. When no output directory is configured
and stdin is a terminal, the directory is asked for once.

Examples:
  epubpack build book.yaml
  epubpack build --output-dir out/ a.yaml b.yaml
  epubpack build --compression max --keep-staging book.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comp, err := compressionFor()
		if err != nil {
			return err
		}
		jobs := buildJobs
		if jobs < 1 {
			jobs = 1
		}
		showProgress := !jsonOutput && stderrIsTerminal() && (len(args) == 1 || jobs == 1)

		resolver := sharedResolver(&promptResolver{in: os.Stdin, out: cmd.ErrOrStderr()})
		results := make([]buildResult, len(args))

		g, gctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(jobs)
		for i, path := range args {
			g.Go(func() error {
				res, err := buildOne(gctx, path, comp, resolver, showProgress)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				results[i] = res
				return nil
			})
		}
		err = g.Wait()

		done := make([]buildResult, 0, len(results))
		for _, r := range results {
			if r.Output != "" {
				done = append(done, r)
			}
		}
		if jsonOutput {
			if jerr := outputJSON(cmd.OutOrStdout(), done); jerr != nil {
				return jerr
			}
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range done {
			fmt.Fprintf(out, "%s %s (%s, %d chapters)\n",
				color.Success("packaged"), color.Path(r.Output), humanize.Bytes(uint64(r.Size)), r.Chapters)
			if r.WorkingRoot != "" {
				fmt.Fprintf(out, "  working root kept at %s\n", r.WorkingRoot)
			}
		}
		return err
	},
}

func buildOne(ctx context.Context, path string, comp *compression.Compressor, resolver pack.Resolver, showProgress bool) (buildResult, error) {
	book, err := loadBook(path)
	if err != nil {
		return buildResult{}, err
	}

	outputDir := buildOutputDir
	if outputDir == "" {
		outputDir = cfg.Package.OutputDir
	}
	stagingDir := buildStagingDir
	if stagingDir == "" {
		stagingDir = cfg.Package.StagingDir
	}
	outputName := buildOutputName
	if outputName == "" {
		outputName = cfg.Package.OutputName
	}

	b := pack.New(book, pack.Options{
		StagingDir:  stagingDir,
		OutputDir:   outputDir,
		OutputName:  outputName,
		Compression: comp,
		KeepStaging: buildKeepStaging || cfg.Package.KeepStaging,
		Resolver:    resolver,
		Logger:      logging.Global().With("book", filepath.Base(path)),
	})
	if err := b.Prepare(ctx); err != nil {
		b.DiscardChanges()
		return buildResult{}, err
	}

	term := progress.NewTerminal(filepath.Base(path), showProgress)
	output, err := b.Save(ctx, term.Callback())
	if err != nil {
		return buildResult{}, err
	}

	res := buildResult{Book: path, Output: output}
	if info, err := os.Stat(output); err == nil {
		res.Size = info.Size()
	}
	if sum, err := integrity.FileDigest(output); err == nil {
		res.SHA256 = sum
	}
	pc := b.Context()
	res.Chapters = len(pc.Spine)
	res.SessionID = pc.SessionID
	if b.State() == pack.StateArchived {
		res.WorkingRoot = pc.WorkingRoot
	}
	return res, nil
}

func compressionFor() (*compression.Compressor, error) {
	level := buildCompression
	if level == "" {
		level = cfg.Package.Compression
	}
	comp, err := compression.NewCompressorFromString(level)
	if err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessage(err.Error())
	}
	return comp, nil
}

// sharedResolver asks r at most once and hands every builder the same answer.
func sharedResolver(r pack.Resolver) pack.Resolver {
	var (
		once sync.Once
		dir  string
		err  error
	)
	return pack.ResolverFunc(func(ctx context.Context) (string, error) {
		once.Do(func() { dir, err = r.Resolve(ctx) })
		return dir, err
	})
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutputDir, "output-dir", "o", "", "directory receiving the EPUB files")
	buildCmd.Flags().StringVar(&buildStagingDir, "staging-dir", "", "directory holding working roots (default: OS temp dir)")
	buildCmd.Flags().StringVar(&buildOutputName, "name", "", "output file name template, e.g. \"{author} - {title}.epub\"")
	buildCmd.Flags().StringVar(&buildCompression, "compression", "", "compression level: none, fast, default, max")
	buildCmd.Flags().BoolVar(&buildKeepStaging, "keep-staging", false, "keep working roots after a successful build")
	buildCmd.Flags().IntVarP(&buildJobs, "jobs", "j", 4, "books packaged at once")
	rootCmd.AddCommand(buildCmd)
}
