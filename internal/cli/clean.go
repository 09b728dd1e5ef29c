package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jvs-project/epubpack/internal/staging"
	"github.com/jvs-project/epubpack/pkg/logging"
)

var (
	cleanStagingDir string
	cleanMaxAge     time.Duration
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove working roots left behind by crashed builds",
	Long: `Remove working roots older than --max-age from the staging directory.

Roots whose lock is still held by a running build are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cleanStagingDir
		if dir == "" {
			dir = cfg.Package.StagingDir
		}
		if dir == "" {
			dir = staging.DefaultDir()
		}

		res := staging.CleanStale(cmd.Context(), dir, cleanMaxAge, logging.Global())

		if jsonOutput {
			errs := make(map[string]string, len(res.Errors))
			for _, e := range res.Errors {
				errs[e.Path] = e.Error.Error()
			}
			if err := outputJSON(cmd.OutOrStdout(), map[string]any{
				"staging_dir": dir,
				"removed":     res.Removed,
				"skipped":     res.Skipped,
				"errors":      errs,
			}); err != nil {
				return err
			}
		} else {
			out := cmd.OutOrStdout()
			for _, p := range res.Removed {
				fmt.Fprintf(out, "removed %s\n", p)
			}
			for _, p := range res.Skipped {
				fmt.Fprintf(out, "in use  %s\n", p)
			}
			fmt.Fprintf(out, "%d removed, %d in use\n", len(res.Removed), len(res.Skipped))
		}

		if len(res.Errors) > 0 {
			return fmt.Errorf("clean %s: %d roots could not be removed: %v", dir, len(res.Errors), res.Errors[0].Error)
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVar(&cleanStagingDir, "staging-dir", "", "staging directory to clean (default: configured or OS temp dir)")
	cleanCmd.Flags().DurationVar(&cleanMaxAge, "max-age", 24*time.Hour, "only remove roots older than this")
	rootCmd.AddCommand(cleanCmd)
}
