package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jvs-project/epubpack/internal/doctor"
)

var (
	doctorStrict bool
	doctorFix    bool
	doctorMaxAge time.Duration
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check staging and output directories",
	Long: `Check the configured staging and output directories.

Reports unwritable directories, working roots and temp archives left by
interrupted builds, and archive locks nobody holds. Use --strict to also
verify every archive in the output directory and --fix to remove what
can be removed safely.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := doctor.NewDoctor(cfg.Package.StagingDir, cfg.Package.OutputDir, doctorMaxAge)
		result, err := doc.Check(doctorStrict)
		if err != nil {
			return fmt.Errorf("doctor: %w", err)
		}

		var removed []string
		if doctorFix {
			removed, err = doctor.Fix(result)
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			if err := outputJSON(cmd.OutOrStdout(), map[string]any{"result": result, "removed": removed}); err != nil {
				return err
			}
		} else {
			out := cmd.OutOrStdout()
			if len(result.Findings) == 0 {
				fmt.Fprintln(out, "Everything looks healthy.")
			} else {
				fmt.Fprintf(out, "Findings (%d):\n", len(result.Findings))
				for _, f := range result.Findings {
					fmt.Fprintf(out, "  [%s] %s: %s", f.Severity, f.Category, f.Description)
					if f.Path != "" {
						fmt.Fprintf(out, " (%s)", f.Path)
					}
					fmt.Fprintln(out)
				}
			}
			for _, p := range removed {
				fmt.Fprintf(out, "removed %s\n", p)
			}
		}

		if !result.Healthy {
			return fmt.Errorf("doctor found %d problems", len(result.Findings))
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "also verify every archive in the output directory")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "remove stale working roots, orphan temp archives and free locks")
	doctorCmd.Flags().DurationVar(&doctorMaxAge, "max-age", 24*time.Hour, "age after which unlocked debris counts as stale")
	rootCmd.AddCommand(doctorCmd)
}
