package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/epubpack/internal/verify"
	"github.com/jvs-project/epubpack/pkg/color"
)

var verifyStrict bool

var verifyCmd = &cobra.Command{
	Use:   "verify <file.epub>...",
	Short: "Check EPUB container invariants",
	Long: `Check the container invariants of EPUB files.

Checks that mimetype is the first, stored entry with no extra field, that
META-INF/container.xml names a package document, that manifest ids are
unique, that the spine resolves and that exactly one item carries the nav
property. This is not a full EPUB validator.

Examples:
  epubpack verify book.epub
  epubpack verify --strict out/*.epub`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verifier := verify.NewVerifier(verifyStrict)
		results, err := verifier.VerifyAll(args)
		if err != nil {
			return err
		}

		failed := 0
		for _, res := range results {
			if !res.Valid {
				failed++
			}
		}

		if jsonOutput {
			if err := outputJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		} else {
			out := cmd.OutOrStdout()
			for _, res := range results {
				status := color.Success("OK")
				if !res.Valid {
					status = color.Error("INVALID")
				}
				fmt.Fprintf(out, "%s  %s  (%d entries, %d chapters)\n", res.Path, status, res.Entries, res.Chapters)
				for _, p := range res.Problems {
					line := fmt.Sprintf("  %s: %s", p.Severity, p.Message)
					if p.Severity == verify.SeverityWarning {
						line = color.Warning(line)
					}
					fmt.Fprintln(out, line)
				}
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d archives failed verification", failed, len(results))
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false, "treat warnings as failures")
	rootCmd.AddCommand(verifyCmd)
}
