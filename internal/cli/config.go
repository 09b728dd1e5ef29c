package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jvs-project/epubpack/pkg/config"
	"github.com/jvs-project/epubpack/pkg/errclass"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage epubpack configuration",
	Long: `Manage epubpack configuration stored in .epubpack.yaml (or .toml).

Configuration options:
  package.staging_dir   - Directory holding working roots (default: OS temp dir)
  package.output_dir    - Destination directory (empty: ask)
  package.output_name   - Output file name template ({title}, {author}, {language}, {date})
  package.compression   - none, fast, default, max
  package.keep_staging  - Keep working roots after a successful build
  logging.level         - debug, info, warn, error
  logging.format        - json, text

Available commands:
  show                  - Show the effective configuration
  init                  - Write a default .epubpack.yaml`,
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), cfg)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "# epubpack configuration")
		if configPath != "" {
			fmt.Fprintf(out, "# Location: %s\n", configPath)
		}
		fmt.Fprint(out, string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default .epubpack.yaml",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		path := filepath.Join(dir, config.FileNames[0])
		if _, err := os.Stat(path); err == nil && !configForce {
			return errclass.ErrConfigInvalid.WithMessagef("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(dir, config.Default()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
