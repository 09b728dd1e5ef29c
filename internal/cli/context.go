package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jvs-project/epubpack/pkg/color"
	"github.com/jvs-project/epubpack/pkg/config"
	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/logging"
)

// cfg is the effective configuration, loaded before any command runs.
var cfg = config.Default()

// setup loads configuration and installs the global logger.
func setup(cmd *cobra.Command, _ []string) error {
	color.Init(noColor)

	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	if logLevel != "" {
		if _, err := logging.ParseLevel(logLevel); err != nil {
			return errclass.ErrConfigInvalid.WithMessagef("--log-level: %v", err)
		}
		loaded.Logging.Level = logLevel
	}
	cfg = loaded

	logger := cfg.Logger()
	logger.SetOutput(cmd.ErrOrStderr())
	logging.SetGlobal(logger)
	return nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cannot get current directory: %w", err)
	}
	return config.Load(cwd)
}

// stderrIsTerminal reports whether progress bars can be drawn.
func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func fmtErr(format string, args ...any) {
	prefix := "epubpack: "
	if color.Enabled() {
		prefix = color.Error("epubpack:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
