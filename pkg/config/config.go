// Package config provides configuration file support for epubpack.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/logging"
)

// Config represents the epubpack configuration.
type Config struct {
	Package PackageConfig `yaml:"package" toml:"package"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// PackageConfig configures packaging sessions.
type PackageConfig struct {
	// StagingDir holds per-session working roots. Empty means the OS temp dir.
	StagingDir string `yaml:"staging_dir" toml:"staging_dir"`
	// OutputDir is the destination directory. Empty means "ask".
	OutputDir string `yaml:"output_dir" toml:"output_dir"`
	// OutputName is a file name template, see pkg/template.
	OutputName  string `yaml:"output_name" toml:"output_name"`
	Compression string `yaml:"compression" toml:"compression"`
	KeepStaging bool   `yaml:"keep_staging" toml:"keep_staging"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // json, text
}

// FileNames are the config files looked up in a directory, in order.
var FileNames = []string{".epubpack.yaml", ".epubpack.yml", ".epubpack.toml"}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Package: PackageConfig{
			OutputName:  "{title}.epub",
			Compression: "default",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the first config file found in dir.
// Returns the default config if none exists.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return Default(), nil
}

// LoadFile loads configuration from path, choosing the decoder by extension.
// Values missing from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("parse %s: %v", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Package.Compression) {
	case "none", "fast", "default", "max":
	default:
		return errclass.ErrConfigInvalid.WithMessagef("package.compression must be none, fast, default or max: %q", c.Package.Compression)
	}
	if strings.TrimSpace(c.Package.OutputName) == "" {
		return errclass.ErrConfigInvalid.WithMessage("package.output_name must not be empty")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("logging.level: %v", err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return errclass.ErrConfigInvalid.WithMessagef("logging.format: %v", err)
	}
	return nil
}

// Logger builds a logger from the logging section.
func (c *Config) Logger() *logging.Logger {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	l := logging.NewLogger(level)
	if format, err := logging.ParseFormat(c.Logging.Format); err == nil {
		l.SetFormat(format)
	}
	return l
}

// Save writes configuration as YAML to dir/.epubpack.yaml.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, FileNames[0]), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
