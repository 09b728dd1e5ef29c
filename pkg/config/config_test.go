package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Package.Compression != "default" {
		t.Errorf("expected default compression, got %s", cfg.Package.Compression)
	}
	if cfg.Package.OutputName != "{title}.epub" {
		t.Errorf("unexpected output name %q", cfg.Package.OutputName)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoad_NotExists(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default level, got %s", cfg.Logging.Level)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	content := `
package:
  output_dir: /srv/books
  compression: max
  keep_staging: true
logging:
  level: debug
`
	if err := os.WriteFile(filepath.Join(dir, ".epubpack.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Package.OutputDir != "/srv/books" || cfg.Package.Compression != "max" || !cfg.Package.KeepStaging {
		t.Errorf("unexpected package config: %+v", cfg.Package)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug, got %s", cfg.Logging.Level)
	}
	// untouched keys keep defaults
	if cfg.Package.OutputName != "{title}.epub" || cfg.Logging.Format != "text" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	content := `
[package]
staging_dir = "/var/tmp/epubpack"
compression = "fast"

[logging]
format = "json"
`
	if err := os.WriteFile(filepath.Join(dir, ".epubpack.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Package.StagingDir != "/var/tmp/epubpack" || cfg.Package.Compression != "fast" {
		t.Errorf("unexpected package config: %+v", cfg.Package)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected json, got %s", cfg.Logging.Format)
	}
}

func TestLoad_YAMLWinsOverTOML(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, ".epubpack.yaml"), []byte("package:\n  compression: none\n"), 0644)
	os.WriteFile(filepath.Join(dir, ".epubpack.toml"), []byte("[package]\ncompression = \"max\"\n"), 0644)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Package.Compression != "none" {
		t.Errorf("expected yaml to win, got %s", cfg.Package.Compression)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"bad.yaml":  "package: [unclosed",
		"bad2.yaml": "package:\n  compression: ultra\n",
		"bad3.yaml": "logging:\n  level: loud\n",
		"bad4.toml": "[logging]\nformat = \"xml\"\n",
		"bad5.yaml": "package:\n  output_name: \"  \"\n",
	}
	for name, content := range tests {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadFile(path)
		if !errors.Is(err, errclass.ErrConfigInvalid) {
			t.Errorf("%s: expected E_CONFIG_INVALID, got %v", name, err)
		}
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Package.OutputDir = "/books"
	if err := Save(dir, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Package.OutputDir != "/books" {
		t.Errorf("expected /books, got %s", loaded.Package.OutputDir)
	}
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warn"
	if l := cfg.Logger(); l == nil {
		t.Fatal("expected logger")
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		t.Fatal(err)
	}
}
