// Package compression configures the DEFLATE compressor used for archive
// entries after the mimetype.
package compression

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"strings"
)

// CompressionLevel is a flate level.
type CompressionLevel int

const (
	// LevelNone still emits DEFLATE streams, just without compressing.
	LevelNone CompressionLevel = flate.NoCompression
	// LevelFast uses the fastest flate level.
	LevelFast CompressionLevel = flate.BestSpeed
	// LevelDefault uses flate level 6.
	LevelDefault CompressionLevel = 6
	// LevelMax uses the best flate level.
	LevelMax CompressionLevel = flate.BestCompression
)

// Compressor produces DEFLATE writers at a fixed level.
type Compressor struct {
	Level CompressionLevel
}

// NewCompressor creates a compressor with the specified level.
func NewCompressor(level CompressionLevel) *Compressor {
	if level < LevelNone {
		level = LevelNone
	}
	if level > LevelMax {
		level = LevelMax
	}
	return &Compressor{Level: level}
}

// NewCompressorFromString creates a compressor from a level name.
// Valid values: "none", "fast", "default", "max" (or "0", "1", "6", "9").
func NewCompressorFromString(level string) (*Compressor, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "none", "0":
		return NewCompressor(LevelNone), nil
	case "fast", "1":
		return NewCompressor(LevelFast), nil
	case "", "default", "6":
		return NewCompressor(LevelDefault), nil
	case "max", "9":
		return NewCompressor(LevelMax), nil
	default:
		return nil, fmt.Errorf("invalid compression level: %s (must be none, fast, default, or max)", level)
	}
}

// Method is the zip method used for compressed entries.
func (c *Compressor) Method() uint16 {
	return zip.Deflate
}

// Register installs this compressor for zip.Deflate on w.
func (c *Compressor) Register(w *zip.Writer) {
	level := int(c.Level)
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
}

// String returns the level name.
func (c *Compressor) String() string {
	switch c.Level {
	case LevelNone:
		return "none"
	case LevelFast:
		return "fast"
	case LevelDefault:
		return "default"
	case LevelMax:
		return "max"
	default:
		return fmt.Sprintf("level-%d", c.Level)
	}
}
