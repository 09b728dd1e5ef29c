package compression

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestNewCompressorFromString(t *testing.T) {
	tests := []struct {
		level    string
		expected CompressionLevel
	}{
		{"none", LevelNone},
		{"0", LevelNone},
		{"fast", LevelFast},
		{"1", LevelFast},
		{"", LevelDefault},
		{"DEFAULT", LevelDefault},
		{"6", LevelDefault},
		{"max", LevelMax},
		{"9", LevelMax},
	}
	for _, tt := range tests {
		c, err := NewCompressorFromString(tt.level)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tt.level, err)
		}
		if c.Level != tt.expected {
			t.Errorf("%q: expected level %d, got %d", tt.level, tt.expected, c.Level)
		}
	}

	if _, err := NewCompressorFromString("ultra"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestNewCompressor_Clamps(t *testing.T) {
	if c := NewCompressor(-5); c.Level != LevelNone {
		t.Errorf("expected clamp to none, got %d", c.Level)
	}
	if c := NewCompressor(42); c.Level != LevelMax {
		t.Errorf("expected clamp to max, got %d", c.Level)
	}
}

func TestString(t *testing.T) {
	names := map[CompressionLevel]string{
		LevelNone: "none", LevelFast: "fast", LevelDefault: "default", LevelMax: "max", 3: "level-3",
	}
	for level, want := range names {
		if got := (&Compressor{Level: level}).String(); got != want {
			t.Errorf("level %d: expected %s, got %s", level, want, got)
		}
	}
}

func TestRegister_RoundTrip(t *testing.T) {
	for _, level := range []CompressionLevel{LevelNone, LevelFast, LevelMax} {
		c := NewCompressor(level)
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		c.Register(zw)

		payload := strings.Repeat("<p>this is chapter 1</p>", 100)
		w, err := zw.CreateHeader(&zip.FileHeader{Name: "a.xhtml", Method: c.Method()})
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(w, payload)
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}

		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		if err != nil {
			t.Fatal(err)
		}
		if zr.File[0].Method != zip.Deflate {
			t.Errorf("level %s: expected deflate, got %d", c, zr.File[0].Method)
		}
		rc, _ := zr.File[0].Open()
		got, _ := io.ReadAll(rc)
		rc.Close()
		if string(got) != payload {
			t.Errorf("level %s: payload mismatch", c)
		}
	}
}
