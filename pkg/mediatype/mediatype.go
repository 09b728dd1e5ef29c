// Package mediatype resolves EPUB manifest media types for staged resources.
//
// Lookup is by extension against a fixed table so results do not depend on
// the host's mime database. Images with a missing or unknown extension are
// sniffed by decoding their header.
package mediatype

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"

	_ "golang.org/x/image/webp"
)

// Fallback is used when nothing better is known.
const Fallback = "application/octet-stream"

var byExt = map[string]string{
	".xhtml": "application/xhtml+xml",
	".html":  "application/xhtml+xml",
	".htm":   "application/xhtml+xml",
	".ncx":   "application/x-dtbncx+xml",
	".opf":   "application/oebps-package+xml",
	".css":   "text/css",
	".js":    "application/javascript",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
	".smil":  "application/smil+xml",
	".pls":   "application/pls+xml",
	".txt":   "text/plain",
}

// ByExtension returns the media type registered for name's extension.
func ByExtension(name string) (string, bool) {
	mt, ok := byExt[strings.ToLower(path.Ext(name))]
	return mt, ok
}

// SniffImage decodes just enough of content to name its image format.
func SniffImage(content []byte) (string, bool) {
	if len(content) == 0 {
		return "", false
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return "", false
	}
	return "image/" + format, true
}

// Detect returns the media type for a resource. For images the sniffed
// format wins over a misleading extension.
func Detect(name string, content []byte, isImage bool) string {
	if isImage {
		if mt, ok := SniffImage(content); ok {
			return mt
		}
	}
	if mt, ok := ByExtension(name); ok {
		return mt
	}
	if mt, ok := SniffImage(content); ok {
		return mt
	}
	return Fallback
}
