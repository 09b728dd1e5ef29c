package verify

import (
	"archive/zip"
	"time"

	"github.com/jvs-project/epubpack/pkg/errclass"
)

// Entry describes one archive member.
type Entry struct {
	Name           string    `json:"name"`
	Method         string    `json:"method"`
	Size           uint64    `json:"size"`
	CompressedSize uint64    `json:"compressed_size"`
	Modified       time.Time `json:"modified"`
}

// ListEntries returns the members of an archive in stored order.
func ListEntries(archivePath string) ([]Entry, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, errclass.IO("open archive", archivePath, err)
	}
	defer r.Close()

	out := make([]Entry, 0, len(r.File))
	for _, f := range r.File {
		out = append(out, Entry{
			Name:           f.Name,
			Method:         methodName(f.Method),
			Size:           f.UncompressedSize64,
			CompressedSize: f.CompressedSize64,
			Modified:       f.Modified,
		})
	}
	return out, nil
}

func methodName(m uint16) string {
	switch m {
	case zip.Store:
		return "store"
	case zip.Deflate:
		return "deflate"
	default:
		return "other"
	}
}
