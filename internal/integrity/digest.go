// Package integrity computes digests of finished archives.
package integrity

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jvs-project/epubpack/pkg/errclass"
)

// FileDigest returns the hex SHA-256 of the file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errclass.IO("open", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errclass.IO("read", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ContentDigest hashes an archive's members in stored order. Each member
// contributes one line "<method>:<name>:<sha256 of content>"; header
// timestamps are ignored, so rebuilding identical content at another time
// digests the same.
func ContentDigest(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", errclass.IO("open archive", path, err)
	}
	defer r.Close()

	lines := make([]string, 0, len(r.File))
	for _, f := range r.File {
		sum, err := entryHash(f)
		if err != nil {
			return "", errclass.IO("read entry", path+"!"+f.Name, err)
		}
		lines = append(lines, fmt.Sprintf("%d:%s:%s", f.Method, f.Name, sum))
	}

	combined := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(combined[:]), nil
}

func entryHash(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
