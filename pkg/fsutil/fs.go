package fsutil

import (
	"io"
	"os"
	"path/filepath"

	"github.com/jvs-project/epubpack/pkg/errclass"
)

// FS is the filesystem capability consumed by the packager. Every failure is
// an E_IO error carrying an errclass.IOKind.
type FS interface {
	Exists(path string) (bool, error)
	CreateDir(path string) error
	DeleteRecursive(path string) error
	ReadText(path string) (string, error)
	WriteText(path, text string) error
	ReadBytes(path string) ([]byte, error)
	WriteBytes(path string, data []byte) error
	// Copy copies the file at srcPath into destDir, keeping its base name,
	// and returns the new path.
	Copy(srcPath, destDir string) (string, error)
}

// OSFS implements FS on the host filesystem.
type OSFS struct {
	// FileMode is used for written files; zero means 0644.
	FileMode os.FileMode
}

var _ FS = OSFS{}

func (o OSFS) mode() os.FileMode {
	if o.FileMode == 0 {
		return 0644
	}
	return o.FileMode
}

func (OSFS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errclass.IO("stat", path, err)
}

func (OSFS) CreateDir(path string) error {
	return errclass.IO("mkdir", path, os.MkdirAll(path, 0755))
}

// DeleteRecursive removes path and everything below it. A missing path is
// not an error.
func (OSFS) DeleteRecursive(path string) error {
	return errclass.IO("remove", path, os.RemoveAll(path))
}

func (o OSFS) ReadText(path string) (string, error) {
	data, err := o.ReadBytes(path)
	return string(data), err
}

func (o OSFS) WriteText(path, text string) error {
	return o.WriteBytes(path, []byte(text))
}

func (OSFS) ReadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errclass.IO("read", path, err)
	}
	return data, nil
}

func (o OSFS) WriteBytes(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errclass.IO("mkdir", filepath.Dir(path), err)
	}
	return errclass.IO("write", path, os.WriteFile(path, data, o.mode()))
}

func (o OSFS) Copy(srcPath, destDir string) (string, error) {
	in, err := os.Open(srcPath)
	if err != nil {
		return "", errclass.IO("open", srcPath, err)
	}
	defer in.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", errclass.IO("mkdir", destDir, err)
	}
	dst := filepath.Join(destDir, filepath.Base(srcPath))
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, o.mode())
	if err != nil {
		return "", errclass.IO("create", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", errclass.IO("copy", dst, err)
	}
	if err := out.Close(); err != nil {
		return "", errclass.IO("close", dst, err)
	}
	return dst, nil
}
