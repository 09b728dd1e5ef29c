package cli

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jvs-project/epubpack/pkg/errclass"
	"github.com/jvs-project/epubpack/pkg/mediatype"
	"github.com/jvs-project/epubpack/pkg/model"
)

// bookFile is the YAML form of a book description. Relative file paths are
// resolved against the directory holding the description.
type bookFile struct {
	Identifier string        `yaml:"identifier"`
	Title      string        `yaml:"title"`
	Language   string        `yaml:"language"`
	Author     string        `yaml:"author"`
	Stylesheet string        `yaml:"stylesheet"`
	Chapters   []chapterFile `yaml:"chapters"`
	Assets     []assetFile   `yaml:"assets"`
}

type chapterFile struct {
	Title    string `yaml:"title"`
	Body     string `yaml:"body"`
	BodyFile string `yaml:"body_file"`
	FileName string `yaml:"file_name"`
}

type assetFile struct {
	Name  string `yaml:"name"`
	Path  string `yaml:"path"`
	Image *bool  `yaml:"image"`
}

// loadBook reads a book description and the files it points at.
func loadBook(path string) (model.Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Book{}, errclass.IO("read book", path, err)
	}
	var bf bookFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return model.Book{}, errclass.ErrConfigInvalid.WithMessagef("parse %s: %v", path, err)
	}
	base := filepath.Dir(path)

	book := model.Book{
		Identifier: bf.Identifier,
		Title:      bf.Title,
		Language:   bf.Language,
		Author:     bf.Author,
	}
	if bf.Stylesheet != "" {
		css, err := os.ReadFile(resolve(base, bf.Stylesheet))
		if err != nil {
			return model.Book{}, errclass.IO("read stylesheet", bf.Stylesheet, err)
		}
		book.Stylesheet = string(css)
	}

	for i, ch := range bf.Chapters {
		body := ch.Body
		if ch.BodyFile != "" {
			raw, err := os.ReadFile(resolve(base, ch.BodyFile))
			if err != nil {
				return model.Book{}, errclass.IO("read chapter", ch.BodyFile, err)
			}
			body = string(raw)
		}
		if strings.TrimSpace(body) == "" && ch.Title == "" {
			return model.Book{}, errclass.ErrConfigInvalid.WithMessagef("%s: chapter %d has neither title nor body", path, i+1)
		}
		book.Chapters = append(book.Chapters, model.Chapter{Title: ch.Title, Body: body, FileName: ch.FileName})
	}

	for _, a := range bf.Assets {
		if a.Path == "" {
			return model.Book{}, errclass.ErrConfigInvalid.WithMessagef("%s: asset without path", path)
		}
		content, err := os.ReadFile(resolve(base, a.Path))
		if err != nil {
			return model.Book{}, errclass.IO("read asset", a.Path, err)
		}
		name := a.Name
		if name == "" {
			name = filepath.Base(a.Path)
		}
		book.Assets = append(book.Assets, model.Asset{
			Name:    name,
			Content: content,
			IsImage: isImage(a, name, content),
		})
	}
	return book, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func isImage(a assetFile, name string, content []byte) bool {
	if a.Image != nil {
		return *a.Image
	}
	if mt, ok := mediatype.ByExtension(name); ok {
		return strings.HasPrefix(mt, "image/")
	}
	_, ok := mediatype.SniffImage(content)
	return ok
}
