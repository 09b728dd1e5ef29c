package model

// Book is the in-memory description a content generator renders.
type Book struct {
	Identifier string
	Title      string
	Language   string
	Author     string
	Stylesheet string
	Chapters   []Chapter
	Assets     []Asset
}

// Chapter is one chapter as supplied by the caller. Body is an HTML fragment.
type Chapter struct {
	Title string
	Body  string
	// FileName overrides the generated chapter file name.
	FileName string
}

// Asset is a binary or text resource referenced by chapters.
type Asset struct {
	Name    string
	Content []byte
	IsImage bool
}

// GeneratedFile is one (path, content, isImage) triple produced by a
// content generator. Path is relative to the container root.
type GeneratedFile struct {
	Path    string
	Content []byte
	IsImage bool
}
