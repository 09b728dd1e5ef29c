// Package epubpack provides a high-level library API for packaging books
// into EPUB files.
//
// This package is the integration point for programs that render books
// themselves and want a valid container out of them. It wraps the internal
// packages into a small, stable public API.
//
// # Concurrency Safety
//
//   - A Client is immutable after New and may be shared between goroutines.
//
//   - Each Package call uses its own Builder with its own locked working
//     root, so several books can be packaged concurrently.
//
//   - A Builder obtained from NewBuilder is single-writer: do not call its
//     methods from several goroutines at once.
//
//   - Two Package calls that resolve to the same output path serialize on
//     the output lock; the later one replaces the earlier file.
//
// # Recommended Usage Pattern
//
//	client, err := epubpack.New(epubpack.Options{OutputDir: "out"})
//	path, err := client.Package(ctx, epubpack.Book{
//	    Title:    "Air Born",
//	    Chapters: []epubpack.Chapter{{Title: "One", Body: "<p>...</p>"}},
//	}, nil)
//	res, err := client.Verify(path)
package epubpack
