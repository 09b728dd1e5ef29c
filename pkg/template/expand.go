// Package template expands output file name patterns such as "{title}.epub".
package template

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jvs-project/epubpack/pkg/model"
)

// DefaultPattern names the archive after the book title.
const DefaultPattern = "{title}.epub"

// Expand replaces placeholders in text.
//
// Supported placeholders:
//
//	{date}  - current date, YYYY-MM-DD
//	{time}  - current time, HHMMSS
//	{unix}  - current Unix timestamp
//
// Entries in vars override the built-ins. Unknown placeholders are left as is.
func Expand(text string, vars map[string]string) string {
	return expandAt(text, vars, time.Now())
}

func expandAt(text string, vars map[string]string, now time.Time) string {
	placeholders := map[string]string{
		"date": now.Format("2006-01-02"),
		"time": now.Format("150405"),
		"unix": fmt.Sprintf("%d", now.Unix()),
	}
	for k, v := range vars {
		placeholders[k] = v
	}

	result := text
	for key, value := range placeholders {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}
	return result
}

// OutputName expands pattern for book and returns a file name that is safe
// on common filesystems. The result always ends in ".epub".
func OutputName(pattern string, book model.Book) string {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	title := strings.TrimSpace(book.Title)
	if title == "" {
		title = "Untitled"
	}
	name := Expand(pattern, map[string]string{
		"title":    title,
		"author":   strings.TrimSpace(book.Author),
		"language": strings.TrimSpace(book.Language),
	})
	name = SanitizeFileName(name)
	if !strings.HasSuffix(strings.ToLower(name), ".epub") {
		name += ".epub"
	}
	return name
}

// SanitizeFileName replaces path separators, control characters and the
// characters Windows reserves with '_', and trims leading dots and spaces.
func SanitizeFileName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsControl(r), strings.ContainsRune(`/\:*?"<>|`, r):
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}
	out := strings.TrimLeft(strings.TrimSpace(sb.String()), ". ")
	if out == "" {
		return "book"
	}
	return out
}
