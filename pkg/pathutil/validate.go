// Package pathutil provides path and name validation utilities for epubpack.
package pathutil

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/jvs-project/epubpack/pkg/errclass"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// CleanRel normalizes a staged relative path: NFC, forward slashes, no
// leading slash, no "." segments. Paths that are empty, absolute, contain
// control characters, or climb out with ".." are rejected with E_PATH_ESCAPE.
func CleanRel(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", errclass.ErrPathEscape.WithMessage("path must not be empty")
	}
	rel = norm.NFC.String(rel)
	rel = strings.ReplaceAll(rel, `\`, "/")

	for _, r := range rel {
		if unicode.IsControl(r) {
			return "", errclass.ErrPathEscape.WithMessagef("path must not contain control characters: %q", rel)
		}
	}
	if strings.HasPrefix(rel, "/") || filepath.VolumeName(rel) != "" {
		return "", errclass.ErrPathEscape.WithMessagef("path must be relative: %s", rel)
	}

	cleaned := path.Clean(rel)
	if cleaned == "." {
		return "", errclass.ErrPathEscape.WithMessagef("path resolves to root: %s", rel)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errclass.ErrPathEscape.WithMessagef("path escapes root: %s", rel)
	}
	return cleaned, nil
}

// ValidateFileName checks a single generated file name (no separators).
func ValidateFileName(name string) error {
	if name == "" {
		return errclass.ErrPathEscape.WithMessage("file name must not be empty")
	}
	name = norm.NFC.String(name)
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return errclass.ErrPathEscape.WithMessagef("file name must not contain separators: %s", name)
	}
	if !nameRegex.MatchString(name) {
		return errclass.ErrPathEscape.WithMessagef("file name must match [a-zA-Z0-9._-]+: %s", name)
	}
	return nil
}

// ValidatePathSafety verifies targetPath does not escape root once symlinks
// are resolved.
func ValidatePathSafety(root, targetPath string) error {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errclass.ErrPathEscape.WithMessagef("cannot resolve root: %v", err)
	}

	// Target may not exist yet; resolve the closest existing ancestor.
	resolvedTarget, err := filepath.EvalSymlinks(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedTarget = resolveClosestAncestor(targetPath)
		} else {
			return errclass.ErrPathEscape.WithMessagef("cannot resolve target: %v", err)
		}
	}

	sep := string(filepath.Separator)
	if !strings.HasPrefix(resolvedTarget+sep, resolvedRoot+sep) &&
		resolvedTarget != resolvedRoot {
		return errclass.ErrPathEscape.WithMessagef("path escapes root: %s", targetPath)
	}
	return nil
}

func resolveClosestAncestor(p string) string {
	dir := filepath.Dir(p)
	base := filepath.Base(p)
	if dir == p {
		return filepath.Clean(p)
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(p)
		}
	}
	return filepath.Join(resolved, base)
}
