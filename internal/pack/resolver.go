package pack

import (
	"context"
	"os"
	"strings"

	"github.com/jvs-project/epubpack/pkg/errclass"
)

// Resolver picks the output directory when none is configured.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticResolver always resolves to the same directory.
type StaticResolver string

// Resolve returns the directory, or E_PERMISSION when it is empty.
func (s StaticResolver) Resolve(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", errclass.ErrPermission.WithMessage("no output directory configured")
	}
	return string(s), nil
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context) (string, error) {
	return f(ctx)
}

// ensureWritable creates dir if needed and proves it accepts new files.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errclass.ErrPermission.WithMessagef("output directory %s: %v", dir, err).Wrap(err)
	}
	probe, err := os.CreateTemp(dir, ".epubpack-probe-*")
	if err != nil {
		return errclass.ErrPermission.WithMessagef("output directory %s is not writable: %v", dir, err).Wrap(err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}
