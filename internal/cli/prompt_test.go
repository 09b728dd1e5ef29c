package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/epubpack/internal/pack"
	"github.com/jvs-project/epubpack/pkg/errclass"
)

func TestPromptResolver_NotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	var out bytes.Buffer
	_, err = (&promptResolver{in: f, out: &out}).Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrPermission))
	assert.Empty(t, out.String(), "nothing is asked without a terminal")
}

func TestAnswerDir(t *testing.T) {
	def := t.TempDir()

	got, err := answerDir("  \n", def)
	require.NoError(t, err)
	assert.Equal(t, def, got)

	got, err = answerDir(filepath.Join(def, "books")+"\n", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(def, "books"), got)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err = answerDir("~/books", def)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "books"), got)

	_, err = answerDir("", "")
	assert.True(t, errors.Is(err, errclass.ErrPermission))
}

func TestSharedResolver_AsksOnce(t *testing.T) {
	var calls atomic.Int32
	r := sharedResolver(pack.ResolverFunc(func(context.Context) (string, error) {
		calls.Add(1)
		return "/books", nil
	}))

	for range 3 {
		dir, err := r.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "/books", dir)
	}
	assert.Equal(t, int32(1), calls.Load())
}
