package epubpack_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/epubpack/pkg/epubpack"
	"github.com/jvs-project/epubpack/pkg/errclass"
)

func book(title string) epubpack.Book {
	return epubpack.Book{
		Title: title,
		Chapters: []epubpack.Chapter{
			{Title: "One", Body: "<p>First.</p>"},
			{Title: "Two", Body: "<p>Second.</p>"},
		},
	}
}

func TestClient_PackageAndVerify(t *testing.T) {
	dir := t.TempDir()
	client, err := epubpack.New(epubpack.Options{
		OutputDir:  filepath.Join(dir, "out"),
		StagingDir: filepath.Join(dir, "stage"),
	})
	require.NoError(t, err)

	var last float64
	path, err := client.Package(context.Background(), book("Air Born"), func(ev epubpack.Event) {
		assert.GreaterOrEqual(t, ev.Percent, last)
		last = ev.Percent
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "Air Born.epub"), path)
	assert.Equal(t, 100.0, last)

	res, err := client.Verify(path, true)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 2, res.Chapters)
}

func TestClient_InvalidCompression(t *testing.T) {
	_, err := epubpack.New(epubpack.Options{Compression: "ultra"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrConfigInvalid))
}

func TestClient_NoDestination(t *testing.T) {
	client, err := epubpack.New(epubpack.Options{StagingDir: t.TempDir()})
	require.NoError(t, err)

	_, err = client.Package(context.Background(), book("Lost"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrPermission))
}

func TestClient_NewBuilderAddsChapters(t *testing.T) {
	dir := t.TempDir()
	client, err := epubpack.New(epubpack.Options{OutputDir: dir, StagingDir: filepath.Join(dir, "stage")})
	require.NoError(t, err)

	b := client.NewBuilder(epubpack.Book{Title: "Grown"})
	require.NoError(t, b.Prepare(context.Background()))
	for _, title := range []string{"A", "B", "C"} {
		require.NoError(t, b.AddChapter(epubpack.Chapter{Title: title, Body: "<p>" + title + "</p>"}))
	}
	_, err = b.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, b.Context().Spine, 3)
}

func TestClient_ConcurrentPackages(t *testing.T) {
	dir := t.TempDir()
	client, err := epubpack.New(epubpack.Options{OutputDir: dir, StagingDir: filepath.Join(dir, "stage")})
	require.NoError(t, err)

	titles := []string{"North", "South", "East", "West"}
	var wg sync.WaitGroup
	errs := make([]error, len(titles))
	for i, title := range titles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = client.Package(context.Background(), book(title), nil)
		}()
	}
	wg.Wait()

	for i, title := range titles {
		require.NoError(t, errs[i])
		assert.FileExists(t, filepath.Join(dir, title+".epub"))
	}
}

func TestClient_CleanStale(t *testing.T) {
	stage := t.TempDir()
	stale := filepath.Join(stage, "session-old")
	require.NoError(t, os.Mkdir(stale, 0755))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	client, err := epubpack.New(epubpack.Options{StagingDir: stage})
	require.NoError(t, err)
	res := client.CleanStale(context.Background(), time.Minute)
	assert.Equal(t, []string{stale}, res.Removed)
}
