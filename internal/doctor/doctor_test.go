package doctor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/epubpack/internal/doctor"
	"github.com/jvs-project/epubpack/internal/pack"
	"github.com/jvs-project/epubpack/internal/staging"
	"github.com/jvs-project/epubpack/pkg/fsutil"
	"github.com/jvs-project/epubpack/pkg/logging"
	"github.com/jvs-project/epubpack/pkg/model"
)

func age(t *testing.T, path string) {
	t.Helper()
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
}

func categories(res *doctor.Result) map[string]string {
	out := map[string]string{}
	for _, f := range res.Findings {
		out[filepath.Base(f.Path)] = f.Severity
	}
	return out
}

func TestDoctor_Check_Healthy(t *testing.T) {
	doc := doctor.NewDoctor(t.TempDir(), t.TempDir(), time.Hour)
	result, err := doc.Check(false)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Findings)
}

func TestDoctor_Check_MissingDirsAreInfo(t *testing.T) {
	base := t.TempDir()
	doc := doctor.NewDoctor(filepath.Join(base, "stage"), filepath.Join(base, "out"), time.Hour)
	result, err := doc.Check(false)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	require.Len(t, result.Findings, 2)
	for _, f := range result.Findings {
		assert.Equal(t, "info", f.Severity)
	}
}

func TestDoctor_Check_StaleAndLiveRoots(t *testing.T) {
	stage := t.TempDir()
	stale := filepath.Join(stage, staging.SessionPrefix+"stale")
	require.NoError(t, os.Mkdir(stale, 0755))
	age(t, stale)

	live, err := staging.NewSession(stage)
	require.NoError(t, err)
	defer live.Release()
	age(t, live.Root)

	result, err := doctor.NewDoctor(stage, "", time.Hour).Check(false)
	require.NoError(t, err)
	assert.True(t, result.Healthy, "stale roots are warnings")

	got := categories(result)
	assert.Equal(t, "warning", got[filepath.Base(stale)])
	assert.Equal(t, "info", got[filepath.Base(live.Root)])
}

func TestDoctor_Check_OutputDebris(t *testing.T) {
	out := t.TempDir()
	tmp := filepath.Join(out, fsutil.TempPrefix+"123.epub")
	require.NoError(t, os.WriteFile(tmp, []byte("partial"), 0644))
	age(t, tmp)
	fresh := filepath.Join(out, fsutil.TempPrefix+"456.epub")
	require.NoError(t, os.WriteFile(fresh, []byte("in flight"), 0644))
	freeLock := filepath.Join(out, "book.epub.lock")
	require.NoError(t, os.WriteFile(freeLock, nil, 0644))

	heldLock := filepath.Join(out, "busy.epub.lock")
	lk := flock.New(heldLock)
	locked, err := lk.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer lk.Unlock()

	result, err := doctor.NewDoctor(t.TempDir(), out, time.Hour).Check(false)
	require.NoError(t, err)

	got := categories(result)
	assert.Equal(t, "warning", got[filepath.Base(tmp)])
	assert.Equal(t, "info", got[filepath.Base(freeLock)])
	assert.NotContains(t, got, filepath.Base(fresh))
	assert.NotContains(t, got, filepath.Base(heldLock))
}

func TestDoctor_Check_StrictVerifiesArchives(t *testing.T) {
	out := t.TempDir()
	b := pack.New(model.Book{
		Title:    "Sound",
		Chapters: []model.Chapter{{Title: "One", Body: "<p>x</p>"}},
	}, pack.Options{OutputDir: out, StagingDir: t.TempDir(), Logger: logging.Discard()})
	require.NoError(t, b.Prepare(context.Background()))
	_, err := b.Save(context.Background(), nil)
	require.NoError(t, err)

	result, err := doctor.NewDoctor(t.TempDir(), out, time.Hour).Check(true)
	require.NoError(t, err)
	assert.True(t, result.Healthy)

	require.NoError(t, os.WriteFile(filepath.Join(out, "broken.epub"), []byte("junk"), 0644))
	result, err = doctor.NewDoctor(t.TempDir(), out, time.Hour).Check(true)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	assert.Equal(t, "critical", categories(result)["broken.epub"])
}

func TestFix_RemovesFixable(t *testing.T) {
	stage := t.TempDir()
	stale := filepath.Join(stage, staging.SessionPrefix+"stale")
	require.NoError(t, os.Mkdir(stale, 0755))
	require.NoError(t, os.WriteFile(stale+staging.LockSuffix, nil, 0644))
	age(t, stale)

	result, err := doctor.NewDoctor(stage, "", time.Hour).Check(false)
	require.NoError(t, err)

	removed, err := doctor.Fix(result)
	require.NoError(t, err)
	assert.Equal(t, []string{stale}, removed)
	assert.NoDirExists(t, stale)
	assert.NoFileExists(t, stale+staging.LockSuffix)
}
