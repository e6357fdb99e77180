package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/memo"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o600))
	}
}

func TestList_SortedNetCDFOnly(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "202304010200.flowveldepth.nc", "202304010000.flowveldepth.nc", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.nc"), 0o755))

	got, err := NewLocator(nil).List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "202304010000.flowveldepth.nc"),
		filepath.Join(dir, "202304010200.flowveldepth.nc"),
	}, got)
}

func TestList_MissingDirectoryIsEmpty(t *testing.T) {
	got, err := NewLocator(nil).List(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestList_Memoized(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.nc")
	l := NewLocator(memo.New[[]string]("catalog", memo.Options{}))

	first, err := l.List(dir)
	require.NoError(t, err)
	touch(t, dir, "b.nc")
	second, err := l.List(dir)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNames(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.nc", "a.nc")

	got, err := NewLocator(nil).Names(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.nc", "b.nc"}, got)
}

func TestMatch(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	touch(t, a, "s.nc")
	touch(t, b, "s.nc")
	l := NewLocator(nil)

	got, err := l.Match([]string{a, b}, filepath.Join(a, "s.nc"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(a, "s.nc"), filepath.Join(b, "s.nc")}, got)

	_, err = l.Match([]string{a, t.TempDir()}, "s.nc")
	assert.ErrorIs(t, err, ErrMissingSlice)
}
