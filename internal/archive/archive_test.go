package archive

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/comicsnag/internal/comics"
)

func writePages(t *testing.T, dir string, names ...string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("data:"+n), 0644))
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Dark Tower #5")
	writePages(t, dir, "10.jpg", "02.jpg", "01.jpg", "09.png")

	res, err := Archive(dir)
	require.NoError(t, err)
	require.NoError(t, res.Warning)

	assert.Equal(t, dir+".cbz", res.Path)
	assert.Equal(t, 4, res.Pages)
	assert.NoDirExists(t, dir)

	names, err := Entries(res.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{"01.jpg", "02.jpg", "09.png", "10.jpg"}, names)

	r, err := zip.OpenReader(res.Path)
	require.NoError(t, err)
	defer r.Close()

	for _, f := range r.File {
		assert.Equal(t, zip.Deflate, f.Method)

		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)
		assert.Equal(t, "data:"+f.Name, string(data))
	}
}

func TestArchiveSkipsHiddenAndSubdirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Issue")
	writePages(t, dir, "01.jpg", ".part-02.jpg-999", ".DS_Store")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "extra"), 0755))

	res, err := Archive(dir)
	require.NoError(t, err)

	names, err := Entries(res.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{"01.jpg"}, names)
}

func TestArchiveInvalidDirectory(t *testing.T) {
	root := t.TempDir()

	_, err := Archive(filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, comics.ErrInvalidDirectory)

	file := filepath.Join(root, "plain.jpg")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = Archive(file)
	assert.ErrorIs(t, err, comics.ErrInvalidDirectory)

	empty := filepath.Join(root, "empty")
	writePages(t, empty, ".part-01.jpg-1")
	_, err = Archive(empty)
	assert.ErrorIs(t, err, comics.ErrInvalidDirectory)
	assert.NoFileExists(t, empty+".cbz")
	assert.DirExists(t, empty)
}

func TestArchiveLeavesNoTempBehind(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Clean")
	writePages(t, dir, "01.jpg", "02.jpg")

	_, err := Archive(dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Clean.cbz", entries[0].Name())
}

func TestEntriesMissing(t *testing.T) {
	_, err := Entries(filepath.Join(t.TempDir(), "nope.cbz"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestArchiveStandsWhenDirectoryRemovalFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Saga #4")
	writePages(t, dir, "01.jpg", "02.jpg")

	busy := errors.New("device or resource busy")
	removeAll = func(string) error { return busy }
	t.Cleanup(func() { removeAll = os.RemoveAll })

	res, err := Archive(dir)
	require.NoError(t, err)
	require.Error(t, res.Warning)
	assert.ErrorIs(t, res.Warning, busy)
	assert.Contains(t, res.Warning.Error(), dir)

	assert.FileExists(t, dir+".cbz")
	assert.DirExists(t, dir)

	names, err := Entries(res.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{"01.jpg", "02.jpg"}, names)
}

func TestArchiveKeepsReadingOrderPastPage99(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Omnibus #1")
	var names []string
	for i := 1; i <= 101; i++ {
		names = append(names, comics.PageFilename(i, "jpg"))
	}
	writePages(t, dir, names...)

	res, err := Archive(dir)
	require.NoError(t, err)

	got, err := Entries(res.Path)
	require.NoError(t, err)
	require.Len(t, got, 101)
	assert.Equal(t, names, got)
	assert.Equal(t, []string{"09.jpg", "10.jpg", "11.jpg"}, got[8:11])
	assert.Equal(t, []string{"99.jpg", "100.jpg", "101.jpg"}, got[98:])
}

func TestPageLess(t *testing.T) {
	assert.True(t, pageLess("02.jpg", "10.jpg"))
	assert.True(t, pageLess("99.jpg", "100.jpg"))
	assert.False(t, pageLess("100.jpg", "11.jpg"))
	assert.True(t, pageLess("12.png", "cover.jpg"))
	assert.True(t, pageLess("a.jpg", "b.jpg"))
}
