package hosting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_EnsureDirIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs)

	dir1, err := s.EnsureDir()
	require.NoError(t, err)
	dir2, err := s.EnsureDir()
	require.NoError(t, err)

	assert.Equal(t, dir1, dir2)
	exists, err := afero.DirExists(fs, dir1)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_UniqueNameRetriesOnCollision(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs)
	dir, err := s.EnsureDir()
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "taken.png"), []byte("x"), 0o644))

	candidates := []string{"taken", "taken", "free"}
	calls := 0
	s.newName = func(ext string) (string, error) {
		name := candidates[calls] + ext
		calls++
		return name, nil
	}

	name, err := s.UniqueName(".png")
	require.NoError(t, err)
	assert.Equal(t, "free.png", name)
	assert.Equal(t, 3, calls)
}

func TestStore_UniqueNamesPairwiseDistinct(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		name, err := s.UniqueName(".txt")
		require.NoError(t, err)
		require.False(t, seen[name])
		seen[name] = true
		require.NoError(t, s.WriteBuffer([]byte(fmt.Sprint(i)), name))
	}
}

func TestStore_UniqueNameGeneratorError(t *testing.T) {
	s := NewStore(afero.NewMemMapFs())
	s.newName = func(string) (string, error) { return "", errors.New("no entropy") }

	_, err := s.UniqueName("")
	assert.ErrorContains(t, err, "no entropy")
}

func TestStore_WriteBuffer(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs)

	require.NoError(t, s.WriteBuffer([]byte("hello"), "a.txt"))
	got, err := afero.ReadFile(fs, s.Path("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	require.NoError(t, s.WriteBuffer([]byte("hi"), "a.txt"))
	got, err = afero.ReadFile(fs, s.Path("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got), "existing content is truncated")
}

func TestStore_WriteBufferRejectsTraversal(t *testing.T) {
	s := NewStore(afero.NewMemMapFs())
	err := s.WriteBuffer([]byte("x"), "../escape")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestStore_WriteBufferFailureLeavesNoFile(t *testing.T) {
	base := afero.NewMemMapFs()
	s := NewStore(base)
	dir, err := s.EnsureDir()
	require.NoError(t, err)

	s.fs = failingWriteFs{Fs: base}
	err = s.WriteBuffer([]byte("data"), "partial.bin")
	require.ErrorIs(t, err, ErrWrite)

	exists, err := afero.Exists(base, filepath.Join(dir, "partial.bin"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_CopyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/photo.jpg", []byte("jpegdata"), 0o644))
	s := NewStore(fs)

	n, err := s.CopyFile("/src/photo.jpg", "copy.jpg")
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	got, err := afero.ReadFile(fs, s.Path("copy.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(got))
}

func TestStore_CopyFileMissingSource(t *testing.T) {
	s := NewStore(afero.NewMemMapFs())

	_, err := s.CopyFile("/nope.png", "x.png")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestStore_CopyFileDirectorySource(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/src/dir", 0o755))
	s := NewStore(fs)

	_, err := s.CopyFile("/src/dir", "x")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestStore_Destroy(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs)
	require.NoError(t, s.WriteBuffer([]byte("x"), "f.txt"))
	dir := s.Dir()

	require.NoError(t, s.Destroy())
	exists, err := afero.Exists(fs, dir)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, s.Dir())

	assert.NoError(t, s.Destroy(), "destroy without a live directory is a no-op")
}

func TestStore_OsFsRoundTrip(t *testing.T) {
	s := NewStore(afero.NewOsFs())
	dir, err := s.EnsureDir()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	require.NoError(t, s.WriteBuffer([]byte("disk"), "d.txt"))
	_, err = os.Stat(filepath.Join(dir, "d.txt"))
	require.NoError(t, err)

	require.NoError(t, s.Destroy())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

// failingWriteFs hands out files whose writes always fail.
type failingWriteFs struct {
	afero.Fs
}

func (f failingWriteFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return failingWriteFile{File: file}, nil
}

type failingWriteFile struct {
	afero.File
}

func (f failingWriteFile) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}
