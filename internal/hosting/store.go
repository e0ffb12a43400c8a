package hosting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const tempDirPrefix = "sciwi-"

// Store owns a transient directory and every file written into it.
// It is not safe for concurrent use; Service serializes access.
type Store struct {
	fs      afero.Fs
	dir     string
	newName func(ext string) (string, error)
}

// NewStore creates a store on fs. The directory is created lazily.
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs, newName: NewName}
}

// EnsureDir creates the temporary directory on first call and returns the
// same path until Destroy.
func (s *Store) EnsureDir() (string, error) {
	if s.dir != "" {
		return s.dir, nil
	}
	dir, err := afero.TempDir(s.fs, "", tempDirPrefix)
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	s.dir = dir
	return dir, nil
}

// Dir returns the current directory, or "" when none is live.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path of name inside the store directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// UniqueName generates names until one does not exist in the directory.
// The loop is unbounded; with 128 bits of entropy it runs once in practice.
func (s *Store) UniqueName(ext string) (string, error) {
	dir, err := s.EnsureDir()
	if err != nil {
		return "", err
	}
	for {
		name, err := s.newName(ext)
		if err != nil {
			return "", fmt.Errorf("generate name: %w", err)
		}
		exists, err := afero.Exists(s.fs, filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", name, err)
		}
		if !exists {
			return name, nil
		}
	}
}

// WriteBuffer writes data to name, replacing any previous content. On
// failure the partial file is removed.
func (s *Store) WriteBuffer(data []byte, name string) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	dir, err := s.EnsureDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name)

	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		s.discard(path)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := f.Close(); err != nil {
		s.discard(path)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// CopyFile duplicates src into the store under name and returns the number
// of bytes copied. A missing, unreadable or non-regular source yields
// ErrSourceNotFound; a failed copy leaves no file behind.
func (s *Store) CopyFile(src, name string) (int64, error) {
	if !validName(name) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	in, err := s.fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSourceNotFound, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSourceNotFound, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrSourceNotFound, src)
	}

	dir, err := s.EnsureDir()
	if err != nil {
		return 0, err
	}
	path := filepath.Join(dir, name)

	out, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		s.discard(path)
		return 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := out.Close(); err != nil {
		s.discard(path)
		return 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return n, nil
}

// Destroy removes the directory and its contents. It is a no-op when no
// directory is live.
func (s *Store) Destroy() error {
	if s.dir == "" {
		return nil
	}
	if err := s.fs.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove %s: %w", s.dir, err)
	}
	s.dir = ""
	return nil
}

func (s *Store) discard(path string) {
	_ = s.fs.Remove(path)
}
