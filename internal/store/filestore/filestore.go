// Package filestore keeps uploaded files under a single root directory.
package filestore

import (
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var ErrInvalidPath = errors.New("invalid file path")

type Store struct {
	fs afero.Fs
}

// New roots a Store at dir on the OS filesystem, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	return NewWithFs(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewWithFs uses fs as the root. Tests pass afero.NewMemMapFs().
func NewWithFs(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// clean turns a caller-supplied relative path into a rooted one, rejecting
// anything that would leave the root.
func clean(rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	if rel == "" {
		return "/", nil
	}
	if strings.HasPrefix(rel, "/") {
		rel = strings.TrimLeft(rel, "/")
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", ErrInvalidPath
		}
	}
	return path.Join("/", rel), nil
}

// Save stores r under a fresh name that keeps filename's extension and returns
// the path relative to the root.
func (s *Store) Save(r io.Reader, filename, subdir string) (string, error) {
	return s.SaveAs(r, uuid.NewString()+path.Ext(filename), subdir)
}

// SaveAs stores r under filename, replacing any existing file.
func (s *Store) SaveAs(r io.Reader, filename, subdir string) (string, error) {
	if filename == "" || strings.ContainsAny(filename, "/\\") {
		return "", ErrInvalidPath
	}
	dir, err := clean(subdir)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create dir")
	}

	full := path.Join(dir, filename)
	f, err := s.fs.Create(full)
	if err != nil {
		return "", errors.Wrap(err, "create file")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(full)
		return "", errors.Wrap(err, "write file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "close file")
	}
	return strings.TrimPrefix(full, "/"), nil
}

// Open returns the file for reading. The caller closes it.
func (s *Store) Open(rel string) (afero.File, os.FileInfo, error) {
	p, err := clean(rel)
	if err != nil {
		return nil, nil, err
	}
	info, err := s.fs.Stat(p)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return nil, nil, os.ErrNotExist
	}
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, nil, err
	}
	return f, info, nil
}

// Delete reports whether a file was removed.
func (s *Store) Delete(rel string) (bool, error) {
	ok, err := s.Exists(rel)
	if err != nil || !ok {
		return false, err
	}
	p, _ := clean(rel)
	if err := s.fs.Remove(p); err != nil {
		return false, errors.Wrap(err, "remove file")
	}
	return true, nil
}

// List returns the names of regular files directly inside subdir, sorted.
// A missing directory lists as empty.
func (s *Store) List(subdir string) ([]string, error) {
	dir, err := clean(subdir)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(s.fs, dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "list dir")
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.Mode().IsRegular() {
			names = append(names, fi.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Exists(rel string) (bool, error) {
	p, err := clean(rel)
	if err != nil {
		return false, err
	}
	info, err := s.fs.Stat(p)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
