package upload

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const DefaultDir = "uploads"

// ErrUnsafeName is returned when sanitizing is on and a filename would leave
// the upload directory.
var ErrUnsafeName = errors.New("invalid filename")

// Store writes uploaded files into a single directory. Existing files with the
// same name are overwritten.
type Store struct {
	dir      string
	sanitize bool
}

// NewStore returns a store rooted at dir. With sanitize false, names are used
// as received, including any "../" segments.
func NewStore(dir string, sanitize bool) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir, sanitize: sanitize}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes f and returns the path it was written to.
func (s *Store) Save(f File) (string, error) {
	if s.sanitize && !safeName(f.Name) {
		return "", ErrUnsafeName
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, f.Name)
	if err := os.WriteFile(path, f.Content, 0o644); err != nil {
		return "", err
	}

	return path, nil
}

func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}
