// Package media stores uploaded images on disk and turns raw uploads into
// bounded, re-encoded JPEG assets.
package media

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Purpose selects the subdirectory and the bounding box of an asset.
type Purpose string

const (
	PurposeProfile Purpose = "profiles"
	PurposePost    Purpose = "posts"
)

// DefaultProfileImage is the shared placeholder avatar. It is never deleted.
const DefaultProfileImage = "default.jpg"

var errBadRef = errors.New("invalid asset reference")

// Bounds returns the maximum width and height for the purpose.
func (p Purpose) Bounds() (int, int) {
	switch p {
	case PurposeProfile:
		return 300, 300
	default:
		return 1200, 800
	}
}

func (p Purpose) valid() bool {
	return p == PurposeProfile || p == PurposePost
}

// Store is a filesystem-backed asset store laid out as {root}/{purpose}/{ref}.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir. Purpose directories are created lazily.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the upload root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the on-disk location of ref.
func (s *Store) Path(purpose Purpose, ref string) (string, error) {
	if !purpose.valid() {
		return "", fmt.Errorf("unknown purpose %q", purpose)
	}
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", errBadRef
	}
	return filepath.Join(s.root, string(purpose), ref), nil
}

// URL returns the public path of ref as served under /uploads.
func URL(purpose Purpose, ref string) string {
	return path.Join("/uploads", string(purpose), ref)
}

// Write persists data under ref. The file is written to a temp name in the
// same directory and renamed, so readers never observe a partial image.
func (s *Store) Write(purpose Purpose, ref string, data []byte) error {
	dst, err := s.Path(purpose, ref)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s dir: %w", purpose, err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store image: %w", err)
	}
	return nil
}

// Exists reports whether ref is present on disk.
func (s *Store) Exists(purpose Purpose, ref string) bool {
	p, err := s.Path(purpose, ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// TryDelete removes ref and reports whether a file was removed. It makes a
// single attempt and never returns an error: a missing file, a bad reference
// or a filesystem failure all yield false. The default profile image is
// never removed.
func (s *Store) TryDelete(purpose Purpose, ref string) bool {
	if ref == "" || (purpose == PurposeProfile && ref == DefaultProfileImage) {
		return false
	}
	p, err := s.Path(purpose, ref)
	if err != nil {
		return false
	}
	return os.Remove(p) == nil
}
