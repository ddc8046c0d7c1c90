// Package storage persists certificate and invoice attachments and resolves
// download references back to files.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dhcgn/patent-reminders/model"
)

var (
	ErrOutsideRoot = errors.New("reference resolves outside the storage root")
	ErrNotFound    = errors.New("stored file not found")
)

// namespace seeds the content derived attachment ids.
var namespace = uuid.MustParse("6f1b6c1e-9a43-4c55-8b7e-2d4a1f0c9e21")

// Store writes attachments below a root directory. File names are
// "<uuid>_<original name>", where the uuid is derived from the payload, so a
// rescan of the same message reuses the existing file.
type Store struct {
	root string
}

// New creates the root directory if needed.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: abs}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Save writes r under a generated name and returns its descriptor.
func (s *Store) Save(name string, r io.Reader) (model.SavedAttachment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.SavedAttachment{}, fmt.Errorf("read attachment %q: %w", name, err)
	}

	id := uuid.NewSHA1(namespace, data)
	ref := id.String() + "_" + SafeName(name)
	target := filepath.Join(s.root, ref)

	saved := model.SavedAttachment{OriginalName: name, StoredPath: target, Ref: ref}
	if _, err := os.Stat(target); err == nil {
		return saved, nil
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return model.SavedAttachment{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return model.SavedAttachment{}, fmt.Errorf("write %s: %w", ref, err)
	}
	if err := tmp.Close(); err != nil {
		return model.SavedAttachment{}, fmt.Errorf("close %s: %w", ref, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return model.SavedAttachment{}, fmt.Errorf("rename %s: %w", ref, err)
	}
	return saved, nil
}

// Resolve maps a download reference to a file path inside the root.
func (s *Store) Resolve(ref string) (string, error) {
	if ref == "" || filepath.IsAbs(ref) || strings.ContainsAny(ref, `/\`) {
		return "", fmt.Errorf("%q: %w", ref, ErrOutsideRoot)
	}
	target := filepath.Join(s.root, ref)
	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", ref, ErrOutsideRoot)
	}

	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%q: %w", ref, ErrNotFound)
		}
		return "", fmt.Errorf("stat %q: %w", ref, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%q: %w", ref, ErrNotFound)
	}
	return target, nil
}

// SafeName reduces an attachment name to a single path element.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`<>:"|?*`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "attachment"
	}
	return name
}
