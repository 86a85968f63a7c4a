package fingerprint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// DefaultMaxFileSize bounds how much of a file is read for context (1 MiB).
const DefaultMaxFileSize = 1 << 20

// Sentinel source errors.
var (
	ErrFileTooLarge = errors.New("file exceeds context size limit")
	ErrNotFound     = errors.New("file not found")
)

// ContextSource provides the content of analyzed files as they were at
// analysis time.
type ContextSource interface {
	ReadFile(name string) ([]byte, error)
}

// FSSource reads file content from a workspace root on an afero filesystem.
type FSSource struct {
	fs      afero.Fs
	root    string
	maxSize int64
}

// NewFSSource creates a source rooted at root. maxSize <= 0 uses DefaultMaxFileSize.
func NewFSSource(fs afero.Fs, root string, maxSize int64) *FSSource {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	return &FSSource{fs: fs, root: root, maxSize: maxSize}
}

// NewOSSource creates a source reading from the operating system filesystem.
func NewOSSource(root string, maxSize int64) *FSSource {
	return NewFSSource(afero.NewOsFs(), root, maxSize)
}

// ReadFile implements ContextSource. Relative names are resolved against the root.
func (s *FSSource) ReadFile(name string) ([]byte, error) {
	full := name
	if !filepath.IsAbs(name) {
		full = filepath.Join(s.root, filepath.FromSlash(name))
	}

	info, err := s.fs.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}

		return nil, fmt.Errorf("stat %s: %w", name, err)
	}

	if info.Size() > s.maxSize {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, name, info.Size())
	}

	data, err := afero.ReadFile(s.fs, full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return data, nil
}

// MapSource serves file content from memory, keyed by normalized path.
type MapSource map[string]string

// ReadFile implements ContextSource.
func (m MapSource) ReadFile(name string) ([]byte, error) {
	content, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return []byte(content), nil
}
