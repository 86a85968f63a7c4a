package persist

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

const tempSuffix = ".tmp"

// Persister stores values of one type as files in a directory, one file per name.
type Persister[T any] struct {
	fs    afero.Fs
	dir   string
	codec Codec
}

// NewPersister creates a persister writing to dir on fs with codec.
func NewPersister[T any](fs afero.Fs, dir string, codec Codec) *Persister[T] {
	return &Persister[T]{fs: fs, dir: dir, codec: codec}
}

// Codec returns the codec in use.
func (p *Persister[T]) Codec() Codec {
	return p.codec
}

func (p *Persister[T]) path(name string) string {
	return path.Join(p.dir, name+p.codec.Extension())
}

// Save writes state under name. The file is written to a temporary name and
// renamed into place so readers never observe a partial file.
func (p *Persister[T]) Save(name string, state *T) error {
	if err := p.fs.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	target := p.path(name)
	tmp := target + tempSuffix

	file, err := p.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}

	if err := p.codec.Encode(file, state); err != nil {
		file.Close()
		_ = p.fs.Remove(tmp)

		return fmt.Errorf("encode state: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = p.fs.Remove(tmp)

		return fmt.Errorf("close state file: %w", err)
	}

	if err := p.fs.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// Load reads the state stored under name. A missing file yields an error
// matching os.ErrNotExist.
func (p *Persister[T]) Load(name string) (*T, error) {
	file, err := p.fs.Open(p.path(name))
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	var state T

	if err := p.codec.Decode(file, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	return &state, nil
}

// Names lists the stored names in directory order. A missing directory is empty.
func (p *Persister[T]) Names() ([]string, error) {
	entries, err := afero.ReadDir(p.fs, p.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("list state dir: %w", err)
	}

	ext := p.codec.Extension()
	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if name, ok := strings.CutSuffix(entry.Name(), ext); ok {
			names = append(names, name)
		}
	}

	return names, nil
}
