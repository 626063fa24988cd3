package components

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sarchlab/cosim/archive"
	"github.com/sarchlab/cosim/workspace"
)

// Register adds the constructors of every component class in this package.
// Tables read their rows from dir, the directory of the archive file, when
// the data file exists.
func Register(r *archive.Registry, dir string) {
	r.Register("Signal", func(archive.ComponentEntry) (workspace.Component, error) {
		return MakeSignalBuilder().Build("")
	})

	r.Register("Relay", func(archive.ComponentEntry) (workspace.Component, error) {
		return NewRelay(""), nil
	})

	r.Register("Scope", func(archive.ComponentEntry) (workspace.Component, error) {
		return NewScope("", 0), nil
	})

	r.Register("Table", func(entry archive.ComponentEntry) (workspace.Component, error) {
		return restoreTable(dir, entry)
	})
}

// NewRegistry returns a registry that knows every class of this package.
func NewRegistry(dir string) *archive.Registry {
	r := archive.NewRegistry()
	Register(r, dir)

	return r
}

func restoreTable(dir string, entry archive.ComponentEntry) (*Table, error) {
	f, err := os.Open(filepath.Join(dir, entry.URI))
	if errors.Is(err, fs.ErrNotExist) {
		return NewTable("", []string{"value"}, nil)
	}

	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadTableCSV("", f)
}
