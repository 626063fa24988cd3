// Package archive saves and restores the table of contents of a workspace:
// which components it holds and how their attributes are coupled.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/sim/id"
	"github.com/sarchlab/cosim/sim/naming"
	"github.com/sarchlab/cosim/workspace"
)

// DefaultFormat is the format recorded for components that do not name one.
const DefaultFormat = "yaml"

var (
	// ErrUnknownClass is returned when no constructor is registered for a
	// component class.
	ErrUnknownClass = errors.New("unknown component class")

	// ErrUnknownComponent is returned when a coupling names a component URI
	// that the archive does not list.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrUnknownAttribute is returned when a component has no attribute with
	// the archived holder and name.
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// ComponentEntry describes one archived component.
type ComponentEntry struct {
	Class  string `yaml:"class"`
	Name   string `yaml:"name"`
	ID     string `yaml:"id"`
	URI    string `yaml:"uri"`
	Format string `yaml:"format"`
}

// Endpoint identifies an attribute by its component's URI.
type Endpoint struct {
	URI       string `yaml:"uri"`
	Holder    string `yaml:"holder"`
	Attribute string `yaml:"attribute"`
}

// CouplingEntry describes one archived coupling.
type CouplingEntry struct {
	Source Endpoint `yaml:"source"`
	Target Endpoint `yaml:"target"`
}

// Contents is the table of contents of an archive.
type Contents struct {
	Components []ComponentEntry `yaml:"components"`
	Couplings  []CouplingEntry  `yaml:"couplings"`
}

var whitespace = regexp.MustCompile(`\s`)

// ComponentURI builds the URI under which a component's data is stored.
func ComponentURI(id, name, format string) string {
	return fmt.Sprintf("components/%s_%s.%s",
		id, whitespace.ReplaceAllString(name, "_"), format)
}

// A DataWriter can store its data in its archive entry's file.
type DataWriter interface {
	WriteData(out io.Writer) error
}

// Capture lists the components and couplings of a workspace. Component ids
// come from ids, in workspace order.
func Capture(w *workspace.Workspace, ids id.IDGenerator) *Contents {
	contents, _ := capture(w, ids)

	return contents
}

func capture(
	w *workspace.Workspace,
	ids id.IDGenerator,
) (*Contents, []workspace.Component) {
	contents := &Contents{}
	comps := w.Components()
	uris := make(map[coupling.Component]string)

	for _, c := range comps {
		format := DefaultFormat
		if f, ok := c.(workspace.Formatter); ok {
			format = f.DefaultFormat()
		}

		entry := ComponentEntry{
			Class:  naming.SimpleTypeName(c),
			Name:   c.Name(),
			ID:     ids.Generate(),
			Format: format,
		}
		entry.URI = ComponentURI(entry.ID, entry.Name, entry.Format)

		uris[c] = entry.URI
		contents.Components = append(contents.Components, entry)
	}

	for _, c := range w.CouplingManager().Couplings() {
		src, srcFound := uris[c.Source()]
		tgt, tgtFound := uris[c.Target()]
		if !srcFound || !tgtFound {
			continue
		}

		contents.Couplings = append(contents.Couplings, CouplingEntry{
			Source: endpoint(src, c.Producer()),
			Target: endpoint(tgt, c.Consumer()),
		})
	}

	return contents, comps
}

func endpoint(uri string, attr coupling.Attribute) Endpoint {
	attrID := attr.ID()

	return Endpoint{
		URI:       uri,
		Holder:    attrID.Holder,
		Attribute: attrID.Attribute,
	}
}

// Encode writes the contents as YAML.
func Encode(out io.Writer, contents *Contents) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	if err := enc.Encode(contents); err != nil {
		return err
	}

	return enc.Close()
}

// Decode reads contents written by Encode.
func Decode(in io.Reader) (*Contents, error) {
	contents := &Contents{}
	if err := yaml.NewDecoder(in).Decode(contents); err != nil {
		return nil, fmt.Errorf("decoding archive: %w", err)
	}

	return contents, nil
}

// Save captures the workspace into a file, records the path on the
// workspace, and clears its dirty flag. Components that are DataWriters also
// write their data, at their URI relative to the file's directory.
func Save(w *workspace.Workspace, path string) error {
	contents, comps := capture(w, id.NewIDGenerator())

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := Encode(f, contents); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	for i, c := range comps {
		dw, ok := c.(DataWriter)
		if !ok {
			continue
		}

		err := writeData(filepath.Join(dir, contents.Components[i].URI), dw)
		if err != nil {
			return fmt.Errorf("saving %s: %w", c.Name(), err)
		}
	}

	w.SetArchivePath(path)
	w.SetDirty(false)

	return nil
}

func writeData(path string, dw DataWriter) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := dw.WriteData(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Load reads the contents of an archive file.
func Load(path string) (*Contents, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}
