package procedure

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"

	procerrors "github.com/procbt/engine/errors"
	"github.com/procbt/engine/registry"
	"github.com/procbt/engine/value"
)

// Document is the declarative shape both LoadCUE and LoadYAML decode into:
// a procedure name/tags, the type descriptors it needs registered before
// anything else, its variables, and its top-level instruction trees. This
// is the "parser already built the tree" hand-off point of spec §4.7 made
// concrete for file-based authoring.
type Document struct {
	Name      string                      `json:"name" yaml:"name"`
	Tags      []string                    `json:"tags,omitempty" yaml:"tags,omitempty"`
	Types     []value.TypeDescriptor      `json:"types,omitempty" yaml:"types,omitempty"`
	Variables []registry.VariableDefinition `json:"variables,omitempty" yaml:"variables,omitempty"`
	Roots     []registry.Definition       `json:"roots" yaml:"roots"`
}

// Build instantiates a Procedure from a Document via reg, registering the
// document's type descriptors on the workspace's AnyTypeRegistry before
// instantiating any variable (spec §6: variable-type JSON is opaque to the
// core but must be registered before Setup touches a typed variable).
func (d Document) Build(reg *registry.Registry) (*Procedure, error) {
	p := New(d.Name, d.Tags)
	for _, td := range d.Types {
		p.ws.Types.Register(td)
	}
	if err := p.InstantiateFrom(reg, d.Variables, d.Roots); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadCUE loads a procedure Document from a CUE file: build a *cue.Context
// over the file's directory, look up the given field path (or the file's
// root value if path is empty), and decode it into Document.
func LoadCUE(filePath, fieldPath string, reg *registry.Registry) (*Procedure, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, procerrors.Wrap(err, procerrors.ErrAttributeError, "procedure.LoadCUE",
			fmt.Sprintf("resolving path %q", filePath))
	}

	cueCtx := cuecontext.New()
	loadConfig := &load.Config{Dir: filepath.Dir(absPath)}
	instances := load.Instances([]string{filepath.Base(absPath)}, loadConfig)
	if len(instances) == 0 {
		return nil, procerrors.New(procerrors.ErrAttributeError, "procedure.LoadCUE",
			fmt.Sprintf("no CUE instances found in %s", absPath))
	}
	if instances[0].Err != nil {
		return nil, procerrors.Wrap(instances[0].Err, procerrors.ErrAttributeError, "procedure.LoadCUE",
			fmt.Sprintf("loading %s", absPath))
	}

	built := cueCtx.BuildInstance(instances[0])
	if built.Err() != nil {
		return nil, procerrors.Wrap(built.Err(), procerrors.ErrAttributeError, "procedure.LoadCUE",
			"building CUE instance")
	}

	docValue := built
	if fieldPath != "" {
		docValue = built.LookupPath(cue.ParsePath(fieldPath))
		if !docValue.Exists() {
			return nil, procerrors.New(procerrors.ErrAttributeError, "procedure.LoadCUE",
				fmt.Sprintf("no %q field found in %s", fieldPath, absPath))
		}
	}

	var doc Document
	if err := docValue.Decode(&doc); err != nil {
		return nil, procerrors.Wrap(err, procerrors.ErrAttributeError, "procedure.LoadCUE",
			"decoding procedure document")
	}
	return doc.Build(reg)
}

// LoadYAML decodes a procedure Document from already-read YAML bytes via
// gopkg.in/yaml.v3.
func LoadYAML(raw []byte, reg *registry.Registry) (*Procedure, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, procerrors.Wrap(err, procerrors.ErrAttributeError, "procedure.LoadYAML",
			"decoding procedure document")
	}
	return doc.Build(reg)
}

// LoadYAMLFile reads filePath and decodes it via LoadYAML.
func LoadYAMLFile(filePath string, reg *registry.Registry) (*Procedure, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, procerrors.Wrap(err, procerrors.ErrAttributeError, "procedure.LoadYAMLFile",
			fmt.Sprintf("reading %s", filePath))
	}
	return LoadYAML(raw, reg)
}
