// Package registry implements the process-wide type-name-to-factory table of
// spec §4.9 (C9): instruction and variable constructors registered once at
// process startup, queried read-only and concurrently thereafter.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sasha-s/go-deadlock"

	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

// InstructionFactory builds one instruction node from its declared name,
// tags, raw attribute strings, and already-instantiated children.
type InstructionFactory func(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error)

// VariableFactory builds one workspace.Variable from its raw attribute
// strings (e.g. an initial value literal).
type VariableFactory func(attrs map[string]string) (workspace.Variable, error)

// Description is what Describe returns for a registered instruction type:
// enough for a linter or authoring tool to validate a definition file before
// Setup actually runs it.
type Description struct {
	TypeName    string
	Definitions []string
}

// Registry is the single process-wide factory table. The zero value is not
// usable; construct with New. Registrations are expected only during
// process startup (spec §4.9); Register* is not synchronized against
// concurrent readers beyond what deadlock.RWMutex already buys, matching the
// spec's "not expected after start-up" guarantee.
type Registry struct {
	mu deadlock.RWMutex

	instructions map[string]InstructionFactory
	variables    map[string]VariableFactory
	descriptions map[string]Description
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		instructions: make(map[string]InstructionFactory),
		variables:    make(map[string]VariableFactory),
		descriptions: make(map[string]Description),
	}
}

// Default returns the process-wide Registry, lazily built with the Local
// variable type and nothing else; callers that need the full instruction
// library call instructions.RegisterAll(reg) on it (or their own Registry)
// once at startup, mirroring the plugin-load hand-off point spec §4.7/§4.9
// describe.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New()
		defaultReg.RegisterVariable("Local", Description{TypeName: "Local"}, func(attrs map[string]string) (workspace.Variable, error) {
			typeName := attrs["type"]
			initRaw, hasInit := attrs["initial"]
			if !hasInit || initRaw == "" {
				return workspace.NewLocalVariable(typeName, value.Empty), nil
			}
			v, err := value.ParseJSON(typeName, initRaw)
			if err != nil {
				return nil, fmt.Errorf("Local variable: %w", err)
			}
			return workspace.NewLocalVariable(typeName, v), nil
		})
	})
	return defaultReg
}

// RegisterInstruction adds or replaces the factory for typeName.
func (r *Registry) RegisterInstruction(typeName string, desc Description, f InstructionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc.TypeName = typeName
	r.instructions[typeName] = f
	r.descriptions[typeName] = desc
}

// RegisterVariable adds or replaces the factory for typeName.
func (r *Registry) RegisterVariable(typeName string, desc Description, f VariableFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc.TypeName = typeName
	r.variables[typeName] = f
}

// CreateInstruction instantiates a single node via the factory registered for
// typeName, handing it the already-built children; it does not build children
// itself.
func (r *Registry) CreateInstruction(typeName, name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	r.mu.RLock()
	f, ok := r.instructions[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: instruction type %q not registered", typeName)
	}
	return f(name, tags, attrs, children)
}

// CreateVariable instantiates a workspace.Variable via the factory
// registered for typeName.
func (r *Registry) CreateVariable(typeName string, attrs map[string]string) (workspace.Variable, error) {
	r.mu.RLock()
	f, ok := r.variables[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: variable type %q not registered", typeName)
	}
	return f(attrs)
}

// ListInstructionTypes returns registered instruction type names, sorted.
func (r *Registry) ListInstructionTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instructions))
	for n := range r.instructions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ListVariableTypes returns registered variable type names, sorted.
func (r *Registry) ListVariableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.variables))
	for n := range r.variables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Describe returns the registered Description for an instruction type.
func (r *Registry) Describe(typeName string) (Description, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptions[typeName]
	return d, ok
}

// Definition is the declarative tree shape procedure.LoadCUE/LoadYAML decode
// into and Instantiate walks. It is the "parser already built the tree"
// hand-off point of spec §4.7 made concrete for the two optional authoring
// loaders.
type Definition struct {
	Type       string            `json:"type" yaml:"type"`
	Name       string            `json:"name" yaml:"name"`
	Tags       []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Root       bool              `json:"root,omitempty" yaml:"root,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Children   []Definition      `json:"children,omitempty" yaml:"children,omitempty"`
}

// Instantiate recursively builds an instruction.Instruction tree from def,
// instantiating children before their parent so compound/decorator/control
// factories can wire them in at construction time.
func (r *Registry) Instantiate(def Definition) (instruction.Instruction, error) {
	children := make([]instruction.Instruction, 0, len(def.Children))
	for _, childDef := range def.Children {
		child, err := r.Instantiate(childDef)
		if err != nil {
			return nil, fmt.Errorf("instantiate %s %q: %w", def.Type, def.Name, err)
		}
		children = append(children, child)
	}
	inst, err := r.CreateInstruction(def.Type, def.Name, def.Tags, def.Attributes, children)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s %q: %w", def.Type, def.Name, err)
	}
	if def.Root {
		inst.SetRoot(true)
	}
	return inst, nil
}

// VariableDefinition is the declarative shape for a workspace variable in a
// procedure definition tree.
type VariableDefinition struct {
	Type       string            `json:"type" yaml:"type"`
	Name       string            `json:"name" yaml:"name"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// InstantiateVariable builds a workspace.Variable from def.
func (r *Registry) InstantiateVariable(def VariableDefinition) (workspace.Variable, error) {
	v, err := r.CreateVariable(def.Type, def.Attributes)
	if err != nil {
		return nil, fmt.Errorf("instantiate variable %q: %w", def.Name, err)
	}
	return v, nil
}
