// Package procedure implements the top-level procedure container of spec
// §4.7 (C7): the owner of a Workspace and a named sequence of top-level
// instructions, the Setup/Teardown orchestration that wires Include and
// IncludeProcedure references, and the two optional declarative loaders
// (LoadCUE, LoadYAML) that stand in for the out-of-scope XML/plugin host
// contract.
package procedure

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	procattr "github.com/procbt/engine/attribute"
	procerrors "github.com/procbt/engine/errors"
	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/registry"
	"github.com/procbt/engine/workspace"
)

// resolver is implemented by instructions.Include/IncludeProcedure; used
// only for the post-Setup cycle check.
type resolver interface {
	Resolved() instruction.Instruction
}

// FileLoader resolves a file reference (the `file` attribute on Include/
// IncludeProcedure) to another, already-built Procedure. Procedure itself
// does not know how to read CUE/YAML files from disk; an embedding program
// supplies a loader (typically one built on LoadCUE/LoadYAML plus a
// registry.Registry) via SetFileLoader.
type FileLoader func(file string) (*Procedure, error)

// Procedure owns a Workspace and an ordered set of top-level instructions
// (spec §4.7). It implements instruction.SetupContext so Include and
// IncludeProcedure can resolve references during Setup.
type Procedure struct {
	mu deadlock.Mutex

	Name string
	Tags []string
	Attrs *procattr.Bag

	ws    *workspace.Workspace
	order []string
	roots map[string]instruction.Instruction

	// named is every instruction resolvable by name via ResolveInclude: the
	// drive roots in order/roots, plus any nested instruction independently
	// flagged root (Open Question #3). Runner/Setup/Teardown must only ever
	// walk order/roots — named nodes reachable through a structural parent
	// are ticked/halted via that parent's own Tick/Halt, so driving them a
	// second time here would tick/halt them twice in one cycle.
	named map[string]instruction.Instruction

	fileLoader FileLoader

	loadedMu sync.Mutex
	loaded   map[string]*Procedure
	loading  map[string]bool
}

// New constructs an empty Procedure with its own Workspace.
func New(name string, tags []string) *Procedure {
	return &Procedure{
		Name:  name,
		Tags:  tags,
		Attrs: procattr.NewBag(),
		ws:    workspace.New(),
		roots: make(map[string]instruction.Instruction),
		named: make(map[string]instruction.Instruction),
		loaded: make(map[string]*Procedure),
		loading: make(map[string]bool),
	}
}

// Workspace returns the procedure's workspace.
func (p *Procedure) Workspace() *workspace.Workspace { return p.ws }

// SetFileLoader installs the callback ResolveIncludeFile delegates to for
// `file`-qualified Include/IncludeProcedure references.
func (p *Procedure) SetFileLoader(f FileLoader) { p.fileLoader = f }

// AddRoot registers a genuine top-level instruction under its own Name,
// marks it root, and appends it to the execution order Setup/Roots/Runner
// walk directly. Root ordering follows insertion, matching the Workspace's
// insertion-order enumeration.
func (p *Procedure) AddRoot(inst instruction.Instruction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := inst.Name()
	if _, exists := p.named[name]; exists {
		return procerrors.New(procerrors.ErrDuplicateName, "Procedure.AddRoot",
			fmt.Sprintf("top-level instruction %q already exists", name))
	}
	inst.SetRoot(true)
	p.named[name] = inst
	p.roots[name] = inst
	p.order = append(p.order, name)
	return nil
}

// registerNested makes a nested, independently-includable instruction
// (Open Question #3) resolvable by name via ResolveInclude, without adding
// it to the drive order: it remains a child of its structural parent and is
// ticked/halted only through that parent, never directly by Setup/Runner.
func (p *Procedure) registerNested(inst instruction.Instruction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := inst.Name()
	if _, exists := p.named[name]; exists {
		return procerrors.New(procerrors.ErrDuplicateName, "Procedure.registerNested",
			fmt.Sprintf("instruction %q already exists", name))
	}
	p.named[name] = inst
	return nil
}

// Roots returns the top-level instructions Setup/Teardown/Runner drive
// directly, in insertion order. It excludes nested root-flagged instructions
// registered only for name resolution (see registerNested) — those remain
// reachable solely through their structural parent's own Tick/Halt.
func (p *Procedure) Roots() []instruction.Instruction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]instruction.Instruction, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.roots[name])
	}
	return out
}

// InstantiateFrom builds the procedure's variables and top-level instruction
// tree from a declarative definition set via reg, the "instantiate
// variables and instructions (already built by parser)" step of spec §4.7.
// Variables are added before any instruction is built.
func (p *Procedure) InstantiateFrom(reg *registry.Registry, vars []registry.VariableDefinition, roots []registry.Definition) error {
	for _, vd := range vars {
		v, err := reg.InstantiateVariable(vd)
		if err != nil {
			return procerrors.Wrap(err, procerrors.ErrAttributeError, "Procedure.InstantiateFrom",
				fmt.Sprintf("variable %q", vd.Name))
		}
		if err := p.ws.AddVariable(vd.Name, v); err != nil {
			return err
		}
	}
	for _, rd := range roots {
		inst, err := reg.Instantiate(rd)
		if err != nil {
			return procerrors.Wrap(err, procerrors.ErrAttributeError, "Procedure.InstantiateFrom",
				fmt.Sprintf("root %q", rd.Name))
		}
		if err := p.AddRoot(inst); err != nil {
			return err
		}
		// A nested instruction can also carry Definition.Root = true (Open
		// Question #3: a subtree that is also independently includable by
		// name). Register those for name resolution only — they stay in
		// their parent's child list and must not be added to the drive
		// order, or the runner would tick/halt them a second time on top
		// of the tick/halt they already receive through that parent.
		for _, nested := range collectNestedRoots(inst) {
			if err := p.registerNested(nested); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectNestedRoots walks inst's descendants for children already flagged
// IsRoot() (set by registry.Instantiate from Definition.Root), skipping
// inst itself since the caller already adds the top-level instruction.
func collectNestedRoots(inst instruction.Instruction) []instruction.Instruction {
	var found []instruction.Instruction
	for _, child := range inst.Children() {
		if child.IsRoot() {
			found = append(found, child)
		}
		found = append(found, collectNestedRoots(child)...)
	}
	return found
}

// ResolveInclude looks up any named instruction, regardless of its isRoot
// flag (Open Question #3: any top-level instruction, and any nested
// instruction independently flagged root, is referenceable by Include; only
// cyclic reference chains are rejected, and only at the end of Setup once
// the whole graph is resolved).
func (p *Procedure) ResolveInclude(name string) (instruction.Instruction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.named[name]
	if !ok {
		return nil, procerrors.New(procerrors.ErrCyclicInclude, "Procedure.ResolveInclude",
			fmt.Sprintf("no top-level instruction named %q", name))
	}
	return inst, nil
}

// ResolveIncludeFile resolves an IncludeProcedure/file-qualified Include
// reference: it loads (and caches) the external Procedure via the
// configured FileLoader, sets it up, then resolves path within it.
func (p *Procedure) ResolveIncludeFile(file, path string) (instruction.Instruction, *workspace.Workspace, error) {
	external, err := p.loadFile(file)
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		return nil, external.ws, nil
	}
	inst, err := external.ResolveInclude(path)
	if err != nil {
		return nil, nil, err
	}
	return inst, external.ws, nil
}

func (p *Procedure) loadFile(file string) (*Procedure, error) {
	p.loadedMu.Lock()
	if ext, ok := p.loaded[file]; ok {
		p.loadedMu.Unlock()
		return ext, nil
	}
	if p.loading[file] {
		p.loadedMu.Unlock()
		return nil, procerrors.New(procerrors.ErrCyclicInclude, "Procedure.loadFile",
			fmt.Sprintf("cyclic file include involving %q", file))
	}
	p.loading[file] = true
	p.loadedMu.Unlock()

	defer func() {
		p.loadedMu.Lock()
		delete(p.loading, file)
		p.loadedMu.Unlock()
	}()

	if p.fileLoader == nil {
		return nil, procerrors.New(procerrors.ErrCyclicInclude, "Procedure.loadFile",
			fmt.Sprintf("no file loader configured, cannot resolve %q", file))
	}
	external, err := p.fileLoader(file)
	if err != nil {
		return nil, err
	}
	if err := external.Setup(); err != nil {
		return nil, err
	}

	p.loadedMu.Lock()
	p.loaded[file] = external
	p.loadedMu.Unlock()
	return external, nil
}

// Setup runs the workspace's SetupAll, then Setup on every top-level
// instruction in order, then a structural cycle check over the resolved
// Include/IncludeProcedure graph (spec §4.7/§7 ErrCyclicInclude). On failure
// the workspace that was already set up is torn down.
func (p *Procedure) Setup() error {
	if err := p.ws.SetupAll(); err != nil {
		return err
	}
	for _, root := range p.Roots() {
		if err := root.Setup(p); err != nil {
			_ = p.ws.TeardownAll()
			return err
		}
	}
	if err := p.checkCycles(); err != nil {
		_ = p.ws.TeardownAll()
		return err
	}
	return nil
}

// checkCycles walks every Include/IncludeProcedure's resolved target,
// following the chain until it leaves the local root set (an external file
// reference, treated as acyclic here since loadFile already guards file
// cycles) or revisits a node already on the current path.
func (p *Procedure) checkCycles() error {
	for _, root := range p.Roots() {
		if err := walkForCycle(root, map[uuid.UUID]bool{}); err != nil {
			return err
		}
	}
	return nil
}

// walkForCycle performs a DFS over inst's children and, for Include/
// IncludeProcedure nodes, their resolved target, backtracking path on
// return so the check is per-path rather than whole-tree-global (a diamond
// reference through two siblings is not a cycle).
func walkForCycle(inst instruction.Instruction, path map[uuid.UUID]bool) error {
	id := inst.NodeID()
	if path[id] {
		return procerrors.New(procerrors.ErrCyclicInclude, "Procedure.Setup",
			fmt.Sprintf("cyclic include detected at instruction %q", inst.Name()))
	}
	path[id] = true
	defer delete(path, id)

	for _, child := range inst.Children() {
		if err := walkForCycle(child, path); err != nil {
			return err
		}
	}
	if r, ok := inst.(resolver); ok {
		if target := r.Resolved(); target != nil {
			if err := walkForCycle(target, path); err != nil {
				return err
			}
		}
	}
	return nil
}

// Teardown halts every top-level instruction (the engine has no Teardown
// hook on Instruction itself, only Halt), then tears down the workspace
// (spec §4.7).
func (p *Procedure) Teardown() error {
	for _, root := range p.Roots() {
		root.Halt()
	}
	return p.ws.TeardownAll()
}
