// Package workspace implements the procedure's shared, thread-safe,
// change-notifying store of dynamically typed variables (spec §4.2, C2).
package workspace

import (
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/sasha-s/go-deadlock"

	procerrors "github.com/procbt/engine/errors"
	"github.com/procbt/engine/value"
)

// SetupTeardownActions is returned by Variable.Setup to register run-once
// actions keyed by identifier, executed after all variables are set up /
// before any are torn down (spec §3).
type SetupTeardownActions struct {
	ID          string
	PostSetup   func() error
	PreTeardown func() error
}

// Variable is the polymorphic store entry (spec §3/§4.2's collaborator).
// Concrete variable types own their own attribute bag and validate it inside
// Setup; the workspace only orchestrates ordering, locking, and
// notification.
type Variable interface {
	TypeName() string
	Setup(ws *Workspace) (SetupTeardownActions, error)
	Teardown() error
	GetValue(fieldPath string) (value.Value, bool)
	SetValue(fieldPath string, v value.Value) bool
	Available() bool
}

// AnyTypeRegistry is the opaque, externally defined type registry the
// workspace carries (spec §3). The core never interprets a registered
// descriptor beyond its type name.
type AnyTypeRegistry struct {
	mu          deadlock.RWMutex
	descriptors map[string]value.TypeDescriptor
}

func NewAnyTypeRegistry() *AnyTypeRegistry {
	return &AnyTypeRegistry{descriptors: make(map[string]value.TypeDescriptor)}
}

func (r *AnyTypeRegistry) Register(td value.TypeDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[td.TypeName] = td
}

func (r *AnyTypeRegistry) Lookup(typeName string) (value.TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	td, ok := r.descriptors[typeName]
	return td, ok
}

// Workspace is the named-variable store described in spec §4.2.
type Workspace struct {
	mu        deadlock.RWMutex
	vars      *orderedmap.OrderedMap[string, Variable]
	varLocks  map[string]*deadlock.RWMutex
	postSetup []func() error
	preTeard  []func() error
	seenSTA   map[string]bool

	subsMu sync.RWMutex
	subs   map[string][]*subscriber

	Types *AnyTypeRegistry
}

// New constructs an empty Workspace.
func New() *Workspace {
	return &Workspace{
		vars:     orderedmap.New[string, Variable](),
		varLocks: make(map[string]*deadlock.RWMutex),
		seenSTA:  make(map[string]bool),
		subs:     make(map[string][]*subscriber),
		Types:    NewAnyTypeRegistry(),
	}
}

// AddVariable registers a new variable under name. Insertion order is
// preserved for enumeration (spec §3).
func (w *Workspace) AddVariable(name string, v Variable) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.vars.Get(name); exists {
		return procerrors.New(procerrors.ErrDuplicateName, "Workspace.AddVariable", fmt.Sprintf("variable %q already exists", name))
	}
	w.vars.Set(name, v)
	w.varLocks[name] = &deadlock.RWMutex{}
	return nil
}

// Names returns variable names in insertion order.
func (w *Workspace) Names() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, 0, w.vars.Len())
	for pair := w.vars.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Lookup returns the variable registered under name.
func (w *Workspace) Lookup(name string) (Variable, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.vars.Get(name)
}

// SetupAll calls Setup on every variable in insertion order, deduplicates
// SetupTeardownActions by identifier, and runs post-setup actions in
// registration order. On the first failure it tears down variables already
// set up and fails (spec §4.2).
func (w *Workspace) SetupAll() error {
	w.mu.Lock()
	names := make([]string, 0, w.vars.Len())
	vars := make([]Variable, 0, w.vars.Len())
	for pair := w.vars.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
		vars = append(vars, pair.Value)
	}
	w.mu.Unlock()

	setUp := make([]Variable, 0, len(vars))
	for i, v := range vars {
		sta, err := v.Setup(w)
		if err != nil {
			w.teardownSubset(setUp)
			return procerrors.Wrap(err, procerrors.ErrAttributeError, "Workspace.SetupAll",
				fmt.Sprintf("variable %q failed setup", names[i]))
		}
		setUp = append(setUp, v)

		if sta.ID != "" {
			w.mu.Lock()
			if !w.seenSTA[sta.ID] {
				w.seenSTA[sta.ID] = true
				if sta.PostSetup != nil {
					w.postSetup = append(w.postSetup, sta.PostSetup)
				}
				if sta.PreTeardown != nil {
					w.preTeard = append(w.preTeard, sta.PreTeardown)
				}
			}
			w.mu.Unlock()
		}
	}

	for _, action := range w.postSetup {
		if err := action(); err != nil {
			w.teardownSubset(setUp)
			return procerrors.Wrap(err, procerrors.ErrAttributeError, "Workspace.SetupAll", "post-setup action failed")
		}
	}
	return nil
}

func (w *Workspace) teardownSubset(vars []Variable) {
	for i := len(vars) - 1; i >= 0; i-- {
		_ = vars[i].Teardown()
	}
}

// TeardownAll runs pre-teardown actions (registration order), then Teardown
// on variables in reverse creation order.
func (w *Workspace) TeardownAll() error {
	w.mu.RLock()
	pre := append([]func() error{}, w.preTeard...)
	vars := make([]Variable, 0, w.vars.Len())
	for pair := w.vars.Oldest(); pair != nil; pair = pair.Next() {
		vars = append(vars, pair.Value)
	}
	w.mu.RUnlock()

	var firstErr error
	for _, action := range pre {
		if err := action(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for i := len(vars) - 1; i >= 0; i-- {
		if err := vars[i].Teardown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (w *Workspace) lockFor(name string) *deadlock.RWMutex {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.varLocks[name]
}

// GetValue reads a field from the named variable under its per-variable
// lock.
func (w *Workspace) GetValue(name, fieldPath string) (value.Value, bool) {
	v, ok := w.Lookup(name)
	if !ok {
		return value.Empty, false
	}
	lock := w.lockFor(name)
	lock.RLock()
	defer lock.RUnlock()
	return v.GetValue(fieldPath)
}

// Available reports whether the named variable's backend is ready.
func (w *Workspace) Available(name string) bool {
	v, ok := w.Lookup(name)
	if !ok {
		return false
	}
	return v.Available()
}

// SetValue writes a field on the named variable under its per-variable lock
// and, on success, publishes a change notification.
func (w *Workspace) SetValue(name, fieldPath string, v value.Value) bool {
	variable, ok := w.Lookup(name)
	if !ok {
		return false
	}
	lock := w.lockFor(name)

	var newVal value.Value
	var avail bool

	lock.Lock()
	ok = variable.SetValue(fieldPath, v)
	if ok {
		newVal, _ = variable.GetValue("")
		avail = variable.Available()
	}
	lock.Unlock()

	if !ok {
		return false
	}

	w.publish(name, newVal, avail)
	return true
}
