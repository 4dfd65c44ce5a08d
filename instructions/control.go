package instructions

import (
	"strings"

	"github.com/sasha-s/go-deadlock"

	"github.com/procbt/engine/attribute"
	procerrors "github.com/procbt/engine/errors"
	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

// Listen subscribes to a set of workspace variables and resets+re-ticks its
// single child each time any of them changes. It is edge-triggered: the
// child is never evaluated until the first post-subscription change
// notification arrives, so an instruction nested under Listen never runs
// against the procedure's starting values (spec §4.5, §8 scenario 5).
type Listen struct {
	*instruction.Base

	varNames     []string
	forceSuccess bool

	ws      *workspace.Workspace
	subs    []workspace.Subscription
	dirty   bool
	started bool
	dirtyMu deadlock.Mutex
	done    bool
}

func NewListen(name string, tags []string, varNames []string, forceSuccess bool, child instruction.Instruction) *Listen {
	l := &Listen{varNames: varNames, forceSuccess: forceSuccess}
	bag := attribute.NewBag()
	bag.Set("varNames", strings.Join(varNames, ","))
	if forceSuccess {
		bag.Set("forceSuccess", "true")
	}
	l.Base = instruction.NewBase("Listen", name, tags, nil, bag, l)
	l.AddChild(child)
	return l
}

func (l *Listen) InitImpl(iface ui.UserInterface, ws *workspace.Workspace) error {
	l.ws = ws
	for _, name := range l.varNames {
		sub := ws.Subscribe(name, l.onChange)
		l.subs = append(l.subs, sub)
	}
	return nil
}

func (l *Listen) onChange(name string, v value.Value, available bool) {
	l.dirtyMu.Lock()
	l.dirty = true
	l.dirtyMu.Unlock()
}

func (l *Listen) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if l.done {
		return instruction.Failure
	}

	l.dirtyMu.Lock()
	dirty := l.dirty
	l.dirty = false
	l.dirtyMu.Unlock()

	if !l.started {
		if !dirty {
			// No listed variable has changed yet: the child has never been
			// evaluated and must not run against starting values.
			return instruction.Running
		}
		l.started = true
	}

	child := l.Children()[0]
	if dirty && child.Status().Terminal() {
		child.Reset(iface)
	}
	if !dirty && child.Status().Terminal() {
		// Idle between changes: the child already holds a stable resolved
		// status, nothing to do until the next change re-arms it.
		return instruction.Running
	}

	status := child.Tick(iface, ws)
	if !status.Terminal() {
		return instruction.Running
	}
	if status == instruction.Failure {
		l.done = true
		return instruction.Failure
	}
	// Success.
	if l.forceSuccess {
		return instruction.Running
	}
	l.done = true
	return instruction.Success
}

func (l *Listen) HaltImpl() {
	if l.ws != nil {
		for _, sub := range l.subs {
			l.ws.Unsubscribe(sub)
		}
	}
	l.done = true
	l.Children()[0].Halt()
}

// Include is a non-owning decorator referencing another top-level
// instruction in the same procedure (or an external file), resolved at
// Setup (spec §4.5).
type Include struct {
	*instruction.Base

	path string
	file string

	resolved instruction.Instruction
}

func NewInclude(name string, tags []string, path, file string) *Include {
	i := &Include{path: path, file: file}
	bag := attribute.NewBag()
	bag.Set("path", path)
	if file != "" {
		bag.Set("file", file)
	}
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "path", Mandatory: true})
	i.Base = instruction.NewBase("Include", name, tags, schema, bag, i)
	return i
}

func (i *Include) ResolveImpl(ctx instruction.SetupContext) error {
	if i.file != "" {
		resolved, _, err := ctx.ResolveIncludeFile(i.file, i.path)
		if err != nil {
			return err
		}
		i.resolved = resolved
		return nil
	}
	resolved, err := ctx.ResolveInclude(i.path)
	if err != nil {
		return err
	}
	i.resolved = resolved
	return nil
}

func (i *Include) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	return i.resolved.Tick(iface, ws)
}

func (i *Include) HaltImpl() {
	if i.resolved != nil {
		i.resolved.Halt()
	}
}

// Resolved returns the instruction this Include points at, once Setup has
// run; used by procedure.Procedure to walk the include graph for cycle
// detection (spec §7's CyclicInclude).
func (i *Include) Resolved() instruction.Instruction { return i.resolved }

// IncludePath returns the referenced top-level instruction name.
func (i *Include) IncludePath() string { return i.path }

// IncludeProcedure is like Include but additionally merges the referenced
// procedure's workspace into the current one without overriding existing
// names (spec §4.5, Open Question #1).
type IncludeProcedure struct {
	*instruction.Base

	file string
	path string

	resolved instruction.Instruction
}

func NewIncludeProcedure(name string, tags []string, file, path string) *IncludeProcedure {
	ip := &IncludeProcedure{file: file, path: path}
	bag := attribute.NewBag()
	bag.Set("file", file)
	if path != "" {
		bag.Set("path", path)
	}
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "file", Mandatory: true})
	ip.Base = instruction.NewBase("IncludeProcedure", name, tags, schema, bag, ip)
	return ip
}

func (ip *IncludeProcedure) ResolveImpl(ctx instruction.SetupContext) error {
	resolved, externalWS, err := ctx.ResolveIncludeFile(ip.file, ip.path)
	if err != nil {
		return err
	}
	ip.resolved = resolved
	if externalWS != nil {
		ws := ctx.Workspace()
		for _, varName := range externalWS.Names() {
			v, _ := externalWS.Lookup(varName)
			if err := ws.AddVariable(varName, v); err != nil {
				// name collision: current workspace wins, external variable
				// is silently skipped (Open Question #1 decision).
				continue
			}
		}
	}
	return nil
}

func (ip *IncludeProcedure) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	return ip.resolved.Tick(iface, ws)
}

func (ip *IncludeProcedure) HaltImpl() {
	if ip.resolved != nil {
		ip.resolved.Halt()
	}
}

// Resolved returns the instruction this IncludeProcedure points at, once
// Setup has run.
func (ip *IncludeProcedure) Resolved() instruction.Instruction { return ip.resolved }

// Condition reads a workspace variable and coerces it to boolean (spec
// §4.5's Condition/int/float/string coercion rules), succeeding iff true.
type Condition struct {
	*instruction.Base

	varName string
}

func NewCondition(name string, tags []string, varName string) *Condition {
	c := &Condition{varName: varName}
	bag := attribute.NewBag()
	bag.Set("varName", varName)
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "varName", Category: attribute.VariableName, Mandatory: true})
	c.Base = instruction.NewBase("Condition", name, tags, schema, bag, c)
	return c
}

func (c *Condition) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	v, ok := ws.GetValue(c.varName, "")
	if !ok {
		return instruction.Failure
	}
	truthy, err := coerceBool(v.Raw())
	if err != nil {
		iface.Log(ui.SeverityError, err.Error())
		return instruction.Failure
	}
	if truthy {
		return instruction.Success
	}
	return instruction.Failure
}

func coerceBool(raw any) (bool, error) {
	switch n := raw.(type) {
	case bool:
		return n, nil
	case int:
		return n != 0, nil
	case int64:
		return n != 0, nil
	case float64:
		return n != 0 && n == n, nil
	case string:
		return n != "", nil
	case nil:
		return false, nil
	default:
		return false, procerrors.New(procerrors.ErrTypeMismatch, "Condition.TickImpl", "value cannot be coerced to boolean")
	}
}

// VarExists succeeds iff the named variable is present in the workspace.
type VarExists struct {
	*instruction.Base

	varName string
}

func NewVarExists(name string, tags []string, varName string) *VarExists {
	v := &VarExists{varName: varName}
	bag := attribute.NewBag()
	bag.Set("varName", varName)
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "varName", Category: attribute.VariableName, Mandatory: true})
	v.Base = instruction.NewBase("VarExists", name, tags, schema, bag, v)
	return v
}

func (v *VarExists) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if _, ok := ws.Lookup(v.varName); ok {
		return instruction.Success
	}
	return instruction.Failure
}
