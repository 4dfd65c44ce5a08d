package instructions

import (
	"github.com/procbt/engine/attribute"
	procerrors "github.com/procbt/engine/errors"
	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

// Inverter swaps Success/Failure on its single child's terminal status,
// passing non-terminal statuses through unchanged.
type Inverter struct {
	*instruction.Base
}

func NewInverter(name string, tags []string, child instruction.Instruction) *Inverter {
	i := &Inverter{}
	i.Base = instruction.NewBase("Inverter", name, tags, nil, attribute.NewBag(), i)
	i.AddChild(child)
	return i
}

func (i *Inverter) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	status := i.Children()[0].Tick(iface, ws)
	switch status {
	case instruction.Success:
		return instruction.Failure
	case instruction.Failure:
		return instruction.Success
	default:
		return status
	}
}

// ForceSuccess waits for its child to reach any terminal status, then always
// returns Success.
type ForceSuccess struct {
	*instruction.Base
}

func NewForceSuccess(name string, tags []string, child instruction.Instruction) *ForceSuccess {
	f := &ForceSuccess{}
	f.Base = instruction.NewBase("ForceSuccess", name, tags, nil, attribute.NewBag(), f)
	f.AddChild(child)
	return f
}

func (f *ForceSuccess) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	status := f.Children()[0].Tick(iface, ws)
	if !status.Terminal() {
		return status
	}
	return instruction.Success
}

// Choice reads an unsigned integer or array of unsigned integers from a
// workspace variable and ticks the correspondingly indexed children, in
// listed order, with repetitions permitted (spec §4.5).
type Choice struct {
	*instruction.Base

	varName string

	selected []int
	pos      int
	started  bool
}

func NewChoice(name string, tags []string, varName string, children ...instruction.Instruction) *Choice {
	c := &Choice{varName: varName}
	bag := attribute.NewBag()
	bag.Set("varName", varName)
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "varName", Category: attribute.VariableName, Mandatory: true})
	c.Base = instruction.NewBase("Choice", name, tags, schema, bag, c)
	for _, child := range children {
		c.AddChild(child)
	}
	return c
}

func (c *Choice) InitImpl(iface ui.UserInterface, ws *workspace.Workspace) error {
	v, ok := ws.GetValue(c.varName, "")
	if !ok {
		return procerrors.New(procerrors.ErrVariableUnavailable, "Choice.InitImpl", "variable "+c.varName+" unavailable")
	}
	indices, err := toIntSlice(v)
	if err != nil {
		return procerrors.Wrap(err, procerrors.ErrTypeMismatch, "Choice.InitImpl", "varName must be an integer or integer array")
	}
	c.selected = indices
	c.pos = 0
	c.started = false
	return nil
}

func (c *Choice) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	children := c.Children()
	for c.pos < len(c.selected) {
		idx := c.selected[c.pos]
		if idx < 0 || idx >= len(children) {
			return instruction.Failure
		}
		child := children[idx]
		if !c.started {
			if child.Status().Terminal() {
				child.Reset(iface)
			}
			c.started = true
		}
		status := child.Tick(iface, ws)
		if status == instruction.Failure {
			return instruction.Failure
		}
		if status == instruction.Success {
			c.pos++
			c.started = false
			continue
		}
		return status
	}
	return instruction.Success
}

func toIntSlice(v value.Value) ([]int, error) {
	switch raw := v.Raw().(type) {
	case int:
		return []int{raw}, nil
	case int64:
		return []int{int(raw)}, nil
	case float64:
		return []int{int(raw)}, nil
	case []any:
		out := make([]int, 0, len(raw))
		for _, elem := range raw {
			switch n := elem.(type) {
			case int:
				out = append(out, n)
			case int64:
				out = append(out, int(n))
			case float64:
				out = append(out, int(n))
			default:
				return nil, procerrors.New(procerrors.ErrTypeMismatch, "toIntSlice", "array element is not numeric")
			}
		}
		return out, nil
	default:
		return nil, procerrors.New(procerrors.ErrTypeMismatch, "toIntSlice", "value is not an integer or integer array")
	}
}

// UserChoice requests a child index from the user interface via an async
// input future; when ready, ticks that single child to completion and
// adopts its status. An out-of-range index is Failure.
type UserChoice struct {
	*instruction.Base

	description string

	future   ui.InputFuture
	selected int
	resolved bool
}

func NewUserChoice(name string, tags []string, description string, children ...instruction.Instruction) *UserChoice {
	u := &UserChoice{description: description}
	bag := attribute.NewBag()
	bag.Set("description", description)
	u.Base = instruction.NewBase("UserChoice", name, tags, nil, bag, u)
	for _, c := range children {
		u.AddChild(c)
	}
	return u
}

func (u *UserChoice) InitImpl(iface ui.UserInterface, ws *workspace.Workspace) error {
	u.future = iface.RequestChoice(u.description, len(u.Children()))
	u.resolved = false
	return nil
}

func (u *UserChoice) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if !u.resolved {
		if !u.future.IsReady() {
			return instruction.Running
		}
		val, err := u.future.Get()
		if err != nil {
			return instruction.Failure
		}
		idx, ok := val.(int)
		if !ok {
			return instruction.Failure
		}
		children := u.Children()
		if idx < 0 || idx >= len(children) {
			return instruction.Failure
		}
		u.selected = idx
		u.resolved = true
	}
	return u.Children()[u.selected].Tick(iface, ws)
}

func (u *UserChoice) HaltImpl() {
	if u.future != nil {
		u.future.Cancel()
	}
	if u.resolved {
		u.Children()[u.selected].Halt()
	}
}

// For copies each element of a workspace array into elementVar in turn and
// ticks its single child to completion between elements, without mutating
// the source array.
type For struct {
	*instruction.Base

	arrayVar   string
	elementVar string

	elements []any
	idx      int
	started  bool
}

func NewFor(name string, tags []string, elementVar, arrayVar string, child instruction.Instruction) *For {
	f := &For{arrayVar: arrayVar, elementVar: elementVar}
	bag := attribute.NewBag()
	bag.Set("elementVar", elementVar)
	bag.Set("arrayVar", arrayVar)
	schema := attribute.NewSchema().
		Define(attribute.Definition{Name: "elementVar", Category: attribute.VariableName, Mandatory: true}).
		Define(attribute.Definition{Name: "arrayVar", Category: attribute.VariableName, Mandatory: true})
	f.Base = instruction.NewBase("For", name, tags, schema, bag, f)
	f.AddChild(child)
	return f
}

func (f *For) InitImpl(iface ui.UserInterface, ws *workspace.Workspace) error {
	v, ok := ws.GetValue(f.arrayVar, "")
	if !ok {
		return procerrors.New(procerrors.ErrVariableUnavailable, "For.InitImpl", "variable "+f.arrayVar+" unavailable")
	}
	elems, ok := v.Raw().([]any)
	if !ok {
		return procerrors.New(procerrors.ErrTypeMismatch, "For.InitImpl", "arrayVar does not hold an array")
	}
	f.elements = elems
	f.idx = 0
	f.started = false
	return nil
}

func (f *For) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if f.idx >= len(f.elements) {
		return instruction.Success
	}
	child := f.Children()[0]
	if !f.started {
		ws.SetValue(f.elementVar, "", value.New("", f.elements[f.idx]))
		if child.Status().Terminal() {
			child.Reset(iface)
		}
		f.started = true
	}

	status := child.Tick(iface, ws)
	if status == instruction.Failure {
		return instruction.Failure
	}
	if status == instruction.Success {
		f.idx++
		f.started = false
		if f.idx >= len(f.elements) {
			return instruction.Success
		}
		return instruction.NotFinished
	}
	return status
}

// Repeat ticks its single child up to maxCount times, resetting between
// successes; maxCount == -1 means unbounded.
type Repeat struct {
	*instruction.Base

	maxCount int
	count    int
}

func NewRepeat(name string, tags []string, maxCount int, child instruction.Instruction) *Repeat {
	if maxCount == 0 {
		maxCount = 1
	}
	r := &Repeat{maxCount: maxCount}
	bag := attribute.NewBag()
	r.Base = instruction.NewBase("Repeat", name, tags, nil, bag, r)
	r.AddChild(child)
	return r
}

func (r *Repeat) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	child := r.Children()[0]
	status := child.Tick(iface, ws)
	if status == instruction.Failure {
		return instruction.Failure
	}
	if status == instruction.Success {
		r.count++
		if r.maxCount != -1 && r.count >= r.maxCount {
			return instruction.Success
		}
		child.Reset(iface)
		return instruction.NotFinished
	}
	return status
}
