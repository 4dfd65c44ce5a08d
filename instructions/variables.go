package instructions

import (
	"reflect"

	"github.com/procbt/engine/attribute"
	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

// AddElement appends inputVar's value as a new element to the array at
// outputVar.
type AddElement struct {
	*instruction.Base

	inputVar  string
	outputVar string
}

func NewAddElement(name string, tags []string, inputVar, outputVar string) *AddElement {
	a := &AddElement{inputVar: inputVar, outputVar: outputVar}
	bag := attribute.NewBag()
	bag.Set("inputVar", inputVar)
	bag.Set("outputVar", outputVar)
	schema := attribute.NewSchema().
		Define(attribute.Definition{Name: "inputVar", Category: attribute.VariableName, Mandatory: true}).
		Define(attribute.Definition{Name: "outputVar", Category: attribute.VariableName, Mandatory: true})
	a.Base = instruction.NewBase("AddElement", name, tags, schema, bag, a)
	return a
}

func (a *AddElement) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	input, ok := ws.GetValue(a.inputVar, "")
	if !ok {
		return instruction.Failure
	}
	output, ok := ws.GetValue(a.outputVar, "")
	if !ok {
		return instruction.Failure
	}
	arr, ok := output.Raw().([]any)
	if !ok {
		return instruction.Failure
	}
	if len(arr) > 0 && !compatibleElement(arr[0], input.Raw()) {
		return instruction.Failure
	}
	updated := append(append([]any{}, arr...), input.Raw())
	if !ws.SetValue(a.outputVar, "", value.New(output.TypeName(), updated)) {
		return instruction.Failure
	}
	return instruction.Success
}

func compatibleElement(existing, candidate any) bool {
	if existing == nil || candidate == nil {
		return true
	}
	return reflect.TypeOf(existing) == reflect.TypeOf(candidate)
}

// AddMember adds a new named field to the structure at outputVar, sourced
// from inputVar. Failure if outputVar does not accept dynamic members.
type AddMember struct {
	*instruction.Base

	inputVar  string
	varName   string
	outputVar string
}

func NewAddMember(name string, tags []string, inputVar, memberName, outputVar string) *AddMember {
	m := &AddMember{inputVar: inputVar, varName: memberName, outputVar: outputVar}
	bag := attribute.NewBag()
	bag.Set("inputVar", inputVar)
	bag.Set("varName", memberName)
	bag.Set("outputVar", outputVar)
	schema := attribute.NewSchema().
		Define(attribute.Definition{Name: "inputVar", Category: attribute.VariableName, Mandatory: true}).
		Define(attribute.Definition{Name: "varName", Mandatory: true}).
		Define(attribute.Definition{Name: "outputVar", Category: attribute.VariableName, Mandatory: true})
	m.Base = instruction.NewBase("AddMember", name, tags, schema, bag, m)
	return m
}

func (m *AddMember) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	input, ok := ws.GetValue(m.inputVar, "")
	if !ok {
		return instruction.Failure
	}
	output, ok := ws.GetValue(m.outputVar, "")
	if !ok {
		return instruction.Failure
	}
	updated, err := output.SetField(m.varName, input.Raw())
	if err != nil {
		return instruction.Failure
	}
	if !ws.SetValue(m.outputVar, "", updated) {
		return instruction.Failure
	}
	return instruction.Success
}

// Copy assigns the value of srcVar into dstVar, subject to value.Assign's
// compatibility rules (spec §4.1).
type Copy struct {
	*instruction.Base

	srcVar string
	dstVar string
}

func NewCopy(name string, tags []string, srcVar, dstVar string) *Copy {
	c := &Copy{srcVar: srcVar, dstVar: dstVar}
	bag := attribute.NewBag()
	bag.Set("srcVar", srcVar)
	bag.Set("dstVar", dstVar)
	schema := attribute.NewSchema().
		Define(attribute.Definition{Name: "srcVar", Category: attribute.VariableName, Mandatory: true}).
		Define(attribute.Definition{Name: "dstVar", Category: attribute.VariableName, Mandatory: true})
	c.Base = instruction.NewBase("Copy", name, tags, schema, bag, c)
	return c
}

func (c *Copy) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	src, ok := ws.GetValue(c.srcVar, "")
	if !ok {
		return instruction.Failure
	}
	dst, ok := ws.GetValue(c.dstVar, "")
	if !ok {
		dst = value.Empty
	}
	result, err := dst.Assign(src)
	if err != nil {
		iface.Log(ui.SeverityError, err.Error())
		return instruction.Failure
	}
	if !ws.SetValue(c.dstVar, "", result) {
		return instruction.Failure
	}
	return instruction.Success
}

// ResetVariable writes the variable's zero value back, per the AnyType
// registry's declared zero payload, or empties it if none is registered.
type ResetVariable struct {
	*instruction.Base

	varName string
}

func NewResetVariable(name string, tags []string, varName string) *ResetVariable {
	r := &ResetVariable{varName: varName}
	bag := attribute.NewBag()
	bag.Set("varName", varName)
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "varName", Category: attribute.VariableName, Mandatory: true})
	r.Base = instruction.NewBase("ResetVariable", name, tags, schema, bag, r)
	return r
}

func (r *ResetVariable) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	current, ok := ws.GetValue(r.varName, "")
	if !ok {
		return instruction.Failure
	}
	zero := value.Empty
	if td, found := ws.Types.Lookup(current.TypeName()); found && len(td.Zero) > 0 {
		parsed, err := value.ParseJSON(current.TypeName(), string(td.Zero))
		if err == nil {
			zero = parsed
		}
	}
	if !ws.SetValue(r.varName, "", zero) {
		return instruction.Failure
	}
	return instruction.Success
}

// Increment / Decrement adjust a numeric workspace variable by one.
// Overflow never panics; it produces Failure (spec §4.5).
type Increment struct {
	*instruction.Base
	varName string
}

func NewIncrement(name string, tags []string, varName string) *Increment {
	i := &Increment{varName: varName}
	bag := attribute.NewBag()
	bag.Set("varName", varName)
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "varName", Category: attribute.VariableName, Mandatory: true})
	i.Base = instruction.NewBase("Increment", name, tags, schema, bag, i)
	return i
}

func (i *Increment) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	return applyDelta(ws, i.varName, 1)
}

type Decrement struct {
	*instruction.Base
	varName string
}

func NewDecrement(name string, tags []string, varName string) *Decrement {
	d := &Decrement{varName: varName}
	bag := attribute.NewBag()
	bag.Set("varName", varName)
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "varName", Category: attribute.VariableName, Mandatory: true})
	d.Base = instruction.NewBase("Decrement", name, tags, schema, bag, d)
	return d
}

func (d *Decrement) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	return applyDelta(ws, d.varName, -1)
}

func applyDelta(ws *workspace.Workspace, varName string, delta int64) instruction.ExecutionStatus {
	current, ok := ws.GetValue(varName, "")
	if !ok {
		return instruction.Failure
	}
	switch n := current.Raw().(type) {
	case int:
		next := n + int(delta)
		if (delta > 0 && next < n) || (delta < 0 && next > n) {
			return instruction.Failure
		}
		if !ws.SetValue(varName, "", value.New(current.TypeName(), next)) {
			return instruction.Failure
		}
	case int64:
		next := n + delta
		if delta > 0 && next < n {
			return instruction.Failure
		}
		if delta < 0 && next > n {
			return instruction.Failure
		}
		if !ws.SetValue(varName, "", value.New(current.TypeName(), next)) {
			return instruction.Failure
		}
	case float64:
		if !ws.SetValue(varName, "", value.New(current.TypeName(), n+float64(delta))) {
			return instruction.Failure
		}
	default:
		return instruction.Failure
	}
	return instruction.Success
}
