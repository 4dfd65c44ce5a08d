package instructions

import (
	"strconv"
	"time"

	"github.com/procbt/engine/attribute"
	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

// Wait blocks (in the cooperative, Running-returning sense) until a
// monotonic deadline; a missing or zero timeout succeeds immediately.
type Wait struct {
	*instruction.Base

	timeoutSeconds float64

	started  bool
	deadline time.Time
}

func NewWait(name string, tags []string, timeoutSeconds float64) *Wait {
	w := &Wait{timeoutSeconds: timeoutSeconds}
	bag := attribute.NewBag()
	if timeoutSeconds != 0 {
		bag.Set("timeout", strconv.FormatFloat(timeoutSeconds, 'f', -1, 64))
	}
	w.Base = instruction.NewBase("Wait", name, tags, nil, bag, w)
	return w
}

func (w *Wait) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if w.timeoutSeconds <= 0 {
		return instruction.Success
	}
	if !w.started {
		w.deadline = time.Now().Add(time.Duration(w.timeoutSeconds * float64(time.Second)))
		w.started = true
	}
	if w.Halted() {
		return instruction.Success
	}
	if time.Now().Before(w.deadline) {
		return instruction.Running
	}
	return instruction.Success
}

// WaitForVariable succeeds as soon as varName is readable, non-empty, and
// (if equalsVar is set) equal to that reference variable's value; it fails
// at its deadline.
type WaitForVariable struct {
	*instruction.Base

	varName        string
	equalsVar      string
	timeoutSeconds float64

	started  bool
	deadline time.Time
	sub      workspace.Subscription
	ws       *workspace.Workspace
}

func NewWaitForVariable(name string, tags []string, varName, equalsVar string, timeoutSeconds float64) *WaitForVariable {
	w := &WaitForVariable{varName: varName, equalsVar: equalsVar, timeoutSeconds: timeoutSeconds}
	bag := attribute.NewBag()
	bag.Set("varName", varName)
	if equalsVar != "" {
		bag.Set("equalsVar", equalsVar)
	}
	if timeoutSeconds != 0 {
		bag.Set("timeout", strconv.FormatFloat(timeoutSeconds, 'f', -1, 64))
	}
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "varName", Category: attribute.VariableName, Mandatory: true})
	w.Base = instruction.NewBase("WaitForVariable", name, tags, schema, bag, w)
	return w
}

func (w *WaitForVariable) InitImpl(iface ui.UserInterface, ws *workspace.Workspace) error {
	w.ws = ws
	w.sub = ws.Subscribe(w.varName, func(name string, v value.Value, available bool) {})
	return nil
}

func (w *WaitForVariable) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if !w.started {
		w.deadline = time.Now().Add(time.Duration(w.timeoutSeconds * float64(time.Second)))
		w.started = true
	}
	if w.satisfied(ws) {
		return instruction.Success
	}
	if w.timeoutSeconds > 0 && !time.Now().Before(w.deadline) {
		return instruction.Failure
	}
	return instruction.Running
}

func (w *WaitForVariable) satisfied(ws *workspace.Workspace) bool {
	v, avail := ws.GetValue(w.varName, "")
	if !avail || v.IsEmpty() {
		return false
	}
	if w.equalsVar == "" {
		return true
	}
	ref, refAvail := ws.GetValue(w.equalsVar, "")
	if !refAvail {
		return false
	}
	result, ok := compareValues(v, ref, opEquals)
	return ok && result
}

func (w *WaitForVariable) HaltImpl() {
	if w.ws != nil {
		w.ws.Unsubscribe(w.sub)
	}
}

// WaitForVariables succeeds once every workspace variable of varType is
// available.
type WaitForVariables struct {
	*instruction.Base

	varType        string
	timeoutSeconds float64

	started  bool
	deadline time.Time
}

func NewWaitForVariables(name string, tags []string, varType string, timeoutSeconds float64) *WaitForVariables {
	w := &WaitForVariables{varType: varType, timeoutSeconds: timeoutSeconds}
	bag := attribute.NewBag()
	bag.Set("varType", varType)
	if timeoutSeconds != 0 {
		bag.Set("timeout", strconv.FormatFloat(timeoutSeconds, 'f', -1, 64))
	}
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "varType", Mandatory: true})
	w.Base = instruction.NewBase("WaitForVariables", name, tags, schema, bag, w)
	return w
}

func (w *WaitForVariables) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if !w.started {
		w.deadline = time.Now().Add(time.Duration(w.timeoutSeconds * float64(time.Second)))
		w.started = true
	}
	allReady := true
	for _, n := range ws.Names() {
		v, ok := ws.Lookup(n)
		if !ok || v.TypeName() != w.varType {
			continue
		}
		if !v.Available() {
			allReady = false
			break
		}
	}
	if allReady {
		return instruction.Success
	}
	if w.timeoutSeconds > 0 && !time.Now().Before(w.deadline) {
		return instruction.Failure
	}
	return instruction.Running
}

// WaitForCondition ticks its single condition child; if it is not Success,
// re-ticks the condition on every subsequent tick until it succeeds or
// timeout elapses.
type WaitForCondition struct {
	*instruction.Base

	varNames       []string
	timeoutSeconds float64

	started  bool
	deadline time.Time
}

func NewWaitForCondition(name string, tags []string, varNames []string, timeoutSeconds float64, condition instruction.Instruction) *WaitForCondition {
	w := &WaitForCondition{varNames: varNames, timeoutSeconds: timeoutSeconds}
	bag := attribute.NewBag()
	if timeoutSeconds != 0 {
		bag.Set("timeout", strconv.FormatFloat(timeoutSeconds, 'f', -1, 64))
	}
	w.Base = instruction.NewBase("WaitForCondition", name, tags, nil, bag, w)
	w.AddChild(condition)
	return w
}

func (w *WaitForCondition) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if !w.started {
		w.deadline = time.Now().Add(time.Duration(w.timeoutSeconds * float64(time.Second)))
		w.started = true
	}

	condition := w.Children()[0]
	if condition.Status().Terminal() {
		condition.Reset(iface)
	}
	status := condition.Tick(iface, ws)
	if status == instruction.Success {
		return instruction.Success
	}

	if w.timeoutSeconds > 0 && !time.Now().Before(w.deadline) {
		return instruction.Failure
	}
	return instruction.Running
}

func (w *WaitForCondition) HaltImpl() {
	w.Children()[0].Halt()
}
