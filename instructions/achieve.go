package instructions

import (
	"strconv"
	"time"

	"github.com/procbt/engine/attribute"
	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/workspace"
)

type achievePhase int

const (
	achievePhaseCheck achievePhase = iota
	achievePhaseAction
)

// AchieveCondition ticks its condition child first; if already Success, it
// is done. Otherwise it ticks its action child, concurrently re-checking
// the condition each tick so an external change can short-circuit success;
// once the action terminates, it ticks the condition one final time and
// adopts that result (spec §4.5).
type AchieveCondition struct {
	*instruction.Base

	phase achievePhase
}

// NewAchieveCondition builds an AchieveCondition with exactly two children:
// condition then action, in that order.
func NewAchieveCondition(name string, tags []string, condition, action instruction.Instruction) *AchieveCondition {
	a := &AchieveCondition{}
	a.Base = instruction.NewBase("AchieveCondition", name, tags, nil, attribute.NewBag(), a)
	a.AddChild(condition)
	a.AddChild(action)
	return a
}

func (a *AchieveCondition) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	children := a.Children()
	condition, action := children[0], children[1]

	if a.phase == achievePhaseCheck {
		status := condition.Tick(iface, ws)
		if status == instruction.Success {
			return instruction.Success
		}
		if !status.Terminal() {
			return status
		}
		a.phase = achievePhaseAction
	}

	return a.tickActionPhase(iface, ws, condition, action)
}

func (a *AchieveCondition) tickActionPhase(iface ui.UserInterface, ws *workspace.Workspace, condition, action instruction.Instruction) instruction.ExecutionStatus {
	if condition.Status().Terminal() {
		condition.Reset(iface)
	}
	condStatus := condition.Tick(iface, ws)
	if condStatus == instruction.Success {
		action.Halt()
		return instruction.Success
	}

	actionStatus := action.Tick(iface, ws)
	if !actionStatus.Terminal() {
		return instruction.Running
	}

	if condition.Status().Terminal() {
		condition.Reset(iface)
	}
	return condition.Tick(iface, ws)
}

// AchieveConditionWithOverride behaves like AchieveCondition; if the final
// condition check fails, it issues a 3-way Retry/Override/Abort prompt
// instead of returning Failure directly.
type AchieveConditionWithOverride struct {
	*instruction.Base

	phase      achievePhase
	hasCond    bool
	prompting  bool
	future     ui.InputFuture
}

// NewAchieveConditionWithOverride accepts either (action) or
// (condition, action), per spec §4.5's "one or two children".
func NewAchieveConditionWithOverride(name string, tags []string, children ...instruction.Instruction) *AchieveConditionWithOverride {
	a := &AchieveConditionWithOverride{hasCond: len(children) == 2}
	a.Base = instruction.NewBase("AchieveConditionWithOverride", name, tags, nil, attribute.NewBag(), a)
	for _, c := range children {
		a.AddChild(c)
	}
	return a
}

func (a *AchieveConditionWithOverride) condition() instruction.Instruction {
	if !a.hasCond {
		return nil
	}
	return a.Children()[0]
}

func (a *AchieveConditionWithOverride) action() instruction.Instruction {
	children := a.Children()
	if a.hasCond {
		return children[1]
	}
	return children[0]
}

func (a *AchieveConditionWithOverride) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if a.prompting {
		return a.tickPrompt(iface, ws)
	}

	condition := a.condition()
	action := a.action()

	if a.phase == achievePhaseCheck {
		if condition != nil {
			status := condition.Tick(iface, ws)
			if status == instruction.Success {
				return instruction.Success
			}
			if !status.Terminal() {
				return status
			}
		}
		a.phase = achievePhaseAction
	}

	if condition != nil {
		if condition.Status().Terminal() {
			condition.Reset(iface)
		}
		if status := condition.Tick(iface, ws); status == instruction.Success {
			action.Halt()
			return instruction.Success
		}
	}

	actionStatus := action.Tick(iface, ws)
	if !actionStatus.Terminal() {
		return instruction.Running
	}

	finalStatus := instruction.Success
	if condition != nil {
		if condition.Status().Terminal() {
			condition.Reset(iface)
		}
		finalStatus = condition.Tick(iface, ws)
	} else {
		finalStatus = actionStatus
	}
	if finalStatus == instruction.Success {
		return instruction.Success
	}

	a.prompting = true
	a.future = iface.RequestChoice("Retry/Override/Abort", 3)
	return a.tickPrompt(iface, ws)
}

func (a *AchieveConditionWithOverride) tickPrompt(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if !a.future.IsReady() {
		return instruction.Running
	}
	v, err := a.future.Get()
	if err != nil {
		return instruction.Failure
	}
	choice, _ := v.(int)
	a.prompting = false
	switch choice {
	case 0: // Retry
		if c := a.condition(); c != nil {
			c.Reset(iface)
		}
		a.action().Reset(iface)
		a.phase = achievePhaseCheck
		return instruction.NotFinished
	case 1: // Override
		return instruction.Success
	default: // Abort
		return instruction.Failure
	}
}

func (a *AchieveConditionWithOverride) HaltImpl() {
	if a.future != nil {
		a.future.Cancel()
	}
	a.action().Halt()
}

// AchieveConditionWithTimeout is AchieveCondition, except after the action
// terminates it keeps re-ticking the condition every cycle, up to timeout,
// instead of checking it only once. varNames documents which variables the
// condition depends on.
type AchieveConditionWithTimeout struct {
	*instruction.Base

	varNames       []string
	timeoutSeconds float64

	phase      achievePhase
	actionDone bool
	started    bool
	deadline   time.Time
}

func NewAchieveConditionWithTimeout(name string, tags []string, varNames []string, timeoutSeconds float64, condition, action instruction.Instruction) *AchieveConditionWithTimeout {
	a := &AchieveConditionWithTimeout{varNames: varNames, timeoutSeconds: timeoutSeconds}
	bag := attribute.NewBag()
	if timeoutSeconds != 0 {
		bag.Set("timeout", strconv.FormatFloat(timeoutSeconds, 'f', -1, 64))
	}
	a.Base = instruction.NewBase("AchieveConditionWithTimeout", name, tags, nil, bag, a)
	a.AddChild(condition)
	a.AddChild(action)
	return a
}

func (a *AchieveConditionWithTimeout) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	children := a.Children()
	condition, action := children[0], children[1]

	if a.phase == achievePhaseCheck {
		status := condition.Tick(iface, ws)
		if status == instruction.Success {
			return instruction.Success
		}
		if !status.Terminal() {
			return status
		}
		a.phase = achievePhaseAction
	}

	if !a.actionDone {
		if condition.Status().Terminal() {
			condition.Reset(iface)
		}
		if status := condition.Tick(iface, ws); status == instruction.Success {
			action.Halt()
			return instruction.Success
		}
		actionStatus := action.Tick(iface, ws)
		if !actionStatus.Terminal() {
			return instruction.Running
		}
		a.actionDone = true
		a.started = true
		a.deadline = time.Now().Add(time.Duration(a.timeoutSeconds * float64(time.Second)))
	}

	if condition.Status().Terminal() {
		condition.Reset(iface)
	}
	status := condition.Tick(iface, ws)
	if status == instruction.Success {
		return instruction.Success
	}

	if a.timeoutSeconds > 0 && !time.Now().Before(a.deadline) {
		return instruction.Failure
	}
	return instruction.Running
}

func (a *AchieveConditionWithTimeout) HaltImpl() {
	for _, c := range a.Children() {
		c.Halt()
	}
}

// ExecuteWhile ticks its action child on every cycle while re-checking its
// condition child each time too; Success iff action completes with Success
// while the condition held throughout. varNames documents which variables
// the condition depends on; re-evaluation is unconditional poll, not gated
// on those variables actually changing.
type ExecuteWhile struct {
	*instruction.Base

	varNames []string
}

// NewExecuteWhile builds an ExecuteWhile with exactly two children: action
// then condition, in that order.
func NewExecuteWhile(name string, tags []string, varNames []string, action, condition instruction.Instruction) *ExecuteWhile {
	e := &ExecuteWhile{varNames: varNames}
	bag := attribute.NewBag()
	e.Base = instruction.NewBase("ExecuteWhile", name, tags, nil, bag, e)
	e.AddChild(action)
	e.AddChild(condition)
	return e
}

func (e *ExecuteWhile) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	children := e.Children()
	action, condition := children[0], children[1]

	condStatus := condition.Tick(iface, ws)
	if condStatus == instruction.Failure {
		action.Halt()
		return instruction.Failure
	}
	if condition.Status().Terminal() {
		condition.Reset(iface)
	}

	actionStatus := action.Tick(iface, ws)
	if actionStatus == instruction.Failure {
		return instruction.Failure
	}
	if actionStatus == instruction.Success {
		return instruction.Success
	}
	return instruction.Running
}

func (e *ExecuteWhile) HaltImpl() {
	for _, c := range e.Children() {
		c.Halt()
	}
}
