package instruction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/workspace"
)

type constStatus struct {
	*instruction.Base
	status instruction.ExecutionStatus
}

func newConstStatus(status instruction.ExecutionStatus) *constStatus {
	c := &constStatus{status: status}
	c.Base = instruction.NewBase("Const", "", nil, nil, nil, c)
	return c
}

func (c *constStatus) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	return c.status
}

func TestTerminalStatusNeverReTicks(t *testing.T) {
	ws := workspace.New()
	iface := ui.NewConsoleUI(nil, nil)

	c := newConstStatus(instruction.Success)
	assert.Equal(t, instruction.Success, c.Tick(iface, ws))

	c.status = instruction.Failure
	assert.Equal(t, instruction.Success, c.Tick(iface, ws), "terminal status must not change on further ticks")
}

func TestNotStartedTransitionsThroughNotFinished(t *testing.T) {
	ws := workspace.New()
	iface := ui.NewConsoleUI(nil, nil)

	c := newConstStatus(instruction.Running)
	require.Equal(t, instruction.NotStarted, c.Status())

	got := c.Tick(iface, ws)
	assert.Equal(t, instruction.Running, got)
}

func TestResetReturnsToNotStarted(t *testing.T) {
	ws := workspace.New()
	iface := ui.NewConsoleUI(nil, nil)

	c := newConstStatus(instruction.Success)
	c.Tick(iface, ws)
	require.Equal(t, instruction.Success, c.Status())

	c.Reset(iface)
	assert.Equal(t, instruction.NotStarted, c.Status())
	assert.False(t, c.Halted())
}

type initFailing struct {
	*instruction.Base
}

func newInitFailing() *initFailing {
	f := &initFailing{}
	f.Base = instruction.NewBase("InitFailing", "", nil, nil, nil, f)
	return f
}

func (f *initFailing) InitImpl(iface ui.UserInterface, ws *workspace.Workspace) error {
	return assertError{}
}

func (f *initFailing) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	return instruction.Success
}

type assertError struct{}

func (assertError) Error() string { return "init failed" }

func TestInitFailureTransitionsToFailure(t *testing.T) {
	ws := workspace.New()
	iface := ui.NewConsoleUI(nil, nil)

	f := newInitFailing()
	got := f.Tick(iface, ws)
	assert.Equal(t, instruction.Failure, got)
	assert.Equal(t, instruction.Failure, f.Status())
}

func TestHaltSetsFlagAndPropagatesToChildren(t *testing.T) {
	parent := newConstStatus(instruction.Running)
	child := newConstStatus(instruction.Running)
	parent.AddChild(child)

	parent.Halt()
	assert.True(t, parent.Halted())
	assert.True(t, child.Halted())
}
