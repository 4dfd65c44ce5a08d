package instructions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/instructions"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

func TestAchieveConditionShortCircuitsWhenAlreadyTrue(t *testing.T) {
	ws := workspace.New()
	condition := newStub(instruction.Success)
	action := newStub(instruction.Success)

	a := instructions.NewAchieveCondition("a", nil, condition, action)
	assert.Equal(t, instruction.Success, a.Tick(ui.Base{}, ws))
	assert.Equal(t, 0, action.ticks)
}

func TestAchieveConditionRunsActionThenAdoptsFinalConditionResult(t *testing.T) {
	ws := workspace.New()
	condition := newStub(instruction.Failure, instruction.Failure, instruction.Failure, instruction.Success)
	action := newStub(instruction.Running, instruction.Success)

	a := instructions.NewAchieveCondition("a", nil, condition, action)

	status := tickUntilTerminal(a, ui.Base{}, ws, 10)
	assert.Equal(t, instruction.Success, status)
	assert.Equal(t, 2, action.ticks)
}

func TestAchieveConditionSucceedsEarlyIfConditionBecomesTrueDuringAction(t *testing.T) {
	ws := workspace.New()
	condition := newStub(instruction.Failure, instruction.Success)
	action := newStub(instruction.Running, instruction.Running, instruction.Running)

	a := instructions.NewAchieveCondition("a", nil, condition, action)

	status := tickUntilTerminal(a, ui.Base{}, ws, 10)
	assert.Equal(t, instruction.Success, status)
	assert.Equal(t, 1, action.halts)
}

func TestAchieveConditionWithOverrideOverridesFailureToSuccess(t *testing.T) {
	ws := workspace.New()
	condition := newStub(instruction.Failure, instruction.Failure)
	action := newStub(instruction.Failure)

	iface := &fakeUI{choice: &fakeFuture{ready: true, val: 1}} // Override
	a := instructions.NewAchieveConditionWithOverride("a", nil, condition, action)

	status := tickUntilTerminal(a, iface, ws, 10)
	assert.Equal(t, instruction.Success, status)
}

func TestAchieveConditionWithOverrideAbortReturnsFailure(t *testing.T) {
	ws := workspace.New()
	condition := newStub(instruction.Failure, instruction.Failure)
	action := newStub(instruction.Failure)

	iface := &fakeUI{choice: &fakeFuture{ready: true, val: 2}} // Abort
	a := instructions.NewAchieveConditionWithOverride("a", nil, condition, action)

	status := tickUntilTerminal(a, iface, ws, 10)
	assert.Equal(t, instruction.Failure, status)
}

func TestAchieveConditionWithTimeoutFailsAtDeadline(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("live", workspace.NewLocalVariable("", value.New("", 0))))

	condition := newStub(instruction.Failure)
	action := newStub(instruction.Success)

	a := instructions.NewAchieveConditionWithTimeout("a", nil, []string{"live"}, 0.05, condition, action)

	deadline := time.Now().Add(time.Second)
	var status instruction.ExecutionStatus
	for time.Now().Before(deadline) {
		status = a.Tick(ui.Base{}, ws)
		if status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, instruction.Failure, status)
}

func TestExecuteWhileSucceedsWhenActionCompletesAndConditionHeld(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("live", workspace.NewLocalVariable("", value.New("", 1))))

	action := newStub(instruction.Running, instruction.Success)
	condition := newStub(instruction.Success)

	e := instructions.NewExecuteWhile("e", nil, []string{"live"}, action, condition)

	status := tickUntilTerminal(e, ui.Base{}, ws, 10)
	assert.Equal(t, instruction.Success, status)
}

func TestExecuteWhileFailsAndHaltsActionWhenConditionFails(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("live", workspace.NewLocalVariable("", value.New("", 1))))

	action := newStub(instruction.Running, instruction.Running, instruction.Running)
	condition := newStub(instruction.Success, instruction.Failure)

	e := instructions.NewExecuteWhile("e", nil, []string{"live"}, action, condition)

	status := tickUntilTerminal(e, ui.Base{}, ws, 10)
	assert.Equal(t, instruction.Failure, status)
	assert.Equal(t, 1, action.halts)
}
