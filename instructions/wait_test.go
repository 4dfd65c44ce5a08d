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

func TestWaitZeroTimeoutSucceedsImmediately(t *testing.T) {
	ws := workspace.New()
	w := instructions.NewWait("w", nil, 0)
	assert.Equal(t, instruction.Success, w.Tick(ui.Base{}, ws))
}

func TestWaitRunsUntilDeadlineThenSucceeds(t *testing.T) {
	ws := workspace.New()
	w := instructions.NewWait("w", nil, 0.05)

	status := w.Tick(ui.Base{}, ws)
	assert.Equal(t, instruction.Running, status)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		status = w.Tick(ui.Base{}, ws)
		if status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, instruction.Success, status)
}

func TestWaitForVariableSucceedsWhenAvailableAndNonEmpty(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("x", workspace.NewLocalVariable("", value.New("", 5))))

	w := instructions.NewWaitForVariable("w", nil, "x", "", 0)
	assert.Equal(t, instruction.Success, w.Tick(ui.Base{}, ws))
}

func TestWaitForVariableFailsAtDeadlineWhenUnsatisfied(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("x", workspace.NewLocalVariable("", value.Empty)))

	w := instructions.NewWaitForVariable("w", nil, "x", "", 0.05)

	deadline := time.Now().Add(time.Second)
	var status instruction.ExecutionStatus
	for time.Now().Before(deadline) {
		status = w.Tick(ui.Base{}, ws)
		if status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, instruction.Failure, status)
}

func TestWaitForVariableWithEqualsVar(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("x", workspace.NewLocalVariable("", value.New("", 7))))
	require.NoError(t, ws.AddVariable("ref", workspace.NewLocalVariable("", value.New("", 7))))

	w := instructions.NewWaitForVariable("w", nil, "x", "ref", 0)
	assert.Equal(t, instruction.Success, w.Tick(ui.Base{}, ws))
}

func TestWaitForVariablesSucceedsWhenAllOfTypeAreAvailable(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("a", workspace.NewLocalVariable("probe", value.New("probe", 1))))
	require.NoError(t, ws.AddVariable("b", workspace.NewLocalVariable("probe", value.New("probe", 2))))
	require.NoError(t, ws.AddVariable("c", workspace.NewLocalVariable("other", value.New("other", 3))))

	w := instructions.NewWaitForVariables("w", nil, "probe", 0)
	assert.Equal(t, instruction.Success, w.Tick(ui.Base{}, ws))
}

func TestWaitForConditionSucceedsWhenConditionHolds(t *testing.T) {
	ws := workspace.New()
	condition := newStub(instruction.Success)
	w := instructions.NewWaitForCondition("w", nil, []string{"x"}, 0, condition)

	assert.Equal(t, instruction.Success, w.Tick(ui.Base{}, ws))
}

func TestWaitForConditionFailsAtDeadline(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("live", workspace.NewLocalVariable("", value.New("", "zero"))))
	condition := newStub(instruction.Failure)
	w := instructions.NewWaitForCondition("w", nil, []string{"live"}, 0.05, condition)

	deadline := time.Now().Add(time.Second)
	var status instruction.ExecutionStatus
	for time.Now().Before(deadline) {
		status = w.Tick(ui.Base{}, ws)
		if status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, instruction.Failure, status)
}
