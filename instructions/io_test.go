package instructions_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/instructions"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

func TestInputWritesResolvedValueToOutputVar(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("answer", workspace.NewLocalVariable("", value.Empty)))

	iface := &fakeUI{input: &fakeFuture{ready: true, val: "42"}}
	in := instructions.NewInput("in", nil, "answer", "what is it?")

	assert.Equal(t, instruction.Success, in.Tick(iface, ws))

	got, _ := ws.GetValue("answer", "")
	assert.Equal(t, "42", got.Raw())
}

func TestInputRunningUntilFutureReady(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("answer", workspace.NewLocalVariable("", value.Empty)))

	future := &fakeFuture{ready: false}
	iface := &fakeUI{input: future}
	in := instructions.NewInput("in", nil, "answer", "")

	assert.Equal(t, instruction.Running, in.Tick(iface, ws))
	in.Halt()
	assert.True(t, future.canceled)
}

func TestInputFailsOnFutureError(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("answer", workspace.NewLocalVariable("", value.Empty)))

	iface := &fakeUI{input: &fakeFuture{ready: true, err: errors.New("boom")}}
	in := instructions.NewInput("in", nil, "answer", "")

	assert.Equal(t, instruction.Failure, in.Tick(iface, ws))
}

func TestOutputAndMessageAlwaysSucceed(t *testing.T) {
	ws := workspace.New()
	assert.Equal(t, instruction.Success, instructions.NewOutput("o", nil, "hi").Tick(ui.Base{}, ws))
	assert.Equal(t, instruction.Success, instructions.NewMessage("m", nil, "hi").Tick(ui.Base{}, ws))
}

func TestNewLogRejectsUnknownSeverity(t *testing.T) {
	_, err := instructions.NewLog("l", nil, "catastrophic", "text")
	require.Error(t, err)
}

func TestNewLogDefaultsToInfoSeverity(t *testing.T) {
	log, err := instructions.NewLog("l", nil, "", "text")
	require.NoError(t, err)

	ws := workspace.New()
	assert.Equal(t, instruction.Success, log.Tick(ui.Base{}, ws))
}

func TestUserConfirmationSucceedsOnlyWhenConfirmed(t *testing.T) {
	ws := workspace.New()

	confirmed := instructions.NewUserConfirmation("c1", nil, "proceed?", "yes", "no")
	iface := &fakeUI{confirm: &fakeFuture{ready: true, val: true}}
	assert.Equal(t, instruction.Success, confirmed.Tick(iface, ws))

	rejected := instructions.NewUserConfirmation("c2", nil, "proceed?", "yes", "no")
	iface2 := &fakeUI{confirm: &fakeFuture{ready: true, val: false}}
	assert.Equal(t, instruction.Failure, rejected.Tick(iface2, ws))
}
