package instructions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/instructions"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/workspace"
)

func TestSequenceShortCircuitsOnFailure(t *testing.T) {
	ws := workspace.New()
	c1 := newStub(instruction.Success)
	c2 := newStub(instruction.Failure)
	c3 := newStub(instruction.Success)

	seq := instructions.NewSequence("s", nil, c1, c2, c3)
	status := seq.Tick(ui.Base{}, ws)

	assert.Equal(t, instruction.Failure, status)
	assert.Equal(t, 0, c3.ticks)
}

func TestSequenceSkipsAlreadySuccessfulChildren(t *testing.T) {
	ws := workspace.New()
	c1 := newStub(instruction.Success)
	c2 := newStub(instruction.Running, instruction.Success)

	seq := instructions.NewSequence("s", nil, c1, c2)

	status := seq.Tick(ui.Base{}, ws)
	assert.Equal(t, instruction.Running, status)
	assert.Equal(t, 1, c1.ticks)

	status = seq.Tick(ui.Base{}, ws)
	assert.Equal(t, instruction.Success, status)
	assert.Equal(t, 1, c1.ticks, "already-successful child must not be re-ticked")
	assert.Equal(t, 2, c2.ticks)
}

func TestFallbackShortCircuitsOnSuccess(t *testing.T) {
	ws := workspace.New()
	c1 := newStub(instruction.Failure)
	c2 := newStub(instruction.Success)
	c3 := newStub(instruction.Success)

	fb := instructions.NewFallback("f", nil, c1, c2, c3)
	status := fb.Tick(ui.Base{}, ws)

	assert.Equal(t, instruction.Success, status)
	assert.Equal(t, 0, c3.ticks)
}

func TestParallelSequenceDefaultFailureThresholdHaltsSiblings(t *testing.T) {
	ws := workspace.New()
	c1 := newStub(instruction.Failure)
	c2 := newStub(instruction.Running)
	c3 := newStub(instruction.Running)

	ps := instructions.NewParallelSequence("p", nil, "", "", c1, c2, c3)
	status := ps.Tick(ui.Base{}, ws)

	assert.Equal(t, instruction.Failure, status)
	assert.Equal(t, 1, c2.halts)
	assert.Equal(t, 1, c3.halts)
}

func TestParallelSequenceExplicitSuccessThreshold(t *testing.T) {
	ws := workspace.New()
	c1 := newStub(instruction.Success)
	c2 := newStub(instruction.Success)
	c3 := newStub(instruction.Running)

	ps := instructions.NewParallelSequence("p", nil, "2", "", c1, c2, c3)
	status := ps.Tick(ui.Base{}, ws)

	assert.Equal(t, instruction.Success, status)
	assert.Equal(t, 1, c3.halts)
}
