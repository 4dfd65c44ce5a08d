package instructions_test

import (
	"github.com/procbt/engine/attribute"
	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/workspace"
)

// stub is a leaf instruction that returns a fixed sequence of statuses from
// TickImpl, repeating the last entry once exhausted (or always Success if
// the sequence is empty), and counts ticks and halts for assertions.
type stub struct {
	*instruction.Base

	sequence []instruction.ExecutionStatus
	pos      int
	ticks    int
	halts    int
}

func newStub(sequence ...instruction.ExecutionStatus) *stub {
	s := &stub{sequence: sequence}
	s.Base = instruction.NewBase("Stub", "stub", nil, nil, attribute.NewBag(), s)
	return s
}

func (s *stub) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	s.ticks++
	if len(s.sequence) == 0 {
		return instruction.Success
	}
	if s.pos >= len(s.sequence) {
		return s.sequence[len(s.sequence)-1]
	}
	st := s.sequence[s.pos]
	s.pos++
	return st
}

func (s *stub) HaltImpl() {
	s.halts++
}

type fakeFuture struct {
	ready    bool
	val      any
	err      error
	canceled bool
}

func (f *fakeFuture) IsReady() bool     { return f.ready }
func (f *fakeFuture) Get() (any, error) { return f.val, f.err }
func (f *fakeFuture) Cancel()           { f.canceled = true }

// fakeUI is a controllable ui.UserInterface for exercising the async prompt
// methods (RequestInput/RequestConfirmation/RequestChoice).
type fakeUI struct {
	ui.Base

	input      *fakeFuture
	confirm    *fakeFuture
	choice     *fakeFuture
}

func (f *fakeUI) RequestInput(description string) ui.InputFuture {
	return f.input
}
func (f *fakeUI) RequestConfirmation(description, okText, cancelText string) ui.InputFuture {
	return f.confirm
}
func (f *fakeUI) RequestChoice(description string, options int) ui.InputFuture {
	return f.choice
}

func tickUntilTerminal(inst instruction.Instruction, iface ui.UserInterface, ws *workspace.Workspace, maxTicks int) instruction.ExecutionStatus {
	var status instruction.ExecutionStatus
	for i := 0; i < maxTicks; i++ {
		status = inst.Tick(iface, ws)
		if status.Terminal() {
			return status
		}
	}
	return status
}
