package procedure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	procerrors "github.com/procbt/engine/errors"
	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/instructions"
	"github.com/procbt/engine/procedure"
	"github.com/procbt/engine/registry"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

type stub struct {
	*instruction.Base
	status instruction.ExecutionStatus
}

func newStub(name string, status instruction.ExecutionStatus) *stub {
	s := &stub{status: status}
	s.Base = instruction.NewBase("Stub", name, nil, nil, nil, s)
	return s
}

func (s *stub) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	return s.status
}

func newProcWithRoots(t *testing.T, roots ...instruction.Instruction) *procedure.Procedure {
	t.Helper()
	p := procedure.New("proc", nil)
	for _, r := range roots {
		require.NoError(t, p.AddRoot(r))
	}
	return p
}

func TestAddRootRejectsDuplicateName(t *testing.T) {
	p := procedure.New("proc", nil)
	require.NoError(t, p.AddRoot(newStub("a", instruction.Success)))
	err := p.AddRoot(newStub("a", instruction.Success))
	require.Error(t, err)
	assert.Equal(t, procerrors.ErrDuplicateName, procerrors.Code(err))
}

func TestRootsPreservesInsertionOrder(t *testing.T) {
	p := newProcWithRoots(t, newStub("first", instruction.Success), newStub("second", instruction.Success))
	roots := p.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, "first", roots[0].Name())
	assert.Equal(t, "second", roots[1].Name())
}

func TestResolveIncludeFindsTopLevelInstructionByName(t *testing.T) {
	p := newProcWithRoots(t, newStub("target", instruction.Success))
	inst, err := p.ResolveInclude("target")
	require.NoError(t, err)
	assert.Equal(t, "target", inst.Name())
}

func TestResolveIncludeUnknownNameErrors(t *testing.T) {
	p := procedure.New("proc", nil)
	_, err := p.ResolveInclude("missing")
	require.Error(t, err)
	assert.Equal(t, procerrors.ErrCyclicInclude, procerrors.Code(err))
}

func TestSetupAndTickIncludeResolvesAcrossRoots(t *testing.T) {
	p := procedure.New("proc", nil)
	target := newStub("target", instruction.Success)
	inc := instructions.NewInclude("inc", nil, "target", "")

	require.NoError(t, p.AddRoot(target))
	require.NoError(t, p.AddRoot(inc))
	require.NoError(t, p.Setup())
	defer p.Teardown()

	status := inc.Tick(ui.Base{}, p.Workspace())
	assert.Equal(t, instruction.Success, status)
}

func TestSetupDetectsSelfReferentialCycle(t *testing.T) {
	p := procedure.New("proc", nil)
	inc := instructions.NewInclude("inc", nil, "inc", "")
	require.NoError(t, p.AddRoot(inc))

	err := p.Setup()
	require.Error(t, err)
	assert.Equal(t, procerrors.ErrCyclicInclude, procerrors.Code(err))
}

func TestInstantiateFromBuildsVariablesBeforeInstructions(t *testing.T) {
	reg := registry.New()
	instructions.RegisterAll(reg)
	reg.RegisterVariable("Local", registry.Description{}, func(attrs map[string]string) (workspace.Variable, error) {
		return workspace.NewLocalVariable(attrs["type"], value.New(attrs["type"], false)), nil
	})

	p := procedure.New("proc", nil)
	err := p.InstantiateFrom(reg,
		[]registry.VariableDefinition{{Type: "Local", Name: "flag", Attributes: map[string]string{"type": "bool"}}},
		[]registry.Definition{
			{Type: "VarExists", Name: "check", Attributes: map[string]string{"varName": "flag"}},
		},
	)
	require.NoError(t, err)
	require.NoError(t, p.Setup())
	defer p.Teardown()

	status := p.Roots()[0].Tick(ui.Base{}, p.Workspace())
	assert.Equal(t, instruction.Success, status)
}

func TestInstantiateFromRegistersNestedRoots(t *testing.T) {
	reg := registry.New()
	instructions.RegisterAll(reg)

	p := procedure.New("proc", nil)
	err := p.InstantiateFrom(reg, nil, []registry.Definition{
		{
			Type: "Sequence",
			Name: "top",
			Children: []registry.Definition{
				{Type: "VarExists", Name: "nested", Root: true, Attributes: map[string]string{"varName": "x"}},
			},
		},
	})
	require.NoError(t, err)

	inst, err := p.ResolveInclude("nested")
	require.NoError(t, err)
	assert.Equal(t, "nested", inst.Name())
}

// countingStub is like stub but counts TickImpl invocations, so a test can
// catch a nested root-flagged instruction being ticked twice per cycle:
// once through its structural parent, once more as an independent drive
// root.
type countingStub struct {
	*instruction.Base
	status instruction.ExecutionStatus
	ticks  int
}

func TestInstantiateFromDoesNotDoubleTickNestedRoot(t *testing.T) {
	reg := registry.New()
	instructions.RegisterAll(reg)

	counter := &countingStub{status: instruction.Running}
	reg.RegisterInstruction("CountingStub", registry.Description{}, func(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
		counter.Base = instruction.NewBase("CountingStub", name, tags, nil, nil, counter)
		return counter, nil
	})

	p := procedure.New("proc", nil)
	err := p.InstantiateFrom(reg, nil, []registry.Definition{
		{
			Type: "Sequence",
			Name: "top",
			Children: []registry.Definition{
				{Type: "CountingStub", Name: "nested", Root: true},
			},
		},
	})
	require.NoError(t, err)

	// The nested root must be resolvable by name...
	inst, err := p.ResolveInclude("nested")
	require.NoError(t, err)
	assert.Equal(t, "nested", inst.Name())

	// ...but must not appear in the drive order alongside its parent.
	roots := p.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "top", roots[0].Name())

	require.NoError(t, p.Setup())
	defer p.Teardown()

	for _, root := range p.Roots() {
		root.Tick(ui.Base{}, p.Workspace())
	}
	assert.Equal(t, 1, counter.ticks, "nested root must be ticked exactly once per cycle, through its parent only")
}

func (c *countingStub) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	c.ticks++
	return c.status
}
