package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/registry"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

type stub struct {
	*instruction.Base
}

func newStub(name string) *stub {
	s := &stub{}
	s.Base = instruction.NewBase("Stub", name, nil, nil, nil, s)
	return s
}

func (s *stub) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	return instruction.Success
}

func stubFactory(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	return newStub(name), nil
}

func TestRegisterAndCreateInstruction(t *testing.T) {
	r := registry.New()
	r.RegisterInstruction("Stub", registry.Description{Definitions: []string{"none"}}, stubFactory)

	inst, err := r.CreateInstruction("Stub", "n1", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Stub", inst.TypeName())

	_, err = r.CreateInstruction("Missing", "n2", nil, nil, nil)
	assert.Error(t, err)
}

func TestDescribeAndListTypes(t *testing.T) {
	r := registry.New()
	r.RegisterInstruction("Stub", registry.Description{Definitions: []string{"x"}}, stubFactory)

	desc, ok := r.Describe("Stub")
	require.True(t, ok)
	assert.Equal(t, "Stub", desc.TypeName)
	assert.Equal(t, []string{"x"}, desc.Definitions)

	assert.Equal(t, []string{"Stub"}, r.ListInstructionTypes())
}

func TestInstantiateBuildsChildrenBeforeParent(t *testing.T) {
	r := registry.New()
	r.RegisterInstruction("Stub", registry.Description{}, stubFactory)

	def := registry.Definition{
		Type: "Stub",
		Name: "parent",
		Children: []registry.Definition{
			{Type: "Stub", Name: "child1"},
			{Type: "Stub", Name: "child2", Root: true},
		},
	}

	inst, err := r.Instantiate(def)
	require.NoError(t, err)
	assert.Equal(t, "parent", inst.Name())
	assert.False(t, inst.IsRoot())
}

func TestInstantiateSetsRootFlag(t *testing.T) {
	r := registry.New()
	r.RegisterInstruction("Stub", registry.Description{}, stubFactory)

	inst, err := r.Instantiate(registry.Definition{Type: "Stub", Name: "top", Root: true})
	require.NoError(t, err)
	assert.True(t, inst.IsRoot())
}

func TestDefaultRegistryRegistersLocalVariableType(t *testing.T) {
	reg := registry.Default()
	assert.Contains(t, reg.ListVariableTypes(), "Local")

	v, err := reg.InstantiateVariable(registry.VariableDefinition{
		Type: "Local",
		Name: "counter",
		Attributes: map[string]string{
			"type":    "int",
			"initial": `3`,
		},
	})
	require.NoError(t, err)
	got, ok := v.GetValue("")
	require.True(t, ok)
	assert.Equal(t, float64(3), got.Raw())
}

func TestCreateVariableUnknownTypeErrors(t *testing.T) {
	r := registry.New()
	_, err := r.CreateVariable("Missing", nil)
	assert.Error(t, err)
}

var _ = value.Empty
