package instructions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/instructions"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

func TestAddElementAppendsToArray(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("item", workspace.NewLocalVariable("", value.New("", 4))))
	require.NoError(t, ws.AddVariable("arr", workspace.NewLocalVariable("", value.New("", []any{1, 2, 3}))))

	add := instructions.NewAddElement("a", nil, "item", "arr")
	assert.Equal(t, instruction.Success, add.Tick(ui.Base{}, ws))

	got, _ := ws.GetValue("arr", "")
	assert.Equal(t, []any{1, 2, 3, 4}, got.Raw())
}

func TestAddElementFailsOnTypeMismatch(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("item", workspace.NewLocalVariable("", value.New("", "oops"))))
	require.NoError(t, ws.AddVariable("arr", workspace.NewLocalVariable("", value.New("", []any{1, 2, 3}))))

	add := instructions.NewAddElement("a", nil, "item", "arr")
	assert.Equal(t, instruction.Failure, add.Tick(ui.Base{}, ws))
}

func TestAddMemberSetsNamedFieldOnMap(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("value", workspace.NewLocalVariable("", value.New("", "bob"))))
	require.NoError(t, ws.AddVariable("struct", workspace.NewLocalVariable("", value.New("", map[string]any{}))))

	add := instructions.NewAddMember("m", nil, "value", "name", "struct")
	assert.Equal(t, instruction.Success, add.Tick(ui.Base{}, ws))

	got, _ := ws.GetValue("struct", "")
	assert.Equal(t, "bob", got.Raw().(map[string]any)["name"])
}

func TestCopyAssignsCompatibleValue(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("src", workspace.NewLocalVariable("int", value.New("int", 7))))
	require.NoError(t, ws.AddVariable("dst", workspace.NewLocalVariable("int", value.New("int", 0))))

	cp := instructions.NewCopy("c", nil, "src", "dst")
	assert.Equal(t, instruction.Success, cp.Tick(ui.Base{}, ws))

	got, _ := ws.GetValue("dst", "")
	assert.Equal(t, 7, got.Raw())
}

func TestCopyFailsOnIncompatibleType(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("src", workspace.NewLocalVariable("string", value.New("string", "hi"))))
	require.NoError(t, ws.AddVariable("dst", workspace.NewLocalVariable("int", value.New("int", 0))))

	cp := instructions.NewCopy("c", nil, "src", "dst")
	assert.Equal(t, instruction.Failure, cp.Tick(ui.Base{}, ws))
}

func TestResetVariableUsesRegisteredZeroPayload(t *testing.T) {
	ws := workspace.New()
	ws.Types.Register(value.TypeDescriptor{TypeName: "counter", Zero: []byte(`0`)})
	require.NoError(t, ws.AddVariable("n", workspace.NewLocalVariable("counter", value.New("counter", 9))))

	reset := instructions.NewResetVariable("r", nil, "n")
	assert.Equal(t, instruction.Success, reset.Tick(ui.Base{}, ws))

	got, _ := ws.GetValue("n", "")
	assert.Equal(t, float64(0), got.Raw())
}

func TestResetVariableEmptiesWhenNoTypeRegistered(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("n", workspace.NewLocalVariable("", value.New("", 9))))

	reset := instructions.NewResetVariable("r", nil, "n")
	assert.Equal(t, instruction.Success, reset.Tick(ui.Base{}, ws))

	got, _ := ws.GetValue("n", "")
	assert.True(t, got.IsEmpty())
}

func TestIncrementAndDecrement(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("n", workspace.NewLocalVariable("int", value.New("int", 5))))

	assert.Equal(t, instruction.Success, instructions.NewIncrement("i", nil, "n").Tick(ui.Base{}, ws))
	got, _ := ws.GetValue("n", "")
	assert.Equal(t, 6, got.Raw())

	assert.Equal(t, instruction.Success, instructions.NewDecrement("d", nil, "n").Tick(ui.Base{}, ws))
	got, _ = ws.GetValue("n", "")
	assert.Equal(t, 5, got.Raw())
}

func TestIncrementOnNonNumericFails(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("n", workspace.NewLocalVariable("", value.New("", "not a number"))))

	assert.Equal(t, instruction.Failure, instructions.NewIncrement("i", nil, "n").Tick(ui.Base{}, ws))
}
