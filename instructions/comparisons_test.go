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

func setupComparison(t *testing.T, left, right any) *workspace.Workspace {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("left", workspace.NewLocalVariable("", value.New("", left))))
	require.NoError(t, ws.AddVariable("right", workspace.NewLocalVariable("", value.New("", right))))
	return ws
}

func TestEqualsNumericCoercion(t *testing.T) {
	ws := setupComparison(t, 5, "5")
	assert.Equal(t, instruction.Success, instructions.NewEquals("e", nil, "left", "right").Tick(ui.Base{}, ws))
}

func TestEqualsStringFallback(t *testing.T) {
	ws := setupComparison(t, "abc", "abc")
	assert.Equal(t, instruction.Success, instructions.NewEquals("e", nil, "left", "right").Tick(ui.Base{}, ws))
}

func TestGreaterThanNumeric(t *testing.T) {
	ws := setupComparison(t, 10, 3)
	assert.Equal(t, instruction.Success, instructions.NewGreaterThan("gt", nil, "left", "right").Tick(ui.Base{}, ws))
}

func TestLessThanOrEqualNumeric(t *testing.T) {
	ws := setupComparison(t, 3, 3)
	assert.Equal(t, instruction.Success, instructions.NewLessThanOrEqual("le", nil, "left", "right").Tick(ui.Base{}, ws))
}

func TestComparisonIncompatibleTypesFails(t *testing.T) {
	ws := setupComparison(t, map[string]any{"a": 1}, []any{1, 2})
	assert.Equal(t, instruction.Failure, instructions.NewEquals("e", nil, "left", "right").Tick(ui.Base{}, ws))
}

func TestComparisonMissingVariableFails(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("left", workspace.NewLocalVariable("", value.New("", 1))))
	assert.Equal(t, instruction.Failure, instructions.NewEquals("e", nil, "left", "right").Tick(ui.Base{}, ws))
}
