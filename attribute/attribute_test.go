package attribute_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procbt/engine/attribute"
	procerrors "github.com/procbt/engine/errors"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

func TestValidateMandatoryMissing(t *testing.T) {
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "path", Mandatory: true})
	bag := attribute.NewBag()

	err := schema.Validate(bag)
	require.Error(t, err)
	assert.Equal(t, procerrors.ErrAttributeError, procerrors.Code(err))
}

func TestValidateLiteralTypeMismatch(t *testing.T) {
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "maxCount", Type: attribute.TypeInt})
	bag := attribute.NewBag()
	bag.Set("maxCount", "not-a-number")

	err := schema.Validate(bag)
	require.Error(t, err)
}

func TestValidateVariableNameOnlyRequiresNonEmpty(t *testing.T) {
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "varName", Category: attribute.VariableName})
	bag := attribute.NewBag()
	bag.Set("varName", "notANumber")

	assert.NoError(t, schema.Validate(bag))
}

func TestValidateBothWithAtPrefixSkipsLiteralCheck(t *testing.T) {
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "threshold", Type: attribute.TypeInt, Category: attribute.Both})
	bag := attribute.NewBag()
	bag.Set("threshold", "@counter")

	assert.NoError(t, schema.Validate(bag))
}

func TestConstraintXor(t *testing.T) {
	schema := attribute.NewSchema().Require(attribute.Xor(attribute.Exists("a"), attribute.Exists("b")))

	bag := attribute.NewBag()
	bag.Set("a", "1")
	bag.Set("b", "2")
	assert.Error(t, schema.Validate(bag))

	bag2 := attribute.NewBag()
	bag2.Set("a", "1")
	assert.NoError(t, schema.Validate(bag2))
}

func TestGetAttributeValueLiteral(t *testing.T) {
	d := attribute.Definition{Name: "description", Category: attribute.Literal}
	bag := attribute.NewBag()
	bag.Set("description", "hello")

	ws := workspace.New()
	iface := ui.NewConsoleUI(nil, nil)

	v, ok := attribute.GetAttributeValue(bag, d, ws, iface)
	require.True(t, ok)
	assert.Equal(t, "hello", v.Raw())
}

func TestGetAttributeValueVariableName(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("counter", workspace.NewLocalVariable("int", value.New("int", 7))))

	d := attribute.Definition{Name: "varName", Category: attribute.VariableName}
	bag := attribute.NewBag()
	bag.Set("varName", "counter")

	iface := ui.NewConsoleUI(nil, nil)
	v, ok := attribute.GetAttributeValue(bag, d, ws, iface)
	require.True(t, ok)
	assert.Equal(t, 7, v.Raw())
}

func TestGetAttributeValueAsIntLiveReResolution(t *testing.T) {
	ws := workspace.New()
	require.NoError(t, ws.AddVariable("counter", workspace.NewLocalVariable("int", value.New("int", 1))))

	d := attribute.Definition{Name: "threshold", Category: attribute.Both}
	bag := attribute.NewBag()
	bag.Set("threshold", "@counter")

	iface := ui.NewConsoleUI(nil, nil)

	var out int64
	require.True(t, attribute.GetAttributeValueAsInt(bag, d, ws, iface, &out))
	assert.EqualValues(t, 1, out)

	ws.SetValue("counter", "", value.New("int", 9))

	out = 0
	require.True(t, attribute.GetAttributeValueAsInt(bag, d, ws, iface, &out))
	assert.EqualValues(t, 9, out)
}
