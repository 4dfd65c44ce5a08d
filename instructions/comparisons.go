package instructions

import (
	"strconv"

	"github.com/procbt/engine/attribute"
	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

type compareOp int

const (
	opEquals compareOp = iota
	opGreaterThan
	opGreaterThanOrEqual
	opLessThan
	opLessThanOrEqual
)

// comparison is the shared implementation behind Equals, GreaterThan,
// GreaterThanOrEqual, LessThan, and LessThanOrEqual: numeric/string
// comparison after lexical type coercion (spec §4.5). Comparing
// incompatible types is Failure.
type comparison struct {
	*instruction.Base

	leftVar  string
	rightVar string
	op       compareOp
}

func newComparison(typeName string, tags []string, name, leftVar, rightVar string, op compareOp) *comparison {
	c := &comparison{leftVar: leftVar, rightVar: rightVar, op: op}
	bag := attribute.NewBag()
	bag.Set("leftVar", leftVar)
	bag.Set("rightVar", rightVar)
	schema := attribute.NewSchema().
		Define(attribute.Definition{Name: "leftVar", Category: attribute.VariableName, Mandatory: true}).
		Define(attribute.Definition{Name: "rightVar", Category: attribute.VariableName, Mandatory: true})
	c.Base = instruction.NewBase(typeName, name, tags, schema, bag, c)
	return c
}

func (c *comparison) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	left, ok := ws.GetValue(c.leftVar, "")
	if !ok {
		return instruction.Failure
	}
	right, ok := ws.GetValue(c.rightVar, "")
	if !ok {
		return instruction.Failure
	}

	result, ok := compareValues(left, right, c.op)
	if !ok {
		return instruction.Failure
	}
	if result {
		return instruction.Success
	}
	return instruction.Failure
}

func compareValues(left, right value.Value, op compareOp) (bool, bool) {
	lf, lok := asFloat(left.Raw())
	rf, rok := asFloat(right.Raw())
	if lok && rok {
		return applyOp(op, compareFloat(lf, rf)), true
	}

	ls, lok2 := left.Raw().(string)
	rs, rok2 := right.Raw().(string)
	if lok2 && rok2 {
		return applyOp(op, compareString(ls, rs)), true
	}

	return false, false
}

func applyOp(op compareOp, cmp int) bool {
	switch op {
	case opEquals:
		return cmp == 0
	case opGreaterThan:
		return cmp > 0
	case opGreaterThanOrEqual:
		return cmp >= 0
	case opLessThan:
		return cmp < 0
	case opLessThanOrEqual:
		return cmp <= 0
	default:
		return false
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func NewEquals(name string, tags []string, leftVar, rightVar string) instruction.Instruction {
	return newComparison("Equals", tags, name, leftVar, rightVar, opEquals)
}
func NewGreaterThan(name string, tags []string, leftVar, rightVar string) instruction.Instruction {
	return newComparison("GreaterThan", tags, name, leftVar, rightVar, opGreaterThan)
}
func NewGreaterThanOrEqual(name string, tags []string, leftVar, rightVar string) instruction.Instruction {
	return newComparison("GreaterThanOrEqual", tags, name, leftVar, rightVar, opGreaterThanOrEqual)
}
func NewLessThan(name string, tags []string, leftVar, rightVar string) instruction.Instruction {
	return newComparison("LessThan", tags, name, leftVar, rightVar, opLessThan)
}
func NewLessThanOrEqual(name string, tags []string, leftVar, rightVar string) instruction.Instruction {
	return newComparison("LessThanOrEqual", tags, name, leftVar, rightVar, opLessThanOrEqual)
}
