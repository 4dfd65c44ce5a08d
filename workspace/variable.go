package workspace

import (
	"github.com/procbt/engine/value"
)

// LocalVariable is the minimal in-process Variable implementation: a single
// value.Value slot with no external backend, setup, or teardown behavior
// (SPEC_FULL.md's "Built-in Local variable" expansion). It is the variable
// type the end-to-end scenarios run against in the absence of a real
// network/file/CA/PVA-backed variable, which remains out of scope.
type LocalVariable struct {
	typeName  string
	val       value.Value
	available bool
}

// NewLocalVariable constructs a LocalVariable already holding initial,
// immediately available.
func NewLocalVariable(typeName string, initial value.Value) *LocalVariable {
	return &LocalVariable{typeName: typeName, val: initial, available: true}
}

func (lv *LocalVariable) TypeName() string { return lv.typeName }

// Setup is a no-op: a LocalVariable has no external resource to acquire.
func (lv *LocalVariable) Setup(ws *Workspace) (SetupTeardownActions, error) {
	return SetupTeardownActions{}, nil
}

// Teardown is a no-op.
func (lv *LocalVariable) Teardown() error { return nil }

func (lv *LocalVariable) GetValue(fieldPath string) (value.Value, bool) {
	if fieldPath == "" {
		return lv.val, true
	}
	return lv.val.Field(fieldPath)
}

func (lv *LocalVariable) SetValue(fieldPath string, v value.Value) bool {
	if fieldPath == "" {
		lv.val = v
		return true
	}
	updated, err := lv.val.SetField(fieldPath, v.Raw())
	if err != nil {
		return false
	}
	lv.val = updated
	return true
}

func (lv *LocalVariable) Available() bool { return lv.available }
