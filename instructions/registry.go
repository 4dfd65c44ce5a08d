package instructions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/registry"
)

// Factory builds one instruction node from its declared name, tags, raw
// attribute strings, and already-instantiated children, the shape a
// declarative definition tree (procedure.LoadCUE/LoadYAML) hands to
// registry.Registry.Instantiate. Children are attached by the factory, not
// appended afterward, since several constructors (AchieveCondition,
// ExecuteWhile) assign positional roles rather than an ordered sequence.
type Factory func(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error)

// Factories returns the type-name-to-Factory table for every concrete
// instruction in this package, for registry.Registry.RegisterInstruction.
func Factories() map[string]Factory {
	return map[string]Factory{
		"Sequence":                     factorySequence,
		"Fallback":                     factoryFallback,
		"ParallelSequence":             factoryParallelSequence,
		"Inverter":                     factoryInverter,
		"ForceSuccess":                 factoryForceSuccess,
		"Choice":                       factoryChoice,
		"UserChoice":                   factoryUserChoice,
		"For":                          factoryFor,
		"Repeat":                       factoryRepeat,
		"Listen":                       factoryListen,
		"Include":                      factoryInclude,
		"IncludeProcedure":             factoryIncludeProcedure,
		"Condition":                    factoryCondition,
		"VarExists":                    factoryVarExists,
		"AddElement":                   factoryAddElement,
		"AddMember":                    factoryAddMember,
		"Copy":                         factoryCopy,
		"ResetVariable":                factoryResetVariable,
		"Increment":                    factoryIncrement,
		"Decrement":                    factoryDecrement,
		"Equals":                       factoryEquals,
		"GreaterThan":                  factoryGreaterThan,
		"GreaterThanOrEqual":           factoryGreaterThanOrEqual,
		"LessThan":                     factoryLessThan,
		"LessThanOrEqual":              factoryLessThanOrEqual,
		"Input":                        factoryInput,
		"Output":                       factoryOutput,
		"Message":                      factoryMessage,
		"Log":                          factoryLog,
		"UserConfirmation":             factoryUserConfirmation,
		"Wait":                         factoryWait,
		"WaitForVariable":              factoryWaitForVariable,
		"WaitForVariables":             factoryWaitForVariables,
		"WaitForCondition":             factoryWaitForCondition,
		"AchieveCondition":             factoryAchieveCondition,
		"AchieveConditionWithOverride": factoryAchieveConditionWithOverride,
		"AchieveConditionWithTimeout":  factoryAchieveConditionWithTimeout,
		"ExecuteWhile":                 factoryExecuteWhile,
	}
}

// attributeNames documents, per instruction type, the attribute keys its
// factory reads, for registry.Registry.Describe to hand back to a linter or
// authoring tool.
var attributeNames = map[string][]string{
	"ParallelSequence":             {"successThreshold", "failureThreshold"},
	"Choice":                       {"varName"},
	"UserChoice":                   {"description"},
	"For":                          {"elementVar", "arrayVar"},
	"Repeat":                       {"maxCount"},
	"Listen":                       {"varNames", "forceSuccess"},
	"Include":                      {"path", "file"},
	"IncludeProcedure":             {"file", "path"},
	"Condition":                    {"varName"},
	"VarExists":                    {"varName"},
	"AddElement":                   {"inputVar", "outputVar"},
	"AddMember":                    {"inputVar", "memberName", "outputVar"},
	"Copy":                         {"srcVar", "dstVar"},
	"ResetVariable":                {"varName"},
	"Increment":                    {"varName"},
	"Decrement":                    {"varName"},
	"Equals":                       {"leftVar", "rightVar"},
	"GreaterThan":                  {"leftVar", "rightVar"},
	"GreaterThanOrEqual":           {"leftVar", "rightVar"},
	"LessThan":                     {"leftVar", "rightVar"},
	"LessThanOrEqual":              {"leftVar", "rightVar"},
	"Input":                        {"outputVar", "description"},
	"Output":                       {"text"},
	"Message":                      {"text"},
	"Log":                          {"severity", "text"},
	"UserConfirmation":             {"description", "okText", "cancelText"},
	"Wait":                         {"timeoutSeconds"},
	"WaitForVariable":              {"varName", "equalsVar", "timeoutSeconds"},
	"WaitForVariables":             {"varType", "timeoutSeconds"},
	"WaitForCondition":             {"varNames", "timeoutSeconds"},
	"AchieveConditionWithTimeout":  {"varNames", "timeoutSeconds"},
	"ExecuteWhile":                 {"varNames"},
}

// RegisterAll registers every concrete instruction type's factory on r,
// standing in for the plugin-load registration primitives spec §4.9
// describes (this module carries no plugin loader, so registration happens
// directly at process startup instead).
func RegisterAll(r *registry.Registry) {
	for typeName, f := range Factories() {
		r.RegisterInstruction(typeName, registry.Description{Definitions: attributeNames[typeName]}, registry.InstructionFactory(f))
	}
}

func attrRequired(attrs map[string]string, key string) (string, error) {
	v, ok := attrs[key]
	if !ok || v == "" {
		return "", fmt.Errorf("missing required attribute %q", key)
	}
	return v, nil
}

func attrOptional(attrs map[string]string, key, def string) string {
	if v, ok := attrs[key]; ok {
		return v
	}
	return def
}

func attrFloat(attrs map[string]string, key string, def float64) (float64, error) {
	v, ok := attrs[key]
	if !ok || v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

func attrInt(attrs map[string]string, key string, def int) (int, error) {
	v, ok := attrs[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return int(n), err
}

func attrBool(attrs map[string]string, key string, def bool) (bool, error) {
	v, ok := attrs[key]
	if !ok || v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

func attrCSV(attrs map[string]string, key string) []string {
	v, ok := attrs[key]
	if !ok || v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func requireChild(children []instruction.Instruction, index int, role string) (instruction.Instruction, error) {
	if index >= len(children) {
		return nil, fmt.Errorf("missing %s child at position %d", role, index)
	}
	return children[index], nil
}

func factorySequence(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	return NewSequence(name, tags, children...), nil
}

func factoryFallback(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	return NewFallback(name, tags, children...), nil
}

func factoryParallelSequence(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	return NewParallelSequence(name, tags, attrs["successThreshold"], attrs["failureThreshold"], children...), nil
}

func factoryInverter(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	child, err := requireChild(children, 0, "child")
	if err != nil {
		return nil, err
	}
	return NewInverter(name, tags, child), nil
}

func factoryForceSuccess(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	child, err := requireChild(children, 0, "child")
	if err != nil {
		return nil, err
	}
	return NewForceSuccess(name, tags, child), nil
}

func factoryChoice(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	varName, err := attrRequired(attrs, "varName")
	if err != nil {
		return nil, err
	}
	return NewChoice(name, tags, varName, children...), nil
}

func factoryUserChoice(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	return NewUserChoice(name, tags, attrOptional(attrs, "description", ""), children...), nil
}

func factoryFor(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	elementVar, err := attrRequired(attrs, "elementVar")
	if err != nil {
		return nil, err
	}
	arrayVar, err := attrRequired(attrs, "arrayVar")
	if err != nil {
		return nil, err
	}
	child, err := requireChild(children, 0, "child")
	if err != nil {
		return nil, err
	}
	return NewFor(name, tags, elementVar, arrayVar, child), nil
}

func factoryRepeat(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	maxCount, err := attrInt(attrs, "maxCount", 0)
	if err != nil {
		return nil, err
	}
	child, err := requireChild(children, 0, "child")
	if err != nil {
		return nil, err
	}
	return NewRepeat(name, tags, maxCount, child), nil
}

func factoryListen(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	forceSuccess, err := attrBool(attrs, "forceSuccess", false)
	if err != nil {
		return nil, err
	}
	child, err := requireChild(children, 0, "child")
	if err != nil {
		return nil, err
	}
	return NewListen(name, tags, attrCSV(attrs, "varNames"), forceSuccess, child), nil
}

func factoryInclude(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	path, err := attrRequired(attrs, "path")
	if err != nil {
		return nil, err
	}
	return NewInclude(name, tags, path, attrOptional(attrs, "file", "")), nil
}

func factoryIncludeProcedure(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	file, err := attrRequired(attrs, "file")
	if err != nil {
		return nil, err
	}
	return NewIncludeProcedure(name, tags, file, attrOptional(attrs, "path", "")), nil
}

func factoryCondition(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	varName, err := attrRequired(attrs, "varName")
	if err != nil {
		return nil, err
	}
	return NewCondition(name, tags, varName), nil
}

func factoryVarExists(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	varName, err := attrRequired(attrs, "varName")
	if err != nil {
		return nil, err
	}
	return NewVarExists(name, tags, varName), nil
}

func factoryAddElement(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	inputVar, err := attrRequired(attrs, "inputVar")
	if err != nil {
		return nil, err
	}
	outputVar, err := attrRequired(attrs, "outputVar")
	if err != nil {
		return nil, err
	}
	return NewAddElement(name, tags, inputVar, outputVar), nil
}

func factoryAddMember(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	inputVar, err := attrRequired(attrs, "inputVar")
	if err != nil {
		return nil, err
	}
	memberName, err := attrRequired(attrs, "memberName")
	if err != nil {
		return nil, err
	}
	outputVar, err := attrRequired(attrs, "outputVar")
	if err != nil {
		return nil, err
	}
	return NewAddMember(name, tags, inputVar, memberName, outputVar), nil
}

func factoryCopy(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	srcVar, err := attrRequired(attrs, "srcVar")
	if err != nil {
		return nil, err
	}
	dstVar, err := attrRequired(attrs, "dstVar")
	if err != nil {
		return nil, err
	}
	return NewCopy(name, tags, srcVar, dstVar), nil
}

func factoryResetVariable(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	varName, err := attrRequired(attrs, "varName")
	if err != nil {
		return nil, err
	}
	return NewResetVariable(name, tags, varName), nil
}

func factoryIncrement(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	varName, err := attrRequired(attrs, "varName")
	if err != nil {
		return nil, err
	}
	return NewIncrement(name, tags, varName), nil
}

func factoryDecrement(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	varName, err := attrRequired(attrs, "varName")
	if err != nil {
		return nil, err
	}
	return NewDecrement(name, tags, varName), nil
}

func factoryComparison(ctor func(string, []string, string, string) instruction.Instruction) Factory {
	return func(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
		leftVar, err := attrRequired(attrs, "leftVar")
		if err != nil {
			return nil, err
		}
		rightVar, err := attrRequired(attrs, "rightVar")
		if err != nil {
			return nil, err
		}
		return ctor(name, tags, leftVar, rightVar), nil
	}
}

var (
	factoryEquals             = factoryComparison(NewEquals)
	factoryGreaterThan        = factoryComparison(NewGreaterThan)
	factoryGreaterThanOrEqual = factoryComparison(NewGreaterThanOrEqual)
	factoryLessThan           = factoryComparison(NewLessThan)
	factoryLessThanOrEqual    = factoryComparison(NewLessThanOrEqual)
)

func factoryInput(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	outputVar, err := attrRequired(attrs, "outputVar")
	if err != nil {
		return nil, err
	}
	return NewInput(name, tags, outputVar, attrOptional(attrs, "description", "")), nil
}

func factoryOutput(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	return NewOutput(name, tags, attrOptional(attrs, "text", "")), nil
}

func factoryMessage(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	return NewMessage(name, tags, attrOptional(attrs, "text", "")), nil
}

func factoryLog(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	return NewLog(name, tags, attrOptional(attrs, "severity", ""), attrOptional(attrs, "text", ""))
}

func factoryUserConfirmation(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	return NewUserConfirmation(name, tags,
		attrOptional(attrs, "description", ""),
		attrOptional(attrs, "okText", ""),
		attrOptional(attrs, "cancelText", "")), nil
}

func factoryWait(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	timeoutSeconds, err := attrFloat(attrs, "timeoutSeconds", 0)
	if err != nil {
		return nil, err
	}
	return NewWait(name, tags, timeoutSeconds), nil
}

func factoryWaitForVariable(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	varName, err := attrRequired(attrs, "varName")
	if err != nil {
		return nil, err
	}
	timeoutSeconds, err := attrFloat(attrs, "timeoutSeconds", 0)
	if err != nil {
		return nil, err
	}
	return NewWaitForVariable(name, tags, varName, attrOptional(attrs, "equalsVar", ""), timeoutSeconds), nil
}

func factoryWaitForVariables(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	varType, err := attrRequired(attrs, "varType")
	if err != nil {
		return nil, err
	}
	timeoutSeconds, err := attrFloat(attrs, "timeoutSeconds", 0)
	if err != nil {
		return nil, err
	}
	return NewWaitForVariables(name, tags, varType, timeoutSeconds), nil
}

func factoryWaitForCondition(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	timeoutSeconds, err := attrFloat(attrs, "timeoutSeconds", 0)
	if err != nil {
		return nil, err
	}
	condition, err := requireChild(children, 0, "condition")
	if err != nil {
		return nil, err
	}
	return NewWaitForCondition(name, tags, attrCSV(attrs, "varNames"), timeoutSeconds, condition), nil
}

func factoryAchieveCondition(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	condition, err := requireChild(children, 0, "condition")
	if err != nil {
		return nil, err
	}
	action, err := requireChild(children, 1, "action")
	if err != nil {
		return nil, err
	}
	return NewAchieveCondition(name, tags, condition, action), nil
}

func factoryAchieveConditionWithOverride(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("AchieveConditionWithOverride requires at least an action child")
	}
	return NewAchieveConditionWithOverride(name, tags, children...), nil
}

func factoryAchieveConditionWithTimeout(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	timeoutSeconds, err := attrFloat(attrs, "timeoutSeconds", 0)
	if err != nil {
		return nil, err
	}
	condition, err := requireChild(children, 0, "condition")
	if err != nil {
		return nil, err
	}
	action, err := requireChild(children, 1, "action")
	if err != nil {
		return nil, err
	}
	return NewAchieveConditionWithTimeout(name, tags, attrCSV(attrs, "varNames"), timeoutSeconds, condition, action), nil
}

func factoryExecuteWhile(name string, tags []string, attrs map[string]string, children []instruction.Instruction) (instruction.Instruction, error) {
	action, err := requireChild(children, 0, "action")
	if err != nil {
		return nil, err
	}
	condition, err := requireChild(children, 1, "condition")
	if err != nil {
		return nil, err
	}
	return NewExecuteWhile(name, tags, attrCSV(attrs, "varNames"), action, condition), nil
}
