// Package attribute implements the declarative attribute system (spec §4.3,
// C3): typed attribute definitions, cross-attribute constraints, fail-fast
// Setup validation, and tick-time retrieval that never caches a resolved
// value across ticks.
package attribute

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	procerrors "github.com/procbt/engine/errors"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

// attrValidator backs the single-field presence/shape checks validateLiteral
// runs before the authoritative strconv parse; a package-level *validator.Validate
// is safe for concurrent use.
var attrValidator = validator.New(validator.WithRequiredStructEnabled())

// ScalarType is the declared literal type an attribute coerces to when its
// category is Literal.
type ScalarType int

const (
	TypeString ScalarType = iota
	TypeInt
	TypeFloat
	TypeBool
)

// Category controls whether an attribute's raw string is a literal, a
// workspace variable name, or either (spec §4.3).
type Category int

const (
	Literal Category = iota
	VariableName
	Both
)

// Definition describes one attribute a concrete instruction or variable
// declares in its constructor.
type Definition struct {
	Name      string
	Type      ScalarType
	Category  Category
	Mandatory bool
}

// Bag is the ordered, string-keyed raw attribute bag a concrete instruction
// or variable is configured with. Order is preserved for deterministic
// iteration (schema export, error messages) but attribute lookups are by
// name.
type Bag struct {
	values *orderedmap.OrderedMap[string, string]
}

// NewBag constructs an empty Bag.
func NewBag() *Bag {
	return &Bag{values: orderedmap.New[string, string]()}
}

// Set assigns the raw string value for name, overwriting any prior value but
// preserving its original position.
func (b *Bag) Set(name, raw string) {
	b.values.Set(name, raw)
}

// Get returns the raw string for name.
func (b *Bag) Get(name string) (string, bool) {
	return b.values.Get(name)
}

// Names returns attribute names in insertion order.
func (b *Bag) Names() []string {
	names := make([]string, 0, b.values.Len())
	for pair := b.values.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Constraint is a boolean predicate over a Bag, built from the primitives
// Exists/And/Or/Xor/Not (spec §4.3).
type Constraint interface {
	Evaluate(b *Bag) bool
	String() string
}

type existsConstraint struct{ name string }

// Exists builds a constraint satisfied iff name is present in the bag.
func Exists(name string) Constraint { return existsConstraint{name: name} }

func (c existsConstraint) Evaluate(b *Bag) bool { _, ok := b.Get(c.name); return ok }
func (c existsConstraint) String() string       { return fmt.Sprintf("Exists(%s)", c.name) }

type andConstraint struct{ terms []Constraint }

// And is satisfied iff every term is satisfied.
func And(terms ...Constraint) Constraint { return andConstraint{terms: terms} }

func (c andConstraint) Evaluate(b *Bag) bool {
	for _, t := range c.terms {
		if !t.Evaluate(b) {
			return false
		}
	}
	return true
}
func (c andConstraint) String() string { return joinTerms("And", c.terms) }

type orConstraint struct{ terms []Constraint }

// Or is satisfied iff at least one term is satisfied.
func Or(terms ...Constraint) Constraint { return orConstraint{terms: terms} }

func (c orConstraint) Evaluate(b *Bag) bool {
	for _, t := range c.terms {
		if t.Evaluate(b) {
			return true
		}
	}
	return false
}
func (c orConstraint) String() string { return joinTerms("Or", c.terms) }

type xorConstraint struct{ a, b Constraint }

// Xor is satisfied iff exactly one of a, b is satisfied.
func Xor(a, b Constraint) Constraint { return xorConstraint{a: a, b: b} }

func (c xorConstraint) Evaluate(b *Bag) bool { return c.a.Evaluate(b) != c.b.Evaluate(b) }
func (c xorConstraint) String() string       { return fmt.Sprintf("Xor(%s, %s)", c.a, c.b) }

type notConstraint struct{ inner Constraint }

// Not negates inner.
func Not(inner Constraint) Constraint { return notConstraint{inner: inner} }

func (c notConstraint) Evaluate(b *Bag) bool { return !c.inner.Evaluate(b) }
func (c notConstraint) String() string       { return fmt.Sprintf("Not(%s)", c.inner) }

func joinTerms(op string, terms []Constraint) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return fmt.Sprintf("%s(%s)", op, strings.Join(parts, ", "))
}

// Schema holds the definitions and constraints a concrete instruction or
// variable registers at construction time, and validates a Bag against them
// at Setup.
type Schema struct {
	defs        []Definition
	constraints []Constraint
}

// NewSchema constructs an empty Schema.
func NewSchema() *Schema { return &Schema{} }

// Define registers an attribute definition.
func (s *Schema) Define(d Definition) *Schema {
	s.defs = append(s.defs, d)
	return s
}

// Require registers a cross-attribute constraint.
func (s *Schema) Require(c Constraint) *Schema {
	s.constraints = append(s.constraints, c)
	return s
}

// Definitions returns the registered definitions in declaration order.
func (s *Schema) Definitions() []Definition {
	return append([]Definition{}, s.defs...)
}

// Validate implements the fail-fast Setup-time checks of spec §4.3: mandatory
// presence, literal type parseability, and constraint satisfaction. No
// partial state is mutated by a failed Validate — it only reads b.
func (s *Schema) Validate(b *Bag) error {
	for _, d := range s.defs {
		raw, present := b.Get(d.Name)
		if !present {
			if d.Mandatory {
				return procerrors.New(procerrors.ErrAttributeError, "Schema.Validate",
					fmt.Sprintf("mandatory attribute %q is missing", d.Name))
			}
			continue
		}
		if err := validateLiteral(d, raw); err != nil {
			return err
		}
	}
	for _, c := range s.constraints {
		if !c.Evaluate(b) {
			return procerrors.New(procerrors.ErrAttributeError, "Schema.Validate",
				fmt.Sprintf("constraint %s not satisfied", c.String()))
		}
	}
	return nil
}

// validateLiteral enforces spec §4.3's per-category literal-parse rule:
// Literal attributes must parse to their declared type; VariableName
// attributes only need to be non-empty; Both attributes starting with '@'
// are variable references (not literal-checked), otherwise they are checked
// as Literal.
func validateLiteral(d Definition, raw string) error {
	switch d.Category {
	case VariableName:
		if err := attrValidator.Var(raw, "required"); err != nil {
			return procerrors.New(procerrors.ErrAttributeError, "Schema.Validate",
				fmt.Sprintf("attribute %q must name a variable", d.Name))
		}
		return nil
	case Both:
		if strings.HasPrefix(raw, "@") {
			return nil
		}
		fallthrough
	default:
		return parseScalar(d.Name, d.Type, raw)
	}
}

// parseScalar runs attrValidator's shape tag first (catching most malformed
// input with a library-owned message), then the authoritative strconv parse
// for the precise Go type conversion Tick-time resolution relies on.
func parseScalar(name string, t ScalarType, raw string) error {
	var tag string
	var err error
	switch t {
	case TypeInt:
		tag = "numeric"
		if err = attrValidator.Var(raw, tag); err == nil {
			_, err = strconv.ParseInt(raw, 10, 64)
		}
	case TypeFloat:
		tag = "numeric"
		if err = attrValidator.Var(raw, tag); err == nil {
			_, err = strconv.ParseFloat(raw, 64)
		}
	case TypeBool:
		tag = "boolean"
		err = attrValidator.Var(raw, tag)
	case TypeString:
		return nil
	}
	if err != nil {
		return procerrors.New(procerrors.ErrAttributeError, "Schema.Validate",
			fmt.Sprintf("attribute %q does not parse as declared type: %v", name, err))
	}
	return nil
}

// JSONSchema exports this Schema's definitions as a JSON Schema object for
// authoring tooling (e.g. a lint command listing what an instruction or
// variable type accepts), grounded on the same invopop/jsonschema package
// the pack's workflow store uses for type introspection.
func (s *Schema) JSONSchema() *jsonschema.Schema {
	props := orderedmap.New[string, *jsonschema.Schema]()
	required := make([]string, 0, len(s.defs))
	for _, d := range s.defs {
		props.Set(d.Name, &jsonschema.Schema{Type: jsonSchemaType(d)})
		if d.Mandatory {
			required = append(required, d.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func jsonSchemaType(d Definition) string {
	if d.Category == VariableName || d.Category == Both {
		return "string"
	}
	switch d.Type {
	case TypeInt:
		return "integer"
	case TypeFloat:
		return "number"
	case TypeBool:
		return "boolean"
	default:
		return "string"
	}
}

// GetAttributeValue resolves the raw value of name against ws/ui per spec
// §4.3: VariableName reads the named workspace field; Both strips a leading
// '@' and reads the workspace, otherwise returns the literal. The result is
// never cached — each call re-reads the workspace.
func GetAttributeValue(b *Bag, d Definition, ws *workspace.Workspace, iface ui.UserInterface) (value.Value, bool) {
	raw, present := b.Get(d.Name)
	if !present {
		return value.Empty, false
	}
	switch d.Category {
	case VariableName:
		return ws.GetValue(raw, "")
	case Both:
		if strings.HasPrefix(raw, "@") {
			return ws.GetValue(strings.TrimPrefix(raw, "@"), "")
		}
		return value.New("string", raw), true
	default:
		return value.New("string", raw), true
	}
}

// GetAttributeValueAsString is a convenience for the common case of reading
// an attribute as a plain string (either a literal or a workspace field
// holding a string). Absence returns (unchanged, true); a resolved value of
// any other type is formatted with %v, so this never returns false.
func GetAttributeValueAsString(b *Bag, d Definition, ws *workspace.Workspace, iface ui.UserInterface, out *string) bool {
	v, ok := GetAttributeValue(b, d, ws, iface)
	if !ok {
		return true
	}
	switch raw := v.Raw().(type) {
	case string:
		*out = raw
		return true
	case nil:
		return true
	default:
		s := fmt.Sprintf("%v", raw)
		*out = s
		return true
	}
}

// GetAttributeValueAsInt resolves name and converts it to int64. Absence
// returns (unchanged, true); a type mismatch logs to iface and returns
// false.
func GetAttributeValueAsInt(b *Bag, d Definition, ws *workspace.Workspace, iface ui.UserInterface, out *int64) bool {
	v, ok := GetAttributeValue(b, d, ws, iface)
	if !ok {
		return true
	}
	switch raw := v.Raw().(type) {
	case int64:
		*out = raw
		return true
	case int:
		*out = int64(raw)
		return true
	case float64:
		*out = int64(raw)
		return true
	case string:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			iface.Log(ui.SeverityError, fmt.Sprintf("attribute %q: cannot convert %q to int: %v", d.Name, raw, err))
			return false
		}
		*out = n
		return true
	default:
		iface.Log(ui.SeverityError, fmt.Sprintf("attribute %q: value of type %T is not convertible to int", d.Name, raw))
		return false
	}
}

// GetAttributeValueAsBool resolves name and converts it to bool: integer 0
// is false, non-zero true; float NaN or 0.0 is false; an empty string is
// false, a string strconv.ParseBool accepts ("true", "0", "F", ...) takes
// that value, and any other non-empty string is true. Unlike the Condition
// instruction, the strings "false" and "0" therefore yield false.
func GetAttributeValueAsBool(b *Bag, d Definition, ws *workspace.Workspace, iface ui.UserInterface, out *bool) bool {
	v, ok := GetAttributeValue(b, d, ws, iface)
	if !ok {
		return true
	}
	switch raw := v.Raw().(type) {
	case bool:
		*out = raw
		return true
	case int64:
		*out = raw != 0
		return true
	case int:
		*out = raw != 0
		return true
	case float64:
		*out = raw != 0 && raw == raw
		return true
	case string:
		if raw == "" {
			*out = false
			return true
		}
		if b, err := strconv.ParseBool(raw); err == nil {
			*out = b
			return true
		}
		*out = true
		return true
	default:
		iface.Log(ui.SeverityError, fmt.Sprintf("attribute %q: value of type %T is not convertible to bool", d.Name, raw))
		return false
	}
}
