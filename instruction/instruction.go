// Package instruction implements the polymorphic Instruction node and its
// non-virtual-interface life-cycle (spec §4.4, C4): the ExecutionStatus
// state machine, observer notification, cooperative halting, and the
// Setup/Tick/Reset/Halt contract every concrete instruction in the
// instructions package builds on.
package instruction

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	procattr "github.com/procbt/engine/attribute"
	procerrors "github.com/procbt/engine/errors"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/workspace"
)

var tracer = otel.Tracer("github.com/procbt/engine/instruction")

// ExecutionStatus is the closed enumeration of spec §3.
type ExecutionStatus int

const (
	NotStarted ExecutionStatus = iota
	NotFinished
	Running
	Success
	Failure
)

func (s ExecutionStatus) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case NotFinished:
		return "NotFinished"
	case Running:
		return "Running"
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s is Success or Failure.
func (s ExecutionStatus) Terminal() bool { return s == Success || s == Failure }

// SetupContext is what a concrete instruction's ResolveImpl hook (e.g.
// Include, IncludeProcedure) needs from the owning procedure at Setup time.
// Defined here, implemented by procedure.Procedure, to avoid an import cycle
// between instruction and procedure.
type SetupContext interface {
	Workspace() *workspace.Workspace
	ResolveInclude(name string) (Instruction, error)
	ResolveIncludeFile(file, name string) (Instruction, *workspace.Workspace, error)
}

// Instruction is the polymorphic tree node interface the runner and compound
// instructions operate on.
type Instruction interface {
	NodeID() uuid.UUID
	TypeName() string
	Name() string
	Tags() []string
	Status() ExecutionStatus
	IsRoot() bool
	SetRoot(bool)
	Children() []Instruction
	AddChild(Instruction)
	Attributes() *procattr.Bag

	Setup(ctx SetupContext) error
	Tick(iface ui.UserInterface, ws *workspace.Workspace) ExecutionStatus
	Reset(iface ui.UserInterface)
	Halt()
	Halted() bool
}

// Ticker is the mandatory hook every concrete instruction implements.
type Ticker interface {
	TickImpl(iface ui.UserInterface, ws *workspace.Workspace) ExecutionStatus
}

// Initializer is the optional InitImpl hook, called once when status is
// NotStarted. Default (not implemented): succeeds unconditionally.
type Initializer interface {
	InitImpl(iface ui.UserInterface, ws *workspace.Workspace) error
}

// Halter is the optional HaltImpl hook. Default (not implemented): Base
// propagates Halt to every child. Instructions that halt something other
// than all their children (e.g. UserChoice halts only its selected child,
// Include its resolved target) implement Halter themselves.
type Halter interface {
	HaltImpl()
}

// Resolver is the optional Setup-time reference-resolution hook (Include,
// IncludeProcedure).
type Resolver interface {
	ResolveImpl(ctx SetupContext) error
}

// Base implements the NVI life-cycle contract; concrete instructions embed
// it and supply themselves as impl via NewBase so Base can dispatch to the
// optional hooks via interface assertion.
type Base struct {
	mu deadlock.Mutex

	nodeID   uuid.UUID
	typeName string
	name     string
	tags     []string
	isRoot   bool

	status ExecutionStatus
	halted atomic.Bool

	attrs    *procattr.Bag
	schema   *procattr.Schema
	children []Instruction

	impl any
}

// NewBase constructs a Base for a concrete instruction. impl must implement
// Ticker; it may additionally implement Initializer, Halter, and/or
// Resolver.
func NewBase(typeName, name string, tags []string, schema *procattr.Schema, attrs *procattr.Bag, impl Ticker) *Base {
	return &Base{
		nodeID:   uuid.New(),
		typeName: typeName,
		name:     name,
		tags:     tags,
		status:   NotStarted,
		attrs:    attrs,
		schema:   schema,
		impl:     impl,
	}
}

func (b *Base) NodeID() uuid.UUID        { return b.nodeID }
func (b *Base) TypeName() string         { return b.typeName }
func (b *Base) Name() string             { return b.name }
func (b *Base) Tags() []string           { return b.tags }
func (b *Base) Attributes() *procattr.Bag { return b.attrs }

func (b *Base) IsRoot() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isRoot
}

func (b *Base) SetRoot(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.isRoot = v
}

func (b *Base) Status() ExecutionStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Base) Children() []Instruction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Instruction{}, b.children...)
}

// AddChild transfers ownership of child to this instruction, appending it to
// the ordered child sequence (spec §3: "ownership is transferred on
// insertion").
func (b *Base) AddChild(child Instruction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.children = append(b.children, child)
}

func (b *Base) Halted() bool { return b.halted.Load() }

// Setup validates this instruction's attribute bag, runs its optional
// Resolver hook, then recurses into children in order. No partial state from
// a failed Setup persists in the attribute bag (Validate only reads it); the
// instruction's own status is untouched by a failed Setup.
func (b *Base) Setup(ctx SetupContext) error {
	if b.schema != nil {
		if err := b.schema.Validate(b.attrs); err != nil {
			return procerrors.Wrap(err, procerrors.ErrAttributeError, "Base.Setup",
				"attribute validation failed for "+b.typeName)
		}
	}
	if resolver, ok := b.impl.(Resolver); ok {
		if err := resolver.ResolveImpl(ctx); err != nil {
			return err
		}
	}
	for _, child := range b.Children() {
		if err := child.Setup(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Tick implements the five-step NVI contract of spec §4.4.
func (b *Base) Tick(iface ui.UserInterface, ws *workspace.Workspace) ExecutionStatus {
	b.mu.Lock()
	current := b.status
	b.mu.Unlock()

	if current.Terminal() {
		return current
	}

	ctx, span := tracer.Start(context.Background(), "instruction.Tick",
		oteltrace.WithAttributes(
			attribute.String("instruction.type", b.typeName),
			attribute.String("instruction.node_id", b.nodeID.String()),
		))
	defer span.End()
	_ = ctx

	if current == NotStarted {
		if init, ok := b.impl.(Initializer); ok {
			if err := init.InitImpl(iface, ws); err != nil {
				b.setStatus(Failure, iface)
				span.SetAttributes(attribute.String("instruction.status", Failure.String()))
				return Failure
			}
		}
		b.setStatus(NotFinished, iface)
	}

	// Clear the halt flag for this tick; a concurrent Halt() call landing
	// after this point (including during the TickImpl call below) is not
	// undone, since nothing clears it again until the next Tick (spec §4.4
	// step 3, §5).
	b.halted.Store(false)

	newStatus := b.impl.(Ticker).TickImpl(iface, ws)
	b.setStatus(newStatus, iface)
	span.SetAttributes(attribute.String("instruction.status", newStatus.String()))
	return newStatus
}

func (b *Base) setStatus(s ExecutionStatus, iface ui.UserInterface) {
	b.mu.Lock()
	changed := b.status != s
	b.status = s
	b.mu.Unlock()
	if changed && iface != nil {
		iface.UpdateInstructionStatus(b.nodeID, s)
	}
}

// Reset returns status to NotStarted, clears the halt flag, notifies, and
// recurses to children unconditionally (spec §4.4).
func (b *Base) Reset(iface ui.UserInterface) {
	b.mu.Lock()
	b.status = NotStarted
	b.mu.Unlock()
	b.halted.Store(false)
	if iface != nil {
		iface.UpdateInstructionStatus(b.nodeID, NotStarted)
	}
	for _, child := range b.Children() {
		child.Reset(iface)
	}
}

// Halt sets the cooperative halt flag and calls the optional HaltImpl hook;
// if the concrete instruction does not implement Halter, Base falls back to
// propagating Halt to every child. Safe to call from any thread.
func (b *Base) Halt() {
	b.halted.Store(true)
	if halter, ok := b.impl.(Halter); ok {
		halter.HaltImpl()
		return
	}
	for _, child := range b.Children() {
		child.Halt()
	}
}
