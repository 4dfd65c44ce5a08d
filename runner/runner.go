// Package runner implements the tick-loop driver of spec §4.8 (C8): single
// root-tick execution, repeated-until-terminal execution with back-off on
// Running, pause/halt control, identity-based breakpoints, and a read-only
// status snapshot for external observers.
package runner

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/procedure"
	"github.com/procbt/engine/ui"
)

// TickCallback is invoked after every root Tick, receiving a read-only
// Snapshot of the current procedure (spec §4.8's SetTickCallback).
type TickCallback func(Snapshot)

// NodeStatus is one entry of a Snapshot: a single instruction's identity and
// last-observed status.
type NodeStatus struct {
	NodeID   uuid.UUID
	TypeName string
	Name     string
	Status   instruction.ExecutionStatus
	Children []NodeStatus
}

// Snapshot is a read-only tree of NodeStatus for the whole procedure, taken
// at a point in time (spec's MODULE EXPANSIONS, Runner status snapshot).
type Snapshot struct {
	RootNames []string
	Roots     []NodeStatus
}

func snapshotNode(inst instruction.Instruction) NodeStatus {
	children := inst.Children()
	out := NodeStatus{
		NodeID:   inst.NodeID(),
		TypeName: inst.TypeName(),
		Name:     inst.Name(),
		Status:   inst.Status(),
		Children: make([]NodeStatus, 0, len(children)),
	}
	for _, c := range children {
		out.Children = append(out.Children, snapshotNode(c))
	}
	return out
}

// Runner drives a Procedure's top-level instructions (spec §4.8). Only the
// runner's owning goroutine should call ExecuteSingle/ExecuteProcedure;
// Halt/Pause/IsRunning/IsFinished/GetBreakpoints are safe from any thread per
// spec §5, guarded by mu. SetBreakpoint/RemoveBreakpoint take mu too, but the
// tick loop reads the breakpoint set without it, so they are safe only while
// no tick is in progress.
type Runner struct {
	mu deadlock.Mutex

	iface ui.UserInterface
	proc  *procedure.Procedure

	running bool
	paused  bool
	halted  bool

	lastStatus instruction.ExecutionStatus
	everRan    bool

	breakpoints map[uuid.UUID]bool
	tickCB      TickCallback

	backoffMu sync.Mutex
	backoffer *backoff.ExponentialBackOff
}

// New constructs a Runner bound to iface. A Procedure is attached later via
// SetProcedure.
func New(iface ui.UserInterface) *Runner {
	return &Runner{
		iface:       iface,
		breakpoints: make(map[uuid.UUID]bool),
	}
}

// SetProcedure attaches p. Spec §4.8: only allowed while not running.
func (r *Runner) SetProcedure(p *procedure.Procedure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errRunning("Runner.SetProcedure")
	}
	r.proc = p
	r.lastStatus = instruction.NotStarted
	r.everRan = false
	return nil
}

// SetTickCallback installs fn, invoked after every root Tick with a
// Snapshot of the procedure.
func (r *Runner) SetTickCallback(fn TickCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickCB = fn
}

// SetBreakpoint arms a breakpoint on node. Spec §4.8: must only be called
// while not actively ticking.
func (r *Runner) SetBreakpoint(node uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakpoints[node] = true
}

// RemoveBreakpoint disarms a breakpoint. A triggered breakpoint otherwise
// remains armed (spec §4.8).
func (r *Runner) RemoveBreakpoint(node uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakpoints, node)
}

// GetBreakpoints returns the currently armed breakpoint node IDs.
func (r *Runner) GetBreakpoints() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uuid.UUID, 0, len(r.breakpoints))
	for id := range r.breakpoints {
		out = append(out, id)
	}
	return out
}

// nextLeaf finds the deepest NotStarted or NotFinished leaf on a
// depth-first traversal of root, the instruction the next Tick would
// actually drive (spec §4.8's breakpoint-matching target).
func nextLeaf(inst instruction.Instruction) instruction.Instruction {
	status := inst.Status()
	if status != instruction.NotStarted && status != instruction.NotFinished {
		return nil
	}
	for _, child := range inst.Children() {
		if leaf := nextLeaf(child); leaf != nil {
			return leaf
		}
	}
	return inst
}

// armedBreakpoint reports whether any of the procedure's roots' next-leaf
// instructions match an armed breakpoint.
func (r *Runner) armedBreakpoint() (uuid.UUID, bool) {
	for _, root := range r.proc.Roots() {
		leaf := nextLeaf(root)
		if leaf == nil {
			continue
		}
		if r.breakpoints[leaf.NodeID()] {
			return leaf.NodeID(), true
		}
	}
	return uuid.Nil, false
}

// ExecuteSingle runs one tick of every top-level instruction and returns
// the aggregate status: Failure if any root failed, Success only if every
// root succeeded, otherwise Running/NotFinished reflecting the
// least-terminal observed root status (spec §4.8: never blocks on user
// input — a not-ready input future simply leaves the instruction Running).
func (r *Runner) ExecuteSingle() instruction.ExecutionStatus {
	r.mu.Lock()
	proc := r.proc
	iface := r.iface
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if proc == nil {
		return instruction.Failure
	}

	roots := proc.Roots()
	aggregate := instruction.Success
	sawRunning := false
	sawNotFinished := false

	for _, root := range roots {
		status := root.Tick(iface, proc.Workspace())
		switch status {
		case instruction.Failure:
			aggregate = instruction.Failure
		case instruction.Running:
			sawRunning = true
		case instruction.NotFinished, instruction.NotStarted:
			sawNotFinished = true
		}
	}

	if aggregate != instruction.Failure {
		switch {
		case sawNotFinished:
			aggregate = instruction.NotFinished
		case sawRunning:
			aggregate = instruction.Running
		}
	}

	r.mu.Lock()
	r.lastStatus = aggregate
	r.everRan = true
	cb := r.tickCB
	r.mu.Unlock()

	if cb != nil {
		cb(r.Snapshot())
	}
	return aggregate
}

// ExecuteProcedure ticks repeatedly until the aggregate status is terminal,
// the runner is paused, halted, or a breakpoint triggers (spec §4.8).
// Between ticks: Running backs off (exponential, capped) to avoid a busy
// loop; NotFinished re-ticks immediately.
func (r *Runner) ExecuteProcedure() instruction.ExecutionStatus {
	r.mu.Lock()
	r.paused = false
	r.halted = false
	r.mu.Unlock()

	r.backoffMu.Lock()
	r.backoffer = backoff.NewExponentialBackOff()
	r.backoffer.InitialInterval = 5 * time.Millisecond
	r.backoffer.MaxInterval = 200 * time.Millisecond
	r.backoffer.MaxElapsedTime = 0 // never give up; the caller halts explicitly
	r.backoffMu.Unlock()

	for {
		r.mu.Lock()
		paused, halted := r.paused, r.halted
		r.mu.Unlock()
		if paused || halted {
			r.mu.Lock()
			status := r.lastStatus
			r.mu.Unlock()
			return status
		}

		if id, ok := r.armedBreakpoint(); ok {
			_ = id
			r.mu.Lock()
			r.paused = true
			status := r.lastStatus
			r.mu.Unlock()
			return status
		}

		status := r.ExecuteSingle()
		if status.Terminal() {
			return status
		}

		switch status {
		case instruction.Running:
			r.backoffMu.Lock()
			d := r.backoffer.NextBackOff()
			r.backoffMu.Unlock()
			if d == backoff.Stop {
				d = 200 * time.Millisecond
			}
			time.Sleep(d)
		case instruction.NotFinished:
			r.backoffMu.Lock()
			r.backoffer.Reset()
			r.backoffMu.Unlock()
		}
	}
}

// Pause stops ticking after the current tick; resumed by the next
// ExecuteProcedure call.
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
}

// Halt sets the halt flag on every root (propagated cooperatively) and
// returns without further ticks. Safe from any thread.
func (r *Runner) Halt() {
	r.mu.Lock()
	proc := r.proc
	r.halted = true
	r.mu.Unlock()

	if proc == nil {
		return
	}
	for _, root := range proc.Roots() {
		root.Halt()
	}
}

// IsRunning reports whether the last observed aggregate status was Running
// (spec §4.8: "at least one descendant is executing on a separate thread",
// not "currently ticking").
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastStatus == instruction.Running
}

// IsFinished reports whether the last observed aggregate status was
// terminal.
func (r *Runner) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.everRan && r.lastStatus.Terminal()
}

// Snapshot returns a read-only status tree of the whole procedure.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	proc := r.proc
	r.mu.Unlock()
	if proc == nil {
		return Snapshot{}
	}
	roots := proc.Roots()
	snap := Snapshot{
		RootNames: make([]string, 0, len(roots)),
		Roots:     make([]NodeStatus, 0, len(roots)),
	}
	for _, root := range roots {
		snap.RootNames = append(snap.RootNames, root.Name())
		snap.Roots = append(snap.Roots, snapshotNode(root))
	}
	return snap
}

type runnerError string

func errRunning(op string) error { return runnerError(op + ": runner is currently running") }

func (e runnerError) Error() string { return string(e) }
