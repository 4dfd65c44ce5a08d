// Package instructions implements the concrete instruction library of spec
// §4.5: composites, decorators, control flow, variable manipulation,
// comparisons, I/O, and the condition/achieve/wait family.
package instructions

import (
	"strconv"

	"github.com/procbt/engine/attribute"
	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/workspace"
)

// Sequence ticks children left-to-right, short-circuiting on Failure.
type Sequence struct {
	*instruction.Base
}

// NewSequence constructs a Sequence over children, in order.
func NewSequence(name string, tags []string, children ...instruction.Instruction) *Sequence {
	s := &Sequence{}
	s.Base = instruction.NewBase("Sequence", name, tags, nil, attribute.NewBag(), s)
	for _, c := range children {
		s.AddChild(c)
	}
	return s
}

func (s *Sequence) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	for _, child := range s.Children() {
		if child.Status() == instruction.Success {
			continue
		}
		status := child.Tick(iface, ws)
		if status == instruction.Failure {
			return instruction.Failure
		}
		if status != instruction.Success {
			return status
		}
	}
	return instruction.Success
}

// Fallback is the dual of Sequence: short-circuits on Success.
type Fallback struct {
	*instruction.Base
}

func NewFallback(name string, tags []string, children ...instruction.Instruction) *Fallback {
	f := &Fallback{}
	f.Base = instruction.NewBase("Fallback", name, tags, nil, attribute.NewBag(), f)
	for _, c := range children {
		f.AddChild(c)
	}
	return f
}

func (f *Fallback) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	for _, child := range f.Children() {
		if child.Status() == instruction.Failure {
			continue
		}
		status := child.Tick(iface, ws)
		if status == instruction.Success {
			return instruction.Success
		}
		if status != instruction.Failure {
			return status
		}
	}
	return instruction.Failure
}

// ParallelSequence ticks every non-terminal child each tick, succeeding or
// failing once enough children agree (spec §4.5, Open Question #2 on
// threshold reconciliation).
type ParallelSequence struct {
	*instruction.Base

	successThreshold int
	failureThreshold int
}

// NewParallelSequence constructs a ParallelSequence. successRaw/failureRaw
// are the raw successThreshold/failureThreshold attribute strings ("" if
// unset); n is the child count used for default and clamping.
func NewParallelSequence(name string, tags []string, successRaw, failureRaw string, children ...instruction.Instruction) *ParallelSequence {
	n := len(children)
	s, f := reconcileThresholds(n, successRaw, failureRaw)

	p := &ParallelSequence{successThreshold: s, failureThreshold: f}
	bag := attribute.NewBag()
	if successRaw != "" {
		bag.Set("successThreshold", successRaw)
	}
	if failureRaw != "" {
		bag.Set("failureThreshold", failureRaw)
	}
	p.Base = instruction.NewBase("ParallelSequence", name, tags, nil, bag, p)
	for _, c := range children {
		p.AddChild(c)
	}
	return p
}

// reconcileThresholds implements spec §4.5's clamping rule, both thresholds
// clamped so s+f <= n+1; when both are explicit and their sum exceeds n+1,
// failureThreshold is reduced preferentially (Open Question #2 decision).
func reconcileThresholds(n int, successRaw, failureRaw string) (s, f int) {
	sExplicit := successRaw != ""
	fExplicit := failureRaw != ""

	s = n
	f = 1
	if sExplicit {
		if v, err := strconv.Atoi(successRaw); err == nil {
			s = v
		}
	}
	if fExplicit {
		if v, err := strconv.Atoi(failureRaw); err == nil {
			f = v
		}
	}

	if s+f > n+1 {
		switch {
		case sExplicit && fExplicit:
			f = n + 1 - s
		case fExplicit && !sExplicit:
			s = n + 1 - f
		default:
			f = n + 1 - s
		}
	}
	if s < 0 {
		s = 0
	}
	if f < 0 {
		f = 0
	}
	return s, f
}

func (p *ParallelSequence) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	children := p.Children()

	successCount, failureCount, anyRunning := 0, 0, false
	for _, child := range children {
		status := child.Status()
		if !status.Terminal() {
			status = child.Tick(iface, ws)
		}
		switch status {
		case instruction.Success:
			successCount++
		case instruction.Failure:
			failureCount++
		case instruction.Running:
			anyRunning = true
		}
	}

	if successCount >= p.successThreshold {
		haltNonTerminal(children)
		return instruction.Success
	}
	if failureCount >= p.failureThreshold {
		haltNonTerminal(children)
		return instruction.Failure
	}
	if anyRunning {
		return instruction.Running
	}
	return instruction.NotFinished
}

func haltNonTerminal(children []instruction.Instruction) {
	for _, c := range children {
		if !c.Status().Terminal() {
			c.Halt()
		}
	}
}
