// Package ui defines the external UserInterface contract (spec §4.6): the
// set of thread-safe and tick-thread-only methods instructions call to
// report status, emit output, and solicit input, plus a no-op base and a
// default logrus-backed implementation.
package ui

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/google/uuid"
)

// Severity mirrors the taxonomy the Log instruction accepts (spec §4.5).
type Severity string

const (
	SeverityEmergency Severity = "emergency"
	SeverityAlert     Severity = "alert"
	SeverityCritical  Severity = "critical"
	SeverityError     Severity = "error"
	SeverityWarning   Severity = "warning"
	SeverityNotice    Severity = "notice"
	SeverityInfo      Severity = "info"
	SeverityDebug     Severity = "debug"
	SeverityTrace     Severity = "trace"
)

// ValidSeverity reports whether s is one of the nine accepted severities.
func ValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityEmergency, SeverityAlert, SeverityCritical, SeverityError,
		SeverityWarning, SeverityNotice, SeverityInfo, SeverityDebug, SeverityTrace:
		return true
	}
	return false
}

// InputFuture is the only suspension primitive offered to instructions
// (spec §4.6/§4.8): async input never blocks TickImpl, it hands back a
// future polled across ticks.
type InputFuture interface {
	IsReady() bool
	// Get returns the resolved value once IsReady is true. Calling Get
	// before IsReady is implementation-defined; callers must check IsReady
	// first.
	Get() (any, error)
	// Cancel causes any pending Get to fail promptly. Idempotent.
	Cancel()
}

// UserInterface is the full contract instructions and the runner interact
// with. Status/Message/Log/VariableUpdated must be safe to call from the
// workspace-notification thread concurrently with the tick thread; the
// prompt methods are tick-thread-only.
type UserInterface interface {
	// UpdateInstructionStatus reports a node's new ExecutionStatus. status is
	// an any to avoid an import cycle with the instruction package; concrete
	// implementations format it with fmt.Stringer or %v.
	UpdateInstructionStatus(node uuid.UUID, status any)
	VariableUpdated(name string, v any, connected bool)
	Message(text string)
	Log(severity Severity, text string)

	// RequestInput and RequestConfirmation and RequestChoice are tick-thread
	// only: they must return immediately with a future, never block.
	RequestInput(description string) InputFuture
	RequestConfirmation(description, okText, cancelText string) InputFuture
	RequestChoice(description string, options int) InputFuture
}

// Base is a no-op UserInterface implementers can embed, overriding only the
// methods they need (spec §4.6 "implementations should provide a default
// no-op base").
type Base struct{}

func (Base) UpdateInstructionStatus(node uuid.UUID, status any) {}
func (Base) VariableUpdated(name string, v any, connected bool) {}
func (Base) Message(text string)                                {}
func (Base) Log(severity Severity, text string)                 {}

func (Base) RequestInput(description string) InputFuture {
	return resolvedFuture{}
}
func (Base) RequestConfirmation(description, okText, cancelText string) InputFuture {
	return resolvedFuture{}
}
func (Base) RequestChoice(description string, options int) InputFuture {
	return resolvedFuture{}
}

type resolvedFuture struct{}

func (resolvedFuture) IsReady() bool        { return true }
func (resolvedFuture) Get() (any, error)    { return nil, fmt.Errorf("ui.Base: no input backend configured") }
func (resolvedFuture) Cancel()              {}

// Logger is the small logging seam the default UserInterface delegates to,
// with a Debug/Info/Warn/Error shape mapped onto the nine Log severities.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// LogrusLogger backs Logger with logrus, the structured logger used
// throughout.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps a *logrus.Logger (or nil for logrus's default).
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func (l *LogrusLogger) Debug(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *LogrusLogger) Info(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *LogrusLogger) Warn(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *LogrusLogger) Error(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
