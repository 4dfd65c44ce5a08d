package instructions

import (
	"github.com/procbt/engine/attribute"
	procerrors "github.com/procbt/engine/errors"
	"github.com/procbt/engine/instruction"
	"github.com/procbt/engine/ui"
	"github.com/procbt/engine/value"
	"github.com/procbt/engine/workspace"
)

// Input requests a value from the user interface via an async input future
// and writes it to outputVar when ready.
type Input struct {
	*instruction.Base

	outputVar   string
	description string

	future ui.InputFuture
}

func NewInput(name string, tags []string, outputVar, description string) *Input {
	i := &Input{outputVar: outputVar, description: description}
	bag := attribute.NewBag()
	bag.Set("outputVar", outputVar)
	if description != "" {
		bag.Set("description", description)
	}
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "outputVar", Category: attribute.VariableName, Mandatory: true})
	i.Base = instruction.NewBase("Input", name, tags, schema, bag, i)
	return i
}

func (i *Input) InitImpl(iface ui.UserInterface, ws *workspace.Workspace) error {
	i.future = iface.RequestInput(i.description)
	return nil
}

func (i *Input) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if !i.future.IsReady() {
		return instruction.Running
	}
	v, err := i.future.Get()
	if err != nil {
		return instruction.Failure
	}
	if !ws.SetValue(i.outputVar, "", value.New("", v)) {
		return instruction.Failure
	}
	return instruction.Success
}

func (i *Input) HaltImpl() {
	if i.future != nil {
		i.future.Cancel()
	}
}

// Output sends its literal text to the user interface as a one-way message;
// it does not read or format workspace variables.
type Output struct {
	*instruction.Base
	text string
}

func NewOutput(name string, tags []string, text string) *Output {
	o := &Output{text: text}
	bag := attribute.NewBag()
	bag.Set("text", text)
	o.Base = instruction.NewBase("Output", name, tags, nil, bag, o)
	return o
}

func (o *Output) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	iface.Message(o.text)
	return instruction.Success
}

// Message is a synonym for Output; kept distinct per spec §4.5's "Output /
// Message / Log: one-way to the user interface" so a procedure definition
// can name either.
type Message struct {
	*instruction.Base
	text string
}

func NewMessage(name string, tags []string, text string) *Message {
	m := &Message{text: text}
	bag := attribute.NewBag()
	bag.Set("text", text)
	m.Base = instruction.NewBase("Message", name, tags, nil, bag, m)
	return m
}

func (m *Message) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	iface.Message(m.text)
	return instruction.Success
}

// Log emits text at a declared severity. An unknown severity is rejected by
// NewLog with an AttributeError, so the instruction is never built.
type Log struct {
	*instruction.Base

	severity ui.Severity
	text     string
}

func NewLog(name string, tags []string, severity, text string) (*Log, error) {
	if severity == "" {
		severity = string(ui.SeverityInfo)
	}
	if !ui.ValidSeverity(severity) {
		return nil, procerrors.New(procerrors.ErrAttributeError, "NewLog", "unknown severity "+severity)
	}
	l := &Log{severity: ui.Severity(severity), text: text}
	bag := attribute.NewBag()
	bag.Set("severity", severity)
	bag.Set("text", text)
	l.Base = instruction.NewBase("Log", name, tags, nil, bag, l)
	return l, nil
}

func (l *Log) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	iface.Log(l.severity, l.text)
	return instruction.Success
}

// UserConfirmation prompts the user for a yes/no confirmation via an async
// future; Success on confirm, Failure on reject or halt.
type UserConfirmation struct {
	*instruction.Base

	description string
	okText      string
	cancelText  string

	future ui.InputFuture
}

func NewUserConfirmation(name string, tags []string, description, okText, cancelText string) *UserConfirmation {
	u := &UserConfirmation{description: description, okText: okText, cancelText: cancelText}
	bag := attribute.NewBag()
	bag.Set("description", description)
	if okText != "" {
		bag.Set("okText", okText)
	}
	if cancelText != "" {
		bag.Set("cancelText", cancelText)
	}
	schema := attribute.NewSchema().Define(attribute.Definition{Name: "description", Mandatory: true})
	u.Base = instruction.NewBase("UserConfirmation", name, tags, schema, bag, u)
	return u
}

func (u *UserConfirmation) InitImpl(iface ui.UserInterface, ws *workspace.Workspace) error {
	u.future = iface.RequestConfirmation(u.description, u.okText, u.cancelText)
	return nil
}

func (u *UserConfirmation) TickImpl(iface ui.UserInterface, ws *workspace.Workspace) instruction.ExecutionStatus {
	if !u.future.IsReady() {
		return instruction.Running
	}
	v, err := u.future.Get()
	if err != nil {
		return instruction.Failure
	}
	confirmed, ok := v.(bool)
	if !ok || !confirmed {
		return instruction.Failure
	}
	return instruction.Success
}

func (u *UserConfirmation) HaltImpl() {
	if u.future != nil {
		u.future.Cancel()
	}
}
