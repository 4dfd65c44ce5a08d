package ui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ConsoleUI is the default, non-no-op UserInterface: status/message/log
// traffic goes to a Logger (logrus-backed by default via NewLogrusLogger),
// and prompts resolve synchronously against a fixed answer or a supplied
// answer function — there being no real terminal/network I/O backend in
// scope (spec §1 Non-goals exclude concrete UI rendering).
type ConsoleUI struct {
	Base

	log Logger

	mu      sync.Mutex
	answers AnswerSource
}

// AnswerSource supplies answers to input/confirmation/choice prompts.
// Embedding programs (the CLI, tests) provide one; ConsoleUI never reads a
// real terminal itself.
type AnswerSource interface {
	Input(description string) (any, error)
	Confirmation(description string) (bool, error)
	Choice(description string, options int) (int, error)
}

// NewConsoleUI constructs a ConsoleUI logging through log (nil uses
// NewLogrusLogger(nil)) and resolving prompts through answers (nil uses
// NoAnswers, which fails every prompt).
func NewConsoleUI(log Logger, answers AnswerSource) *ConsoleUI {
	if log == nil {
		log = NewLogrusLogger(nil)
	}
	if answers == nil {
		answers = NoAnswers{}
	}
	return &ConsoleUI{log: log, answers: answers}
}

func (c *ConsoleUI) UpdateInstructionStatus(node uuid.UUID, status any) {
	c.log.Debug("instruction %s -> %v", node, status)
}

func (c *ConsoleUI) VariableUpdated(name string, v any, connected bool) {
	c.log.Debug("variable %q updated (connected=%v): %v", name, connected, v)
}

func (c *ConsoleUI) Message(text string) {
	c.log.Info("%s", text)
}

func (c *ConsoleUI) Log(severity Severity, text string) {
	switch severity {
	case SeverityEmergency, SeverityAlert, SeverityCritical, SeverityError:
		c.log.Error("%s", text)
	case SeverityWarning:
		c.log.Warn("%s", text)
	case SeverityDebug, SeverityTrace:
		c.log.Debug("%s", text)
	default:
		c.log.Info("%s", text)
	}
}

func (c *ConsoleUI) RequestInput(description string) InputFuture {
	return newImmediateFuture(func() (any, error) {
		return c.answers.Input(description)
	})
}

func (c *ConsoleUI) RequestConfirmation(description, okText, cancelText string) InputFuture {
	return newImmediateFuture(func() (any, error) {
		return c.answers.Confirmation(description)
	})
}

func (c *ConsoleUI) RequestChoice(description string, options int) InputFuture {
	return newImmediateFuture(func() (any, error) {
		return c.answers.Choice(description, options)
	})
}

// NoAnswers is an AnswerSource that rejects every prompt; useful for
// headless runs where no asynchronous instruction should ever be exercised.
type NoAnswers struct{}

func (NoAnswers) Input(description string) (any, error) {
	return nil, fmt.Errorf("ui: no answer source configured for input %q", description)
}
func (NoAnswers) Confirmation(description string) (bool, error) {
	return false, fmt.Errorf("ui: no answer source configured for confirmation %q", description)
}
func (NoAnswers) Choice(description string, options int) (int, error) {
	return 0, fmt.Errorf("ui: no answer source configured for choice %q", description)
}

// StdinAnswers reads prompt answers from a line-oriented reader (typically
// os.Stdin), for cmd/proctree run's interactive mode. Each call prints the
// prompt to out before blocking on one line from in.
type StdinAnswers struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	out     io.Writer
}

// NewStdinAnswers builds a StdinAnswers reading from in and echoing prompts
// to out.
func NewStdinAnswers(in io.Reader, out io.Writer) *StdinAnswers {
	return &StdinAnswers{scanner: bufio.NewScanner(in), out: out}
}

func (s *StdinAnswers) readLine(prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, prompt)
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.scanner.Text()), nil
}

func (s *StdinAnswers) Input(description string) (any, error) {
	return s.readLine(description)
}

func (s *StdinAnswers) Confirmation(description string) (bool, error) {
	line, err := s.readLine(description + " [y/N]")
	if err != nil {
		return false, err
	}
	line = strings.ToLower(line)
	return line == "y" || line == "yes", nil
}

func (s *StdinAnswers) Choice(description string, options int) (int, error) {
	line, err := s.readLine(fmt.Sprintf("%s (choose 0-%d)", description, options-1))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("ui: invalid choice %q: %w", line, err)
	}
	return n, nil
}

var _ AnswerSource = (*StdinAnswers)(nil)

// immediateFuture resolves synchronously on construction, since ConsoleUI's
// AnswerSource is itself synchronous; it still satisfies InputFuture so
// instructions built against the future abstraction work unmodified against
// a non-interactive backend.
type immediateFuture struct {
	mu        sync.Mutex
	resolved  bool
	cancelled bool
	val       any
	err       error
}

func newImmediateFuture(resolve func() (any, error)) *immediateFuture {
	f := &immediateFuture{}
	v, err := resolve()
	f.mu.Lock()
	f.resolved = true
	f.val, f.err = v, err
	f.mu.Unlock()
	return f
}

func (f *immediateFuture) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved
}

func (f *immediateFuture) Get() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelled {
		return nil, fmt.Errorf("ui: input cancelled")
	}
	return f.val, f.err
}

func (f *immediateFuture) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
}
