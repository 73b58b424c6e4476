package sandbox

import (
	"context"
	"errors"
	"time"
)

// Events receives the redirected effects of a running program. Output is
// called once per chunk the program produces, in produced order.
// RequestInput blocks the sandbox goroutine until the client supplies a
// value; it must never be called from a connection's read loop.
type Events interface {
	Output(text string)
	RequestInput(prompt string) (string, error)
}

// Result is the captured output of a one-shot execution.
type Result struct {
	Output string
	Errors string
}

// Runner executes untrusted source code.
type Runner interface {
	// RunInteractive executes code with print/input redirected through ev.
	// It returns when the program finishes, faults, or ctx is cancelled.
	// Runtime faults inside the program are reported through ev, not the
	// returned error.
	RunInteractive(ctx context.Context, code string, ev Events) error

	// RunOnce executes code with stdin unavailable and a fixed time budget,
	// returning captured stdout and stderr.
	RunOnce(ctx context.Context, language, code string) (*Result, error)
}

var (
	// ErrEmptyCode is returned when no source text was submitted.
	ErrEmptyCode = errors.New("no code provided")

	// ErrTimeout is returned when a one-shot run exceeds its time budget.
	ErrTimeout = errors.New("code execution timed out")

	// ErrUnsupportedLanguage is returned for a language with no runtime.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Options configures a Local runner.
type Options struct {
	Interpreter string             // Python interpreter for interactive runs
	Timeout     time.Duration      // one-shot execution budget
	Runtimes    map[string]Runtime // one-shot language table
}

// Local runs code in interpreter subprocesses on the host.
type Local struct {
	interpreter string
	timeout     time.Duration
	runtimes    map[string]Runtime
}

// NewLocal creates a runner with the given options, filling in defaults.
func NewLocal(opts Options) *Local {
	interp := opts.Interpreter
	if interp == "" {
		interp = "python3"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	runtimes := opts.Runtimes
	if len(runtimes) == 0 {
		runtimes = DefaultRuntimes()
	}
	return &Local{
		interpreter: interp,
		timeout:     timeout,
		runtimes:    runtimes,
	}
}
