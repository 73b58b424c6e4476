package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// maxFrameSize bounds one pipe frame, and with it one output chunk. A
// program emitting a single longer line is terminated rather than relayed.
const maxFrameSize = 4 * 1024 * 1024

// frame is one JSON line on the harness pipe.
type frame struct {
	Event  string `json:"event"`
	Text   string `json:"text,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// RunInteractive writes the submitted source and the harness to a temp dir,
// starts the interpreter, and relays pipe frames through ev until the
// program finishes. There is deliberately no wall-clock limit here: the run
// may park indefinitely inside an input request, and teardown happens via
// ctx or an error from ev.RequestInput.
func (l *Local) RunInteractive(ctx context.Context, code string, ev Events) error {
	if strings.TrimSpace(code) == "" {
		return ErrEmptyCode
	}

	tmpDir, err := os.MkdirTemp("", "runlab-session-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	codePath := filepath.Join(tmpDir, "main.py")
	if err := os.WriteFile(codePath, []byte(code), 0o644); err != nil {
		return fmt.Errorf("writing code file: %w", err)
	}
	harnessPath := filepath.Join(tmpDir, "harness.py")
	if err := os.WriteFile(harnessPath, []byte(harnessSource), 0o644); err != nil {
		return fmt.Errorf("writing harness file: %w", err)
	}

	cmd := exec.CommandContext(ctx, l.interpreter, "-u", "-B", harnessPath, codePath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting interpreter: %w", err)
	}

	done := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

scan:
	for scanner.Scan() {
		var f frame
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			// Not a protocol frame; pass it through as program output.
			ev.Output(scanner.Text() + "\n")
			continue
		}

		switch f.Event {
		case "output", "trace":
			ev.Output(f.Text)
		case "input_request":
			value, err := ev.RequestInput(f.Prompt)
			if err != nil {
				// Session torn down while the program waited for input.
				break scan
			}
			fmt.Fprintln(stdin, value)
		case "done":
			done = true
			break scan
		}
	}
	scanErr := scanner.Err()

	if !done {
		// The program is still running: the scan stopped on an overlong
		// frame, a torn-down input request, or a dead pipe. It must not
		// outlive the run, and Wait must not block on its unread output.
		cmd.Process.Kill()
	}
	stdin.Close()
	io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if scanErr != nil {
		if scanErr == bufio.ErrTooLong {
			ev.Output("Output line exceeded the 4MB limit, execution terminated\n")
		}
		return fmt.Errorf("reading program output: %w", scanErr)
	}
	if !done {
		// The harness never reached its terminal frame: the interpreter
		// itself failed or was killed. Surface anything it said.
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			ev.Output(msg + "\n")
		}
		if waitErr != nil {
			return fmt.Errorf("interpreter exited: %w", waitErr)
		}
	}
	return nil
}
