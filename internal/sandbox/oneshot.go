package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RunOnce executes code as a subprocess with stdin unavailable and the
// configured time budget. A non-zero exit is not an error: the program's
// diagnostics are in Result.Errors, matching how an interpreter reports a
// traceback on stderr.
func (l *Local) RunOnce(ctx context.Context, language, code string) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}
	if language == "" {
		language = "python"
	}
	rt, ok := l.runtimes[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	tmpDir, err := os.MkdirTemp("", "runlab-oneshot-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	codePath := filepath.Join(tmpDir, "main."+rt.Extension)
	if err := os.WriteFile(codePath, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("writing code file: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	args := append(append([]string{}, rt.Command[1:]...), codePath)
	cmd := exec.CommandContext(runCtx, rt.Command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, ErrTimeout
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running %s: %w", rt.Command[0], err)
		}
	}

	return &Result{
		Output: stdout.String(),
		Errors: stderr.String(),
	}, nil
}
