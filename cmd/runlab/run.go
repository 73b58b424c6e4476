package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/mgreene/runlab/internal/config"
	"github.com/mgreene/runlab/internal/sandbox"
)

var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Run a program interactively in the terminal",
	Long: `Run a local source file through the interactive engine. Output appears as
the program produces it, and input() prompts are answered at the terminal.

Examples:
  runlab run script.py`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt: "> ",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	runner := sandbox.NewLocal(sandbox.Options{
		Interpreter: cfg.Exec.Interpreter,
		Timeout:     cfg.ExecTimeout(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runner.RunInteractive(ctx, string(code), &terminalIO{rl: rl})
}

// terminalIO answers the program's effects at the terminal.
type terminalIO struct {
	rl *readline.Instance
}

func (t *terminalIO) Output(text string) {
	fmt.Print(text)
}

func (t *terminalIO) RequestInput(prompt string) (string, error) {
	if prompt == "" {
		prompt = "> "
	}
	t.rl.SetPrompt(prompt)
	line, err := t.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt || err == io.EOF {
			return "", fmt.Errorf("input closed")
		}
		return "", err
	}
	return line, nil
}
