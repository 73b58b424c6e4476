package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mgreene/runlab/internal/config"
	"github.com/mgreene/runlab/internal/ocr"
	"github.com/mgreene/runlab/internal/sandbox"
	"github.com/mgreene/runlab/internal/server"
	"github.com/mgreene/runlab/internal/storage/sqlite"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the runlab server",
	Long: `Start the runlab HTTP server.

Interactive runs use the websocket at /ws; one-shot execution and image
upload are POST /compile-code and POST /upload-image.

Examples:
  runlab serve
  runlab serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Open storage
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	// Build the execution runner
	runtimes := sandbox.DefaultRuntimes()
	if cfg.Exec.RuntimesFile != "" {
		runtimes, err = sandbox.LoadRuntimes(cfg.Exec.RuntimesFile)
		if err != nil {
			return fmt.Errorf("loading runtimes: %w", err)
		}
	}
	runner := sandbox.NewLocal(sandbox.Options{
		Interpreter: cfg.Exec.Interpreter,
		Timeout:     cfg.ExecTimeout(),
		Runtimes:    runtimes,
	})

	engine := ocr.NewTesseract(cfg.OCR.Binary, cfg.OCR.Languages)

	// Determine port
	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	// Create and start server
	srv := server.New(cfg, store, runner, engine)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		srv.Shutdown(context.Background())
	}()

	return srv.Start(port)
}
