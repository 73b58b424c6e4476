package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Engine extracts text from image bytes.
type Engine interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// Tesseract shells out to the tesseract binary.
type Tesseract struct {
	Binary    string // e.g. "tesseract"
	Languages string // e.g. "eng"
}

// NewTesseract creates an engine with defaults filled in.
func NewTesseract(binary, languages string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if languages == "" {
		languages = "eng"
	}
	return &Tesseract{Binary: binary, Languages: languages}
}

// ExtractText writes the image to a temp file and runs tesseract on it,
// returning recognized text.
func (t *Tesseract) ExtractText(ctx context.Context, image []byte) (string, error) {
	tmpDir, err := os.MkdirTemp("", "runlab-ocr-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	imgPath := filepath.Join(tmpDir, "image")
	if err := os.WriteFile(imgPath, image, 0o644); err != nil {
		return "", fmt.Errorf("writing image file: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.Binary, imgPath, "stdout", "-l", t.Languages)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("running %s: %w: %s", t.Binary, err, msg)
		}
		return "", fmt.Errorf("running %s: %w", t.Binary, err)
	}

	return stdout.String(), nil
}
