package sandbox

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Runtime describes how to execute one language in one-shot mode.
type Runtime struct {
	Command   []string `yaml:"command"`   // interpreter argv; the source path is appended
	Extension string   `yaml:"extension"` // source file extension, without dot
}

// DefaultRuntimes returns the built-in language table.
func DefaultRuntimes() map[string]Runtime {
	return map[string]Runtime{
		"python": {
			Command:   []string{"python3", "-u", "-B"},
			Extension: "py",
		},
		"javascript": {
			Command:   []string{"node"},
			Extension: "js",
		},
	}
}

// LoadRuntimes reads a language table from a YAML file, e.g.
//
//	python:
//	  command: ["python3", "-u"]
//	  extension: py
func LoadRuntimes(path string) (map[string]Runtime, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading runtimes %s: %w", path, err)
	}

	var runtimes map[string]Runtime
	if err := yaml.Unmarshal(data, &runtimes); err != nil {
		return nil, fmt.Errorf("parsing runtimes %s: %w", path, err)
	}

	for name, rt := range runtimes {
		if len(rt.Command) == 0 {
			return nil, fmt.Errorf("runtime %s: command is required", name)
		}
		if rt.Extension == "" {
			return nil, fmt.Errorf("runtime %s: extension is required", name)
		}
	}
	return runtimes, nil
}
