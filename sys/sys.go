// Package sys holds the small process-wide configuration value every moha
// program runs with: where it started, what binary is running it, and
// where its module libraries live.
//
// It mirrors original_source/moha/vm/objects.py's Sys value, populated once
// at CLI startup and threaded down into the loader rather than read from
// globals at arbitrary points.
package sys

import (
	"os"
	"path/filepath"
)

// Sys is the environment a running moha program sees: its current working
// directory, the path to the running executable, the root directory import
// paths are resolved against, and that root's libs subdirectory.
type Sys struct {
	Cwd        string
	Executable string
	EnvPath    string
	LibsPath   string
}

// New resolves a Sys rooted at envPath. If envPath is empty, the process's
// current working directory is used, matching the teacher's main.go
// resolving a bare invocation to the directory it was run from.
func New(envPath string) (*Sys, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	if envPath == "" {
		envPath = cwd
	}
	envPath, err = filepath.Abs(envPath)
	if err != nil {
		return nil, err
	}

	return &Sys{
		Cwd:        cwd,
		Executable: exe,
		EnvPath:    envPath,
		LibsPath:   filepath.Join(envPath, "libs"),
	}, nil
}
