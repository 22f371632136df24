// Package dataset checks the evaluation inputs before a trial starts.
package dataset

import (
	"errors"
	"fmt"
	"os"
)

// Paths locates the inputs and the working directory of one trial.
type Paths struct {
	Config     string // evaluation engine config
	QA         string
	Corpus     string
	ProjectDir string
}

// Validate checks that the config, QA and corpus files exist.
// All missing inputs are reported together.
func (p Paths) Validate() error {
	var errs []error
	for _, in := range []struct{ name, path string }{
		{"config", p.Config},
		{"qa data", p.QA},
		{"corpus data", p.Corpus},
	} {
		if in.path == "" {
			errs = append(errs, fmt.Errorf("%s path is required", in.name))
			continue
		}
		info, err := os.Stat(in.path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", in.name, in.path, err))
			continue
		}
		if info.IsDir() {
			errs = append(errs, fmt.Errorf("%s %q is a directory", in.name, in.path))
		}
	}
	return errors.Join(errs...)
}

// EnsureProjectDir creates the project directory when it does not exist.
func (p Paths) EnsureProjectDir() error {
	if p.ProjectDir == "" {
		return errors.New("project dir is required")
	}
	info, err := os.Stat(p.ProjectDir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("project dir %q is not a directory", p.ProjectDir)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat project dir: %w", err)
	}
	if err := os.MkdirAll(p.ProjectDir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	return nil
}
