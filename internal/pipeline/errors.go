// Package pipeline orchestrates the sequential stage chain: reference
// library build, adapter trimming, read collapsing, alignment and
// post-processing. Each stage requires the prior stage's complete
// output; a stage either completes or the run aborts.
package pipeline

import (
	"fmt"
	"os"
)

// Exit codes, reported by the command layer.
const (
	ExitInputError        = 4
	ExitExternalToolError = 3
)

// InputError reports a required input path that does not exist. Inputs
// are checked eagerly before any processing starts.
type InputError struct {
	Path string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input file does not exist: %s", e.Path)
}

// ExternalToolError reports a delegated external binary that exited
// abnormally or could not be invoked. Always fatal: later stages assume
// well-formed prior output.
type ExternalToolError struct {
	Command string
	Output  string
	Err     error
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("external tool failed: %s: %v", e.Command, e.Err)
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// CheckInputs verifies every given path exists, returning an InputError
// naming the first missing one. Empty paths are skipped.
func CheckInputs(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return &InputError{Path: path}
		}
	}
	return nil
}
