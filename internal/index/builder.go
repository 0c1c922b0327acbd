// Package index wraps the external short-read aligner's index builder.
// Actual index construction is delegated to bowtie2-build; this package
// owns invocation, failure reporting and the availability check.
package index

import (
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// Runner executes an external command and returns its combined output.
// The pipeline's tool runner satisfies this.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// BuildError reports an abnormal index-builder exit. The pipeline treats
// it as fatal; a missing or partial index must never be aligned against.
type BuildError struct {
	Command string
	Output  string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("index build failed: %s: %v", e.Command, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Builder builds alignment indexes from a library FASTA.
type Builder struct {
	binary string
	runner Runner
	logger *zap.Logger
}

// NewBuilder creates a builder invoking the given bowtie2-build binary.
func NewBuilder(binary string, runner Runner) *Builder {
	return &Builder{binary: binary, runner: runner, logger: zap.NewNop()}
}

// SetLogger sets the logger for build progress messages.
func (b *Builder) SetLogger(l *zap.Logger) {
	b.logger = l
}

// Check verifies the builder binary can be invoked.
func (b *Builder) Check() error {
	if _, err := exec.LookPath(b.binary); err != nil {
		return fmt.Errorf("index builder binary not found: %w", err)
	}
	return nil
}

// Build constructs the index for fastaPath under indexPrefix. It is
// invoked once per cache miss; the caller publishes the containing
// directory atomically after Build returns.
func (b *Builder) Build(ctx context.Context, fastaPath, indexPrefix string) error {
	b.logger.Info("building alignment index",
		zap.String("fasta", fastaPath),
		zap.String("prefix", indexPrefix))

	args := []string{"-f", fastaPath, indexPrefix}
	out, err := b.runner.Run(ctx, b.binary, args...)
	if err != nil {
		return &BuildError{
			Command: fmt.Sprintf("%s -f %s %s", b.binary, fastaPath, indexPrefix),
			Output:  string(out),
			Err:     err,
		}
	}
	return nil
}
