package pipeline

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mirtk/polymir/internal/config"
)

// ToolRunner invokes external binaries, blocking until they exit. It
// satisfies the Runner interface of the index builder.
type ToolRunner struct {
	logger *zap.Logger
}

// NewToolRunner creates a runner with a no-op logger.
func NewToolRunner() *ToolRunner {
	return &ToolRunner{logger: zap.NewNop()}
}

// SetLogger sets the logger for command tracing.
func (r *ToolRunner) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Run executes a command and returns its combined output. A non-zero
// exit or invocation failure is returned as the error; callers wrap it
// into their fatal error type.
func (r *ToolRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.logger.Debug("running external tool",
		zap.String("binary", name),
		zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, err
	}
	return out, nil
}

// CheckBinaries verifies every external collaborator binary can be
// found before any stage runs. A missing binary is fatal.
func CheckBinaries(binaries ...string) error {
	for _, bin := range binaries {
		if _, err := exec.LookPath(bin); err != nil {
			return &ExternalToolError{
				Command: bin,
				Err:     fmt.Errorf("binary not found: %w", err),
			}
		}
	}
	return nil
}

// Trimmer wraps the external adapter trimmer (cutadapt).
type Trimmer struct {
	cfg    config.Config
	runner *ToolRunner
}

// NewTrimmer creates a trimmer using the run configuration's adapter,
// length and quality parameters.
func NewTrimmer(cfg config.Config, runner *ToolRunner) *Trimmer {
	return &Trimmer{cfg: cfg, runner: runner}
}

// Trim runs adapter trimming, size selection and quality trimming on a
// reads file, producing a trimmed FASTQ.
func (t *Trimmer) Trim(ctx context.Context, fastqPath, outPath string) error {
	args := []string{
		"-q", strconv.Itoa(t.cfg.QualityThreshold),
		"-m", strconv.Itoa(t.cfg.ReadMin),
		"-M", strconv.Itoa(t.cfg.ReadMax),
	}
	// Several 3' adapters may be given comma-separated (library kits
	// differ); each becomes its own -a.
	for _, adapter := range strings.Split(t.cfg.Adapter3, ",") {
		if adapter = strings.TrimSpace(adapter); adapter != "" {
			args = append(args, "-a", adapter)
		}
	}
	if t.cfg.Adapter5 != "" {
		args = append(args, "-g", t.cfg.Adapter5)
	}
	args = append(args, "-o", outPath, fastqPath)

	out, err := t.runner.Run(ctx, t.cfg.Cutadapt, args...)
	if err != nil {
		return &ExternalToolError{
			Command: t.cfg.Cutadapt + " " + strings.Join(args, " "),
			Output:  string(out),
			Err:     err,
		}
	}
	return nil
}

// Aligner wraps the external short-read aligner (bowtie2) in local mode
// against the expanded library index.
type Aligner struct {
	cfg    config.Config
	runner *ToolRunner
}

// NewAligner creates an aligner using the run configuration's seed
// length and thread count.
func NewAligner(cfg config.Config, runner *ToolRunner) *Aligner {
	return &Aligner{cfg: cfg, runner: runner}
}

// Align maps collapsed reads (FASTA) against the index, reporting all
// alignments per read so ties are visible downstream, and writes SAM.
func (a *Aligner) Align(ctx context.Context, collapsedPath, indexPrefix, samPath string) error {
	args := []string{
		"--local",
		"--norc",
		"-a",
		"-f",
		"-L", strconv.Itoa(a.cfg.SeedLength),
	}
	if a.cfg.Threads > 0 {
		args = append(args, "-p", strconv.Itoa(a.cfg.Threads))
	}
	args = append(args,
		"-x", indexPrefix,
		"-U", collapsedPath,
		"-S", samPath,
	)

	out, err := a.runner.Run(ctx, a.cfg.Bowtie2, args...)
	if err != nil {
		return &ExternalToolError{
			Command: a.cfg.Bowtie2 + " " + strings.Join(args, " "),
			Output:  string(out),
			Err:     err,
		}
	}
	return nil
}
