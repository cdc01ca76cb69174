package compile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// Invocation is everything a Compiler needs for one job.
type Invocation struct {
	Dir     string // working directory; relative \input paths resolve here
	Source  string // derived source, relative to Dir
	JobName string
	OutDir  string // absolute; receives the PDF and the log
	Deep    bool
}

// Outcome is what the toolchain left behind.
type Outcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Log      []byte
	Artifact string // PDF path when produced
}

// Compiler abstracts the external toolchain so orchestration can be tested
// without a TeX installation.
//
// Run returns an error only when the toolchain could not be run to
// completion (missing binary, timeout, cancellation). A non-zero exit is
// reported through Outcome.ExitCode.
type Compiler interface {
	Run(ctx context.Context, inv Invocation) (Outcome, error)
}

// BinaryCompiler invokes latexmk or a raw engine present on PATH.
type BinaryCompiler struct {
	Engine  config.Engine
	Binary  string
	Passes  int
	Timeout time.Duration
}

// NewBinaryCompiler builds a compiler from the compile section.
func NewBinaryCompiler(cfg config.CompileConfig) *BinaryCompiler {
	return &BinaryCompiler{Engine: cfg.Engine, Binary: cfg.Binary, Passes: cfg.Passes, Timeout: cfg.Timeout}
}

func (b *BinaryCompiler) binary() string {
	if b.Binary != "" {
		return b.Binary
	}
	if b.Engine == "" {
		return string(config.EngineLatexmk)
	}
	return string(b.Engine)
}

// Args returns the command line of one pass.
func (b *BinaryCompiler) Args(inv Invocation) []string {
	common := []string{
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-file-line-error",
		"-jobname=" + inv.JobName,
	}
	if b.Engine == "" || b.Engine == config.EngineLatexmk {
		args := []string{"-pdf", "-outdir=" + inv.OutDir}
		if inv.Deep {
			args = append(args, "-g")
		}
		return append(append(args, common...), inv.Source)
	}
	return append(append(common, "-output-directory="+inv.OutDir), inv.Source)
}

func (b *BinaryCompiler) passes() int {
	if b.Engine == "" || b.Engine == config.EngineLatexmk || b.Passes < 1 {
		return 1
	}
	return b.Passes
}

// Run executes the toolchain. The whole invocation, every pass included, is
// bounded by Timeout; on expiry the process group is killed.
func (b *BinaryCompiler) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	bin := b.binary()
	if _, err := exec.LookPath(bin); err != nil {
		return Outcome{}, foundationerrors.WrapError(err, foundationerrors.CategoryCompile, "compiler binary not found").
			WithContext("binary", bin).
			Build()
	}
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	var out Outcome
	args := b.Args(inv)
	for pass := 1; pass <= b.passes(); pass++ {
		cmd := exec.CommandContext(ctx, bin, args...)
		cmd.Dir = inv.Dir
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		isolate(cmd)
		cmd.WaitDelay = 5 * time.Second
		slog.Debug("Invoking compiler", logfields.Engine(bin), logfields.File(inv.Source), slog.Int("pass", pass))

		err := cmd.Run()
		out.Stdout, out.Stderr = stdout.Bytes(), stderr.Bytes()
		if ctx.Err() != nil {
			return out, b.interrupted(ctx, inv)
		}
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return out, foundationerrors.WrapError(err, foundationerrors.CategoryCompile, "failed to run compiler").
					WithContext("binary", bin).
					Build()
			}
			out.ExitCode = exitErr.ExitCode()
			break
		}
	}

	logPath := filepath.Join(inv.OutDir, inv.JobName+".log")
	if data, err := os.ReadFile(logPath); err == nil {
		out.Log = data
	}
	pdf := filepath.Join(inv.OutDir, inv.JobName+".pdf")
	if out.ExitCode == 0 {
		if _, err := os.Stat(pdf); err == nil {
			out.Artifact = pdf
		}
	}
	return out, nil
}

func (b *BinaryCompiler) interrupted(ctx context.Context, inv Invocation) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return foundationerrors.TimeoutError(fmt.Sprintf("compilation timed out after %s", b.Timeout)).
			WithContext("job", inv.JobName).
			WithContext("timeout", b.Timeout.String()).
			Build()
	}
	return foundationerrors.WrapError(ctx.Err(), foundationerrors.CategoryRuntime, "compilation canceled").
		WithContext("job", inv.JobName).
		Build()
}

// ExitDescription renders an exit code for diagnostics.
func ExitDescription(code int) string {
	return "compiler exited with status " + strconv.Itoa(code)
}
