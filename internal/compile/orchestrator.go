// Package compile derives per-variant sources from a document, runs the
// external LaTeX toolchain on them and collects the outcomes as Results.
// Compilation failures are data: they land in Result.Diagnostics and are
// never returned as errors.
package compile

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
)

// Publisher ships a finished artifact somewhere else. Failures are reported
// as warnings on the Result.
type Publisher interface {
	Publish(ctx context.Context, artifact string) error
}

// Orchestrator compiles documents variant by variant.
type Orchestrator struct {
	cfg       config.CompileConfig
	compiler  Compiler
	publisher Publisher
	recorder  metrics.Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher uploads every successful artifact.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// NewOrchestrator returns an orchestrator running compiler with cfg.
func NewOrchestrator(cfg config.CompileConfig, compiler Compiler, opts ...Option) *Orchestrator {
	o := &Orchestrator{cfg: cfg, compiler: compiler, recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the compile section in use.
func (o *Orchestrator) Config() config.CompileConfig { return o.cfg }

// Compile produces one Result per requested variant, in request order. A
// variant failing does not prevent the others from compiling. doc is not
// modified.
func (o *Orchestrator) Compile(ctx context.Context, doc document.Model, variants []Variant, mode Mode) []Result {
	results := make([]Result, 0, len(variants))
	for _, v := range variants {
		r, label := o.compileVariant(ctx, doc, v, mode)
		o.recorder.ObserveCompileDuration(string(v), r.Duration)
		o.recorder.IncCompileResult(string(v), label)
		level := slog.LevelInfo
		if !r.Success {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Compiled variant",
			logfields.Path(doc.Path()),
			logfields.Variant(string(v)),
			slog.Bool("success", r.Success),
			logfields.Duration(r.Duration))
		results = append(results, r)
	}
	return results
}

// JobName is the artifact base name of a document variant.
func (o *Orchestrator) JobName(path string, v Variant) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	suffix := o.cfg.Suffix(string(v))
	if suffix == "" {
		suffix = "-" + string(v)
	}
	return base + suffix
}

// ArtifactPath is where the published PDF of a variant lands.
func (o *Orchestrator) ArtifactPath(path string, v Variant) string {
	return filepath.Join(o.outputDir(path), o.JobName(path, v)+".pdf")
}

func (o *Orchestrator) outputDir(path string) string {
	dir := o.cfg.OutputDir
	if dir == "" {
		dir = "."
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(filepath.Dir(path), dir)
}

func (o *Orchestrator) auxDir(path string) string {
	aux := o.cfg.AuxDir
	if aux == "" {
		aux = ".texbuilder"
	}
	if filepath.IsAbs(aux) {
		return aux
	}
	return filepath.Join(filepath.Dir(path), aux)
}

func (o *Orchestrator) compileVariant(ctx context.Context, doc document.Model, v Variant, mode Mode) (Result, metrics.ResultLabel) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return failed(v, start, errorDiagnostic("compilation canceled: "+err.Error())), metrics.ResultCanceled
	}
	if doc.Path() == "" {
		return failed(v, start, errorDiagnostic("document has no path")), metrics.ResultFailed
	}
	src, err := Derive(doc, v)
	if err != nil {
		return failed(v, start, errorDiagnostic(errors.Describe(err))), metrics.ResultFailed
	}

	path, err := filepath.Abs(doc.Path())
	if err != nil {
		return failed(v, start, errorDiagnostic(errors.Describe(err))), metrics.ResultFailed
	}
	job := o.JobName(path, v)
	aux := o.auxDir(path)
	if err := os.MkdirAll(aux, 0o750); err != nil {
		return failed(v, start, errorDiagnostic(fmt.Sprintf("create auxiliary directory: %v", err))), metrics.ResultFailed
	}
	if mode == Deep {
		if err := cleanJob(aux, job); err != nil {
			return failed(v, start, errorDiagnostic(errors.Describe(err))), metrics.ResultFailed
		}
	}
	derived := filepath.Join(aux, job+".tex")
	if err := atomic.WriteFile(derived, bytes.NewReader(src.View())); err != nil {
		return failed(v, start, errorDiagnostic(fmt.Sprintf("write derived source: %v", err))), metrics.ResultFailed
	}
	rel, err := filepath.Rel(filepath.Dir(path), derived)
	if err != nil {
		rel = derived
	}

	out, runErr := o.compiler.Run(ctx, Invocation{
		Dir:     filepath.Dir(path),
		Source:  rel,
		JobName: job,
		OutDir:  aux,
		Deep:    mode == Deep,
	})
	r := Result{Variant: v, Diagnostics: ParseLog(out.Log)}
	label := metrics.ResultFailed
	switch {
	case runErr != nil:
		r.Diagnostics = append(r.Diagnostics, errorDiagnostic(errors.Describe(runErr)))
		switch errors.GetCategory(runErr) {
		case errors.CategoryTimeout:
			label = metrics.ResultTimeout
		case errors.CategoryRuntime:
			label = metrics.ResultCanceled
		}
	case out.ExitCode != 0:
		if len(r.Errors()) == 0 {
			r.Diagnostics = append(r.Diagnostics, errorDiagnostic(ExitDescription(out.ExitCode)+tail(out.Stderr)))
		}
	case out.Artifact == "":
		r.Diagnostics = append(r.Diagnostics, errorDiagnostic("compiler produced no PDF"))
	default:
		dest := o.ArtifactPath(path, v)
		if err := copyFile(out.Artifact, dest); err != nil {
			r.Diagnostics = append(r.Diagnostics, errorDiagnostic(err.Error()))
			break
		}
		r.Artifact = dest
		r.Success = true
		label = metrics.ResultSuccess
		if o.publisher != nil {
			if err := o.publisher.Publish(ctx, dest); err != nil {
				r.Diagnostics = append(r.Diagnostics, Diagnostic{Severity: SeverityWarning, Message: errors.Describe(err)})
			}
		}
	}
	r.Duration = time.Since(start)
	return r, label
}

// cleanJob removes every auxiliary file of job.
func cleanJob(aux, job string) error {
	entries, err := os.ReadDir(aux)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "read auxiliary directory").
			WithContext("path", aux).
			Build()
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), job+".") {
			continue
		}
		if err := os.Remove(filepath.Join(aux, e.Name())); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "remove auxiliary file").
				WithContext("path", filepath.Join(aux, e.Name())).
				Build()
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := atomic.WriteFile(dest, f); err != nil {
		return fmt.Errorf("copy artifact: %w", err)
	}
	return nil
}

func tail(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return ": " + strings.Join(lines, " | ")
}
