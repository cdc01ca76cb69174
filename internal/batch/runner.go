package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/texbuilder/internal/compile"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/docversion"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
)

// Loader opens documents. *document.Registry implements it.
type Loader interface {
	Load(path string) (document.Model, error)
}

// Compiler compiles one document. *compile.Orchestrator implements it.
type Compiler interface {
	Compile(ctx context.Context, doc document.Model, variants []compile.Variant, mode compile.Mode) []compile.Result
}

// Entry is the outcome for one path. Err is set when the document could not
// be processed at all; compile failures live in Results.
type Entry struct {
	Path     string             `json:"path"`
	Version  docversion.Version `json:"version"`
	Title    string             `json:"title,omitempty"`
	DocType  string             `json:"type_document,omitempty"`
	Results  []compile.Result   `json:"results,omitempty"`
	Skipped  string             `json:"skipped,omitempty"`
	Err      error              `json:"-"`
	Duration time.Duration      `json:"-"`
}

// MarshalJSON adds the error message.
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(e)}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}

// Failed reports whether the entry errored or any variant failed.
func (e Entry) Failed() bool {
	if e.Err != nil {
		return true
	}
	for _, r := range e.Results {
		if !r.Success {
			return true
		}
	}
	return false
}

// Run identifies one batch execution.
type Run struct {
	ID       string
	Started  time.Time
	Variants []compile.Variant
	Mode     compile.Mode
}

// Observer is notified of every finished entry and of the end of the run.
// Calls are serialized.
type Observer interface {
	EntryDone(ctx context.Context, run Run, e Entry)
	RunDone(ctx context.Context, run Run, entries []Entry)
}

// Runner drives a Loader and a Compiler over many paths.
type Runner struct {
	loader    Loader
	compiler  Compiler
	workers   int
	observers []Observer
	recorder  metrics.Recorder
	skip      SkipFunc

	notifyMu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the pool size. Values below 1 mean 2.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithObservers appends observers.
func WithObservers(obs ...Observer) Option {
	return func(r *Runner) {
		for _, o := range obs {
			if o != nil {
				r.observers = append(r.observers, o)
			}
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// SkipFunc returns a non-empty reason when a loaded document must not be
// compiled.
type SkipFunc func(path string, doc document.Model) string

// WithSkip sets the skip rule applied after loading.
func WithSkip(fn SkipFunc) Option {
	return func(r *Runner) { r.skip = fn }
}

// Disabled reports whether doc declares compiler: false.
func Disabled(doc document.Model) bool {
	v, err := doc.Value("compiler")
	if err != nil {
		return false
	}
	b, ok := v.Bool()
	return ok && !b
}

// SkipDisabled skips documents that declare compiler: false, except those
// named in explicit.
func SkipDisabled(explicit []string) SkipFunc {
	named := make(map[string]bool, len(explicit))
	for _, p := range explicit {
		named[absPath(p)] = true
	}
	return func(path string, doc document.Model) string {
		if named[absPath(path)] || !Disabled(doc) {
			return ""
		}
		return "compiler: false"
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// NewRunner returns a runner.
func NewRunner(loader Loader, compiler Compiler, opts ...Option) *Runner {
	r := &Runner{loader: loader, compiler: compiler, workers: 2, recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 2
	}
	return r
}

// Run processes paths and returns one entry per path in input order.
//
// Canceling ctx stops dispatch: paths not yet handed to a worker get the
// context error, while jobs already running finish (bounded by the compile
// timeout) and keep their results.
func (r *Runner) Run(ctx context.Context, paths []string, variants []compile.Variant, mode compile.Mode) []Entry {
	run := Run{ID: uuid.NewString(), Started: time.Now(), Variants: variants, Mode: mode}
	entries := make([]Entry, len(paths))
	workers := min(r.workers, max(len(paths), 1))
	r.recorder.SetWorkers(workers)
	slog.Info("Starting batch", logfields.RunID(run.ID), logfields.Count(len(paths)), slog.Int("workers", workers))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entries[i] = r.process(context.WithoutCancel(ctx), w, paths[i], variants, mode)
				r.notifyEntry(ctx, run, entries[i])
			}
		}()
	}

	dispatched := 0
dispatch:
	for i := range paths {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	for i := dispatched; i < len(paths); i++ {
		entries[i] = Entry{Path: paths[i], Err: ctx.Err()}
		r.notifyEntry(ctx, run, entries[i])
	}

	outcome := "success"
	switch {
	case ctx.Err() != nil:
		outcome = "canceled"
	case Failures(entries) > 0:
		outcome = "failed"
	}
	r.recorder.ObserveBatchDuration(time.Since(run.Started))
	r.recorder.IncBatchOutcome(outcome)
	slog.Info("Batch finished",
		logfields.RunID(run.ID),
		logfields.Status(outcome),
		logfields.Count(len(entries)),
		slog.Int("failures", Failures(entries)),
		logfields.Duration(time.Since(run.Started)))

	r.notifyMu.Lock()
	for _, o := range r.observers {
		o.RunDone(ctx, run, entries)
	}
	r.notifyMu.Unlock()
	return entries
}

func (r *Runner) process(ctx context.Context, worker int, path string, variants []compile.Variant, mode compile.Mode) (e Entry) {
	start := time.Now()
	e = Entry{Path: path}
	defer func() {
		if p := recover(); p != nil {
			e.Err = errors.NewError(errors.CategoryInternal, fmt.Sprintf("document processing panicked: %v", p)).
				WithContext("path", path).
				Build()
			e.Duration = time.Since(start)
			slog.Error("Document processing panicked", logfields.Path(path), logfields.Worker(worker), logfields.Error(e.Err))
		}
	}()
	doc, err := r.loader.Load(path)
	if err != nil {
		e.Err = err
		e.Duration = time.Since(start)
		slog.Warn("Document skipped", logfields.Path(path), logfields.Worker(worker), logfields.Error(err))
		return e
	}
	e.Version = doc.Version()
	if v, err := doc.Value("titre"); err == nil {
		e.Title = v.String()
	}
	if v, err := doc.Value("type_document"); err == nil {
		e.DocType = v.String()
	}
	if r.skip != nil {
		if reason := r.skip(path, doc); reason != "" {
			e.Skipped = reason
			e.Duration = time.Since(start)
			slog.Info("Document skipped", logfields.Path(path), logfields.Reason(reason))
			return e
		}
	}
	e.Results = r.compiler.Compile(ctx, doc, variants, mode)
	e.Duration = time.Since(start)
	return e
}

func (r *Runner) notifyEntry(ctx context.Context, run Run, e Entry) {
	if len(r.observers) == 0 {
		return
	}
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	for _, o := range r.observers {
		o.EntryDone(ctx, run, e)
	}
}

// Skips counts skipped entries.
func Skips(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Skipped != "" {
			n++
		}
	}
	return n
}

// Failures counts failed entries.
func Failures(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Failed() {
			n++
		}
	}
	return n
}
