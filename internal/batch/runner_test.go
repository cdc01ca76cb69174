package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/compile"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/docversion"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

func v2Source(title string) string {
	return "\\documentclass{upsti}\n%### BEGIN metadonnees_yaml ###\n% titre: " + title +
		"\n% type_document: td\n%### END metadonnees_yaml ###\n\\begin{document}\n\\end{document}\n"
}

type fakeCompiler struct {
	calls   atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
	started chan string
}

func (f *fakeCompiler) Compile(ctx context.Context, doc document.Model, variants []compile.Variant, _ compile.Mode) []compile.Result {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.started != nil {
		f.started <- doc.Path()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	out := make([]compile.Result, 0, len(variants))
	for _, v := range variants {
		out = append(out, compile.Result{Variant: v, Success: ctx.Err() == nil, Artifact: doc.Path() + ".pdf"})
	}
	return out
}

func writeCorpus(t *testing.T, n int) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i := range n {
		p := filepath.Join(dir, fmt.Sprintf("doc%02d.tex", i))
		require.NoError(t, os.WriteFile(p, []byte(v2Source(fmt.Sprintf("Document %d", i))), 0o600))
		paths = append(paths, p)
	}
	return dir, paths
}

type recordingObserver struct {
	mu      sync.Mutex
	entries []Entry
	runs    []Run
	final   []Entry
}

func (o *recordingObserver) EntryDone(_ context.Context, _ Run, e Entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, e)
}

func (o *recordingObserver) RunDone(_ context.Context, run Run, entries []Entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, run)
	o.final = entries
}

func TestRun_IsolatesFailures(t *testing.T) {
	dir, paths := writeCorpus(t, 5)
	bad := filepath.Join(dir, "bad.tex")
	require.NoError(t, os.WriteFile(bad, []byte("\\documentclass{article}\n"), 0o600))
	input := append([]string{paths[0], paths[1], bad}, paths[2:]...)

	fc := &fakeCompiler{}
	obs := &recordingObserver{}
	r := NewRunner(document.NewRegistry(), fc, WithWorkers(3), WithObservers(obs))

	entries := r.Run(context.Background(), input, []compile.Variant{compile.Student}, compile.Normal)
	require.Len(t, entries, 6)
	for i, e := range entries {
		assert.Equal(t, input[i], e.Path, "input order preserved")
	}
	assert.Equal(t, 1, Failures(entries))
	assert.True(t, errors.HasCategory(entries[2].Err, errors.CategoryVersion))
	assert.Equal(t, docversion.V2, entries[0].Version)
	assert.Equal(t, "Document 0", entries[0].Title)
	assert.Equal(t, "td", entries[0].DocType)
	assert.Equal(t, int32(5), fc.calls.Load())

	assert.Len(t, obs.entries, 6)
	require.Len(t, obs.runs, 1)
	assert.NotEmpty(t, obs.runs[0].ID)
	assert.Equal(t, entries, obs.final)
}

func TestRun_BoundsConcurrency(t *testing.T) {
	_, paths := writeCorpus(t, 8)
	fc := &fakeCompiler{delay: 20 * time.Millisecond}
	r := NewRunner(document.NewRegistry(), fc, WithWorkers(2))

	entries := r.Run(context.Background(), paths, []compile.Variant{compile.Student, compile.Teacher}, compile.Normal)
	assert.Len(t, entries, 8)
	assert.Zero(t, Failures(entries))
	assert.LessOrEqual(t, fc.peak.Load(), int32(2))
	for _, e := range entries {
		require.Len(t, e.Results, 2)
		assert.Equal(t, compile.Student, e.Results[0].Variant)
	}
}

func TestRun_CancellationStopsDispatch(t *testing.T) {
	_, paths := writeCorpus(t, 6)
	fc := &fakeCompiler{started: make(chan string, 6), delay: 50 * time.Millisecond}
	r := NewRunner(document.NewRegistry(), fc, WithWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-fc.started
		cancel()
	}()
	entries := r.Run(ctx, paths, []compile.Variant{compile.Student}, compile.Normal)

	require.Len(t, entries, 6)
	// The in-flight job completes with its results.
	require.NoError(t, entries[0].Err)
	require.Len(t, entries[0].Results, 1)
	assert.True(t, entries[0].Results[0].Success)

	canceled := 0
	for _, e := range entries[1:] {
		if e.Err != nil {
			assert.ErrorIs(t, e.Err, context.Canceled)
			canceled++
		}
	}
	assert.GreaterOrEqual(t, canceled, 4)
	assert.Less(t, int(fc.calls.Load()), 6)
}

func TestRun_AlreadyCanceled(t *testing.T) {
	_, paths := writeCorpus(t, 3)
	fc := &fakeCompiler{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := NewRunner(document.NewRegistry(), fc).Run(ctx, paths, []compile.Variant{compile.Student}, compile.Normal)
	require.Len(t, entries, 3)
	assert.Equal(t, 3, Failures(entries))
	assert.Zero(t, fc.calls.Load())
}

func TestRun_Empty(t *testing.T) {
	entries := NewRunner(document.NewRegistry(), &fakeCompiler{}, WithWorkers(0)).
		Run(context.Background(), nil, nil, compile.Normal)
	assert.Empty(t, entries)
}

func TestEntry_JSON(t *testing.T) {
	e := Entry{Path: "a.tex", Version: docversion.LegacyV1, Err: fmt.Errorf("boom")}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"a.tex","version":"LEGACY_V1","error":"boom"}`, string(data))
}

func TestRun_FlowMetadataIsIsolated(t *testing.T) {
	dir, paths := writeCorpus(t, 2)
	flow := filepath.Join(dir, "flow.tex")
	require.NoError(t, os.WriteFile(flow, []byte("\\documentclass{upsti}\n%### BEGIN metadonnees_yaml ###\n"+
		"% {titre: Flow, type_document: td}\n%### END metadonnees_yaml ###\n"), 0o600))
	input := append(paths, flow)

	fc := &fakeCompiler{}
	entries := NewRunner(document.NewRegistry(), fc).Run(context.Background(), input, []compile.Variant{compile.Student}, compile.Normal)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, Failures(entries))
	assert.True(t, errors.HasCategory(entries[2].Err, errors.CategoryParse), "got %v", entries[2].Err)
	assert.Equal(t, int32(2), fc.calls.Load())
}

type panickingLoader struct{}

func (panickingLoader) Load(string) (document.Model, error) { panic("broken loader") }

func TestRun_PanicBecomesEntryError(t *testing.T) {
	entries := NewRunner(panickingLoader{}, &fakeCompiler{}).
		Run(context.Background(), []string{"a.tex", "b.tex"}, []compile.Variant{compile.Student}, compile.Normal)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, errors.HasCategory(e.Err, errors.CategoryInternal), "got %v", e.Err)
		assert.Contains(t, e.Err.Error(), "broken loader")
	}
}

func TestRun_SkipDisabled(t *testing.T) {
	dir, paths := writeCorpus(t, 1)
	off := filepath.Join(dir, "off.tex")
	named := filepath.Join(dir, "named.tex")
	disabled := strings.Replace(v2Source("Brouillon"), "% type_document: td\n", "% type_document: td\n% compiler: false\n", 1)
	require.NoError(t, os.WriteFile(off, []byte(disabled), 0o600))
	require.NoError(t, os.WriteFile(named, []byte(disabled), 0o600))
	input := []string{paths[0], off, named}

	fc := &fakeCompiler{}
	r := NewRunner(document.NewRegistry(), fc, WithSkip(SkipDisabled([]string{named})))
	entries := r.Run(context.Background(), input, []compile.Variant{compile.Student}, compile.Normal)
	require.Len(t, entries, 3)

	assert.Empty(t, entries[0].Skipped)
	assert.Equal(t, "compiler: false", entries[1].Skipped)
	assert.Empty(t, entries[1].Results)
	assert.False(t, entries[1].Failed())
	assert.Equal(t, "Brouillon", entries[1].Title)
	assert.Empty(t, entries[2].Skipped, "explicitly named documents are compiled")
	assert.Equal(t, 1, Skips(entries))
	assert.Zero(t, Failures(entries))
	assert.Equal(t, int32(2), fc.calls.Load())
}
