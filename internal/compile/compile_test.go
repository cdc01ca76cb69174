package compile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

const v2Doc = `\documentclass{upsti}
%### BEGIN metadonnees_yaml ###
% titre: Cinématique
% type_document: td
% afficher_corrections: false
%### END metadonnees_yaml ###
\begin{document}
Corps
\end{document}
`

// fakeCompiler records invocations and writes a PDF and a log for every job
// that is not listed in fail.
type fakeCompiler struct {
	mu       sync.Mutex
	calls    []Invocation
	sources  map[string]string
	fail     map[string]string // job -> log content
	runErr   map[string]error
	noOutput bool
}

func newFakeCompiler() *fakeCompiler {
	return &fakeCompiler{sources: map[string]string{}, fail: map[string]string{}, runErr: map[string]error{}}
}

func (f *fakeCompiler) Run(_ context.Context, inv Invocation) (Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inv)
	data, err := os.ReadFile(filepath.Join(inv.Dir, inv.Source))
	if err != nil {
		return Outcome{}, err
	}
	f.sources[inv.JobName] = string(data)
	if err := f.runErr[inv.JobName]; err != nil {
		return Outcome{}, err
	}
	if log, ok := f.fail[inv.JobName]; ok {
		return Outcome{ExitCode: 1, Log: []byte(log), Stderr: []byte("fatal")}, nil
	}
	if f.noOutput {
		return Outcome{}, nil
	}
	pdf := filepath.Join(inv.OutDir, inv.JobName+".pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.5 "+inv.JobName), 0o600); err != nil {
		return Outcome{}, err
	}
	return Outcome{Artifact: pdf, Log: []byte("LaTeX Warning: Reference `fig' on page 1 undefined on input line 8.\n")}, nil
}

func testConfig() config.CompileConfig {
	return config.Defaults().Compile
}

func loadDoc(t *testing.T) document.Model {
	t.Helper()
	path := filepath.Join(t.TempDir(), "TD1.tex")
	require.NoError(t, os.WriteFile(path, []byte(v2Doc), 0o600))
	doc, err := document.NewRegistry().Load(path)
	require.NoError(t, err)
	return doc
}

func TestCompile_ResultsInRequestOrder(t *testing.T) {
	doc := loadDoc(t)
	fc := newFakeCompiler()
	orch := NewOrchestrator(testConfig(), fc)

	results := orch.Compile(context.Background(), doc, []Variant{Teacher, Student}, Normal)
	require.Len(t, results, 2)
	assert.Equal(t, Teacher, results[0].Variant)
	assert.Equal(t, Student, results[1].Variant)

	dir := filepath.Dir(doc.Path())
	for _, r := range results {
		assert.True(t, r.Success, "%+v", r)
		require.FileExists(t, r.Artifact)
		assert.Equal(t, dir, filepath.Dir(r.Artifact))
		require.Len(t, r.Diagnostics, 1)
		assert.Equal(t, SeverityWarning, r.Diagnostics[0].Severity)
		assert.Equal(t, 8, r.Diagnostics[0].Line)
	}
	assert.Equal(t, filepath.Join(dir, "TD1-Prof.pdf"), results[0].Artifact)
	assert.Equal(t, filepath.Join(dir, "TD1-Eleve.pdf"), results[1].Artifact)
}

func TestCompile_DerivationFlagsAndCallerUntouched(t *testing.T) {
	doc := loadDoc(t)
	before := doc.Source().String()
	fc := newFakeCompiler()
	orch := NewOrchestrator(testConfig(), fc)

	orch.Compile(context.Background(), doc, []Variant{Student, Teacher, Accessible}, Normal)

	assert.Contains(t, fc.sources["TD1-Prof"], "% afficher_corrections: true\n")
	assert.Contains(t, fc.sources["TD1-Eleve"], "% afficher_corrections: false\n")
	assert.Contains(t, fc.sources["TD1-Eleve"], "% document_a_trous: true\n")
	assert.Contains(t, fc.sources["TD1-Accessible"], "% version_accessible: true\n")

	assert.Equal(t, before, doc.Source().String())
	assert.False(t, doc.Dirty())
	data, err := os.ReadFile(doc.Path())
	require.NoError(t, err)
	assert.Equal(t, v2Doc, string(data))
}

func TestCompile_VariantIndependence(t *testing.T) {
	doc := loadDoc(t)
	fc := newFakeCompiler()
	fc.fail["TD1-Prof"] = "! Undefined control sequence.\nl.12 \\foo\n"
	orch := NewOrchestrator(testConfig(), fc)

	results := orch.Compile(context.Background(), doc, []Variant{Student, Teacher}, Normal)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)

	assert.False(t, results[1].Success)
	assert.Empty(t, results[1].Artifact)
	assert.Equal(t, []Diagnostic{{Severity: SeverityError, Message: "Undefined control sequence.", Line: 12}}, results[1].Diagnostics)
}

func TestCompile_FailureWithoutLogReportsExitStatus(t *testing.T) {
	doc := loadDoc(t)
	fc := newFakeCompiler()
	fc.fail["TD1-Eleve"] = ""
	results := NewOrchestrator(testConfig(), fc).Compile(context.Background(), doc, []Variant{Student}, Normal)

	require.Len(t, results, 1)
	require.Len(t, results[0].Errors(), 1)
	assert.Equal(t, "compiler exited with status 1: fatal", results[0].Errors()[0].Message)
}

func TestCompile_TimeoutBecomesDiagnostic(t *testing.T) {
	doc := loadDoc(t)
	fc := newFakeCompiler()
	fc.runErr["TD1-Eleve"] = errors.TimeoutError("compilation timed out after 1s").Build()
	results := NewOrchestrator(testConfig(), fc).Compile(context.Background(), doc, []Variant{Student, Teacher}, Normal)

	assert.False(t, results[0].Success)
	assert.Equal(t, "compilation timed out after 1s", results[0].Errors()[0].Message)
	assert.True(t, results[1].Success)
}

func TestCompile_UnknownVariantAndNoPDF(t *testing.T) {
	doc := loadDoc(t)
	fc := newFakeCompiler()
	fc.noOutput = true
	results := NewOrchestrator(testConfig(), fc).Compile(context.Background(), doc, []Variant{"braille", Student}, Normal)

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Errors()[0].Message, `unknown variant "braille"`)
	assert.False(t, results[1].Success)
	assert.Equal(t, "compiler produced no PDF", results[1].Errors()[0].Message)
	assert.Len(t, fc.calls, 1)
}

func TestCompile_DeepCleansAuxiliaryFiles(t *testing.T) {
	doc := loadDoc(t)
	cfg := testConfig()
	aux := filepath.Join(filepath.Dir(doc.Path()), cfg.AuxDir)
	require.NoError(t, os.MkdirAll(aux, 0o750))
	stale := filepath.Join(aux, "TD1-Eleve.aux")
	other := filepath.Join(aux, "TD1-Prof.aux")
	require.NoError(t, os.WriteFile(stale, nil, 0o600))
	require.NoError(t, os.WriteFile(other, nil, 0o600))

	fc := newFakeCompiler()
	orch := NewOrchestrator(cfg, fc)

	orch.Compile(context.Background(), doc, []Variant{Student}, Normal)
	assert.FileExists(t, stale)
	assert.False(t, fc.calls[0].Deep)

	orch.Compile(context.Background(), doc, []Variant{Student}, Deep)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, other)
	assert.True(t, fc.calls[1].Deep)
	assert.Equal(t, filepath.Join(cfg.AuxDir, "TD1-Eleve.tex"), fc.calls[1].Source)
}

func TestCompile_CanceledContext(t *testing.T) {
	doc := loadDoc(t)
	fc := newFakeCompiler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewOrchestrator(testConfig(), fc).Compile(ctx, doc, []Variant{Student}, Normal)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Empty(t, fc.calls)
}

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, artifact string) error {
	p.published = append(p.published, artifact)
	return p.err
}

func TestCompile_PublisherWarning(t *testing.T) {
	doc := loadDoc(t)
	pub := &recordingPublisher{err: errors.UploadError("upload failed after 3 retries").Build()}
	results := NewOrchestrator(testConfig(), newFakeCompiler(), WithPublisher(pub)).
		Compile(context.Background(), doc, []Variant{Student}, Normal)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, []string{results[0].Artifact}, pub.published)
	last := results[0].Diagnostics[len(results[0].Diagnostics)-1]
	assert.Equal(t, Diagnostic{Severity: SeverityWarning, Message: "upload failed after 3 retries"}, last)
}

func TestCompile_LegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cours.tex")
	legacy := "\\documentclass{article}\n\\usepackage{UPSTI_Document}\n\\newcommand{\\UPSTIidTypeDocument}{1}\n\\newcommand{\\UPSTItitre}{Statique}\n\\begin{document}\n\\end{document}\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))
	doc, err := document.NewRegistry().Load(path)
	require.NoError(t, err)

	fc := newFakeCompiler()
	results := NewOrchestrator(testConfig(), fc).Compile(context.Background(), doc, []Variant{Teacher}, Normal)
	require.True(t, results[0].Success)
	assert.Contains(t, fc.sources["Cours-Prof"], "\\newcommand{\\UPSTIafficherCorrections}{1}\n")
}

func TestParseVariantsAndMode(t *testing.T) {
	vs, err := ParseVariants([]string{"student", "accessible"})
	require.NoError(t, err)
	assert.Equal(t, []Variant{Student, Accessible}, vs)

	_, err = ParseVariants([]string{"braille"})
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	m, err := ParseMode("deep")
	require.NoError(t, err)
	assert.Equal(t, Deep, m)
	assert.Equal(t, "deep", m.String())
	_, err = ParseMode("fast")
	assert.Error(t, err)
}

func TestResultJSON(t *testing.T) {
	r := Result{Variant: Student, Success: true, Artifact: "/out/a.pdf", Duration: 1500 * time.Millisecond}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"variant":"student","artifact":"/out/a.pdf","success":true,"diagnostics":[],"duration_ms":1500}`, string(data))

	var back Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.Duration, back.Duration)
	assert.Equal(t, r.Artifact, back.Artifact)
}

func TestJobNameFallsBackToVariantName(t *testing.T) {
	cfg := testConfig()
	cfg.Suffixes = nil
	cfg.OutputDir = "/srv/pdf"
	orch := NewOrchestrator(cfg, newFakeCompiler())
	assert.Equal(t, "TD1-student", orch.JobName("/docs/TD1.tex", Student))
	assert.Equal(t, "/srv/pdf/TD1-student.pdf", orch.ArtifactPath("/docs/TD1.tex", Student))
	assert.True(t, strings.HasSuffix(orch.ArtifactPath("/docs/TD1.tex", Teacher), "TD1-teacher.pdf"))
}
