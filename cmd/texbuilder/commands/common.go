// Package commands implements the texbuilder command-line interface.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/texbuilder/internal/annuaire"
	"git.home.luguber.info/inful/texbuilder/internal/batch"
	"git.home.luguber.info/inful/texbuilder/internal/compile"
	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/document"
	"git.home.luguber.info/inful/texbuilder/internal/events"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
	"git.home.luguber.info/inful/texbuilder/internal/upload"
)

// Global is shared state bound into every command's Run method.
type Global struct {
	Config config.Config
	Logger *slog.Logger
	// Stdout receives command output; defaults to os.Stdout.
	Stdout io.Writer
	// Compiler replaces the LaTeX toolchain when set.
	Compiler compile.Compiler
	// Environ feeds the environment configuration layer; defaults to os.Environ.
	Environ []string
}

func (g *Global) out() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" type:"path"`
	EnvFile string           `name:"env-file" help:"Secrets file holding TEXBUILDER_* variables" default:".env" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Detect  DetectCmd  `cmd:"" help:"Report the metadata format of documents"`
	Info    InfoCmd    `cmd:"" help:"Show metadata, zones and warnings of a document"`
	Get     GetCmd     `cmd:"" help:"Print one metadata value"`
	Set     SetCmd     `cmd:"" help:"Change one metadata value and save the document"`
	Delete  DeleteCmd  `cmd:"" help:"Remove one metadata value and save the document"`
	Compile CompileCmd `cmd:"" help:"Compile documents or directories into PDF variants"`
	Poly    PolyCmd    `cmd:"" help:"Build or initialize aggregated documents"`
	Watch   WatchCmd   `cmd:"" help:"Recompile documents whenever they are saved"`
	Daemon  DaemonCmd  `cmd:"" help:"Run periodic batch compilations"`
	Index   IndexCmd   `cmd:"" help:"Query the document index"`
	List    ListCmd    `cmd:"" help:"List sources with their format and compile state"`
	Show    VersionCmd `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply runs after flag parsing; it loads configuration and sets up logging once.
func (c *CLI) AfterApply(g *Global) error {
	environ := g.Environ
	if environ == nil {
		environ = os.Environ()
	}
	cfg, err := config.Load(config.LoadOptions{File: c.Config, EnvFile: c.EnvFile, Environ: environ})
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to load configuration").
			WithContext("path", c.Config).
			Build()
	}
	level := levelFor(cfg.Logging.Level)
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	g.Config = cfg
	g.Logger = logger
	return nil
}

func levelFor(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// toolchain is the set of collaborators a compiling command needs.
type toolchain struct {
	registry *document.Registry
	orch     *compile.Orchestrator
	recorder *metrics.PrometheusRecorder
	index    *annuaire.Store
	events   *events.Publisher
}

func (g *Global) toolchain() (*toolchain, error) {
	recorder := metrics.NewPrometheusRecorder(prom.NewRegistry())
	compiler := g.Compiler
	if compiler == nil {
		compiler = compile.NewBinaryCompiler(g.Config.Compile)
	}
	opts := []compile.Option{compile.WithRecorder(recorder)}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	if pub := upload.FromConfig(g.Config.Upload, wd, recorder); pub != nil {
		opts = append(opts, compile.WithPublisher(pub))
	}
	return &toolchain{
		registry: document.NewRegistry(),
		orch:     compile.NewOrchestrator(g.Config.Compile, compiler, opts...),
		recorder: recorder,
	}, nil
}

// runner opens the configured observers and returns a batch runner that
// also notifies extra. Documents declaring compiler: false are skipped unless
// named in explicit.
func (t *toolchain) runner(cfg config.Config, explicit []string, extra ...batch.Observer) (*batch.Runner, error) {
	observers := slices.Clone(extra)
	if cfg.Index.Path != "" {
		store, err := annuaire.Open(cfg.Index.Path)
		if err != nil {
			return nil, err
		}
		t.index = store
		observers = append(observers, store)
	}
	pub, err := events.Connect(cfg.Events)
	if err != nil {
		t.close()
		return nil, err
	}
	if pub != nil {
		t.events = pub
		observers = append(observers, pub)
	}
	return batch.NewRunner(t.registry, t.orch,
		batch.WithWorkers(cfg.Batch.Workers),
		batch.WithObservers(observers...),
		batch.WithRecorder(t.recorder),
		batch.WithSkip(batch.SkipDisabled(explicit)),
	), nil
}

// flushMetrics writes the textfile export when configured.
func (t *toolchain) flushMetrics(cfg config.MetricsConfig) {
	if cfg.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.Textfile, t.recorder.Registry()); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(cfg.Textfile), logfields.Error(err))
	}
}

func (t *toolchain) close() {
	if t.index != nil {
		if err := t.index.Close(); err != nil {
			slog.Warn("Failed to close index", logfields.Error(err))
		}
		t.index = nil
	}
	if t.events != nil {
		t.events.Close()
		t.events = nil
	}
}

// expandPaths turns files and directories into a sorted, de-duplicated list
// of sources.
func expandPaths(args, excludes []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryNotFound, "path not found").
				WithContext("path", arg).
				Build()
		}
		if !info.IsDir() {
			abs, err := filepath.Abs(arg)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", arg, err)
			}
			out = append(out, abs)
			continue
		}
		found, err := batch.Discover(arg, excludes)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			abs, err := filepath.Abs(p)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", p, err)
			}
			out = append(out, abs)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// explicitFiles returns the args that name files rather than directories.
func explicitFiles(args []string) []string {
	var out []string
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && !info.IsDir() {
			out = append(out, arg)
		}
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
