package config

import (
	"git.home.luguber.info/inful/texbuilder/internal/foundation/normalization"
)

// Engine names the LaTeX driver used by the compiler.
type Engine string

const (
	EngineLatexmk  Engine = "latexmk"
	EnginePdflatex Engine = "pdflatex"
	EngineLualatex Engine = "lualatex"
	EngineXelatex  Engine = "xelatex"
)

var engineNormalizer = normalization.New("engine", map[string]Engine{
	"latexmk":  EngineLatexmk,
	"pdflatex": EnginePdflatex,
	"lualatex": EngineLualatex,
	"xelatex":  EngineXelatex,
}, EngineLatexmk)

// NormalizeEngine parses an engine name, rejecting unknown values.
func NormalizeEngine(raw string) (Engine, error) {
	return engineNormalizer.Parse(raw)
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.New("log level", map[string]LogLevel{
	"debug": LogLevelDebug,
	"info":  LogLevelInfo,
	"warn":  LogLevelWarn,
	"error": LogLevelError,
}, LogLevelInfo)

// NormalizeLogLevel maps free-form input onto a level, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}
