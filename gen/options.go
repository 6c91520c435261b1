package gen

import (
	"runtime"
	"time"

	"github.com/goliatone/go-inherit/schema"
)

const (
	// DefaultRuntimePackage is the import path of the runtime helpers.
	DefaultRuntimePackage = "github.com/goliatone/go-inherit"
	// DefaultHeader is the first line of every generated file.
	DefaultHeader = "// Code generated by inheritgen. DO NOT EDIT."

	runtimeName       = "inherit"
	directivePrefix   = "//inherit:"
	generateDirective = "generate"
)

// Option configures reading and generation.
type Option func(*config)

type config struct {
	types       []string
	tagKey      string
	runtimePath string
	header      string
	logger      Logger
	concurrency int
	skipFiles   func(name string) bool
}

func newConfig(opts []Option) config {
	cfg := config{
		tagKey:      schema.DefaultTagKey,
		runtimePath: DefaultRuntimePackage,
		header:      DefaultHeader,
		logger:      noopLogger{},
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.concurrency < 1 {
		cfg.concurrency = 1
	}
	return cfg
}

// WithTypes selects records by name instead of by directive.
func WithTypes(names ...string) Option {
	return func(cfg *config) {
		cfg.types = append(cfg.types, names...)
	}
}

// WithTagKey sets the struct tag key holding annotations.
func WithTagKey(key string) Option {
	return func(cfg *config) {
		if key != "" {
			cfg.tagKey = key
		}
	}
}

// WithRuntimePackage sets the import path of the runtime helpers. The
// package is always imported under the name inherit.
func WithRuntimePackage(path string) Option {
	return func(cfg *config) {
		if path != "" {
			cfg.runtimePath = path
		}
	}
}

// WithHeader replaces the generated file header comment.
func WithHeader(header string) Option {
	return func(cfg *config) {
		cfg.header = header
	}
}

// WithLogger receives one event per synthesized record.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithConcurrency bounds how many records are synthesized at once.
func WithConcurrency(n int) Option {
	return func(cfg *config) {
		cfg.concurrency = n
	}
}

// WithSkipFiles excludes source files from ParseDir, for example a previous
// generated output.
func WithSkipFiles(skip func(name string) bool) Option {
	return func(cfg *config) {
		cfg.skipFiles = skip
	}
}

// Event describes one record synthesis.
type Event struct {
	Record   string
	Fields   int
	Duration time.Duration
	Err      error
}

// Logger records synthesis events.
type Logger interface {
	LogSynthesis(Event)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

// LogSynthesis implements Logger.
func (f LoggerFunc) LogSynthesis(event Event) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogSynthesis(Event) {}
