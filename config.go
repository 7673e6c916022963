package workbox

import (
	"time"

	"github.com/happyhackingspace/workbox/pkg/event"
	"github.com/happyhackingspace/workbox/pkg/llm"
	"github.com/happyhackingspace/workbox/pkg/metadata"
)

// Config holds workspace configuration.
type Config struct {
	// AccessTimeMode is the simulated mount policy for access times.
	AccessTimeMode metadata.Mode

	// MaxFileSize is the largest file whose content is loaded during
	// hydration; larger files get a placeholder.
	MaxFileSize int64

	// MaxArchiveSize is the largest archive whose exact bytes are kept
	// base64-encoded in the virtual file system.
	MaxArchiveSize int64

	// ContextWindow is the maximum context length for patch anchoring.
	ContextWindow int

	// ShellPath is the shell used for command execution.
	ShellPath string

	// SandboxBaseDir is where sandbox directories are created. Defaults to
	// the system temp directory.
	SandboxBaseDir string

	// ExitCodePolicy treats policy-listed non-zero exit codes (grep's 1,
	// timeout's 124, ...) as success instead of rolling back.
	ExitCodePolicy bool

	// StrictMetadata makes metadata application failures fatal.
	StrictMetadata bool

	// ReadChunkLines caps how many lines a single read returns.
	ReadChunkLines int

	// Logger for debug output.
	Logger Logger

	// EventHandler for global events.
	EventHandler event.EventHandler

	// LLM generates truncation summaries and reapplied file content.
	// Optional; without it those features degrade gracefully.
	LLM llm.Service
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AccessTimeMode: metadata.Relatime,
		MaxFileSize:    50 * 1024 * 1024,
		MaxArchiveSize: 10 * 1024 * 1024,
		ContextWindow:  5,
		ShellPath:      "/bin/bash",
		ExitCodePolicy: true,
		ReadChunkLines: 250,
		Logger:         NopLogger{},
	}
}

// Option configures a workspace.
type Option func(*Config)

// WithAccessTimeMode sets the access-time mount policy.
func WithAccessTimeMode(mode metadata.Mode) Option {
	return func(c *Config) {
		c.AccessTimeMode = mode
	}
}

// WithMaxFileSize sets the content-loading size threshold.
func WithMaxFileSize(n int64) Option {
	return func(c *Config) {
		c.MaxFileSize = n
	}
}

// WithMaxArchiveSize sets the archive preservation size threshold.
func WithMaxArchiveSize(n int64) Option {
	return func(c *Config) {
		c.MaxArchiveSize = n
	}
}

// WithContextWindow sets the patch engine's maximum context length.
func WithContextWindow(n int) Option {
	return func(c *Config) {
		c.ContextWindow = n
	}
}

// WithShell sets the shell used for command execution.
func WithShell(path string) Option {
	return func(c *Config) {
		c.ShellPath = path
	}
}

// WithSandboxBaseDir sets where sandbox directories are created.
func WithSandboxBaseDir(dir string) Option {
	return func(c *Config) {
		c.SandboxBaseDir = dir
	}
}

// WithoutExitCodePolicy disables the non-zero-exit success exemptions, so
// every non-zero exit rolls the workspace back.
func WithoutExitCodePolicy() Option {
	return func(c *Config) {
		c.ExitCodePolicy = false
	}
}

// WithStrictMetadata makes metadata write failures fatal.
func WithStrictMetadata() Option {
	return func(c *Config) {
		c.StrictMetadata = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithEventHandler sets a global event handler.
func WithEventHandler(h event.EventHandler) Option {
	return func(c *Config) {
		c.EventHandler = h
	}
}

// WithLLM sets the text-generation service.
func WithLLM(s llm.Service) Option {
	return func(c *Config) {
		c.LLM = s
	}
}

// Logger interface for debug output.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debug(msg string, keysAndValues ...any) {}
func (NopLogger) Info(msg string, keysAndValues ...any)  {}
func (NopLogger) Warn(msg string, keysAndValues ...any)  {}
func (NopLogger) Error(msg string, keysAndValues ...any) {}

// reapplyTimeout bounds the LLM call that regenerates full file content.
const reapplyTimeout = 180 * time.Second
