package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/dshills/quill/internal/config/loader"
	"github.com/dshills/quill/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "QUILL_"

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Host      HostConfig      `mapstructure:"host"`
	Highlight HighlightConfig `mapstructure:"highlight"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Logging   logging.Config  `mapstructure:"logging"`
}

// ServerConfig configures the client endpoint.
type ServerConfig struct {
	// Listen is the TCP address to serve on.
	Listen string `mapstructure:"listen"`

	// Path is the websocket endpoint.
	Path string `mapstructure:"path"`
}

// WorkspaceConfig configures the initial workspace.
type WorkspaceConfig struct {
	// Path is opened at startup when set.
	Path string `mapstructure:"path"`

	// BrowseRoot is where the project browser opens by default.
	BrowseRoot string `mapstructure:"browseRoot"`
}

// HostConfig configures the compiler host process.
type HostConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`

	// RuntimeEnv names the variable holding the runtime directory that
	// relative commands are resolved in. RuntimeDir is its fallback.
	RuntimeEnv string `mapstructure:"runtimeEnv"`
	RuntimeDir string `mapstructure:"runtimeDir"`
}

// HighlightConfig configures highlight passes.
type HighlightConfig struct {
	// Delay is the quiet period after an edit before a pass runs.
	Delay time.Duration `mapstructure:"delay"`

	// Workers bounds parallel source loading. Zero uses all CPUs.
	Workers int `mapstructure:"workers"`
}

// WatcherConfig configures file system watching.
type WatcherConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Delay   time.Duration `mapstructure:"delay"`
	Ignore  []string      `mapstructure:"ignore"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen: "127.0.0.1:8571",
			Path:   "/ws",
		},
		Host: HostConfig{
			Enabled:    true,
			Command:    "quill-host",
			RuntimeEnv: "QUILL_RUNTIME_HOME",
		},
		Highlight: HighlightConfig{
			Delay: 300 * time.Millisecond,
		},
		Watcher: WatcherConfig{
			Enabled: true,
			Delay:   150 * time.Millisecond,
			Ignore:  []string{".git", "node_modules", "bin", "obj"},
		},
		Logging: logging.DefaultConfig(),
	}
}

// Options selects the sources Load reads.
type Options struct {
	// Path is the config file. Empty skips the file layer; a missing file
	// is not an error.
	Path string

	// FS reads the config file. Defaults to the OS file system.
	FS loader.FileSystem

	// Environ lists environment variables. Defaults to os.Environ.
	Environ func() []string

	// Overrides are applied last, keyed by dotted path.
	Overrides map[string]any
}

// Load merges the config file, the environment and the overrides over the
// defaults, and validates the result.
func Load(opts Options) (Config, error) {
	merged := make(map[string]any)
	if opts.Path != "" {
		fsys := opts.FS
		if fsys == nil {
			fsys = loader.DefaultFS()
		}
		l, err := loader.ForPath(fsys, opts.Path)
		if err != nil {
			return Config{}, err
		}
		file, err := l.Load()
		if err != nil {
			return Config{}, err
		}
		merged = loader.DeepMerge(merged, file)
	}

	env := loader.NewEnvLoader(EnvPrefix)
	if opts.Environ != nil {
		env = loader.NewEnvLoaderWithEnviron(EnvPrefix, opts.Environ)
	}
	fromEnv, err := env.Load()
	if err != nil {
		return Config{}, err
	}
	merged = loader.DeepMerge(merged, fromEnv)

	overrides := make(map[string]any)
	for path, v := range opts.Overrides {
		loader.SetByPath(overrides, path, v)
	}
	merged = loader.DeepMerge(merged, overrides)

	cfg, err := decode(merged)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode applies m over the defaults. Settings m does not mention keep
// their default.
func decode(m map[string]any) (Config, error) {
	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(m); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that would fail later at startup.
func (c Config) Validate() error {
	switch {
	case c.Server.Listen == "":
		return &ValidationError{Path: "server.listen", Message: "must not be empty", Value: c.Server.Listen}
	case len(c.Server.Path) == 0 || c.Server.Path[0] != '/':
		return &ValidationError{Path: "server.path", Message: "must start with /", Value: c.Server.Path}
	case c.Highlight.Delay < 0:
		return &ValidationError{Path: "highlight.delay", Message: "must not be negative", Value: c.Highlight.Delay}
	case c.Highlight.Workers < 0:
		return &ValidationError{Path: "highlight.workers", Message: "must not be negative", Value: c.Highlight.Workers}
	case c.Watcher.Delay < 0:
		return &ValidationError{Path: "watcher.delay", Message: "must not be negative", Value: c.Watcher.Delay}
	case c.Host.Enabled && c.Host.Command == "":
		return &ValidationError{Path: "host.command", Message: "required when the host is enabled", Value: c.Host.Command}
	}
	return nil
}
