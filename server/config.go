package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aura-studio/lambda-runtime/config"
	"github.com/aura-studio/lambda-runtime/dynamic"
	"github.com/aura-studio/lambda-runtime/handler"
	"github.com/aura-studio/lambda-runtime/invoke"
	"github.com/aura-studio/lambda-runtime/journal"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"
)

type yamlServerConfig struct {
	Runtime any `yaml:"runtime"`
	Dynamic any `yaml:"dynamic"`
	Journal any `yaml:"journal"`
	Tunnel  struct {
		ContextKey string `yaml:"contextKey"`
	} `yaml:"tunnel"`
	EnvFiles []string `yaml:"envFiles"`
}

// Option changes Options.
type Option interface {
	Apply(*Options)
}

// Options configures Serve.
type Options struct {
	Invoke     []invoke.Option
	Dynamic    []dynamic.Option
	Journal    *journal.Config
	ContextKey string
	EnvFiles   []string
	// Resolver replaces the default registry and tunnel lookup.
	Resolver handler.Resolver
	Logger   *zap.SugaredLogger
}

// OptionFunc adapts a function to an Option.
type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

// WithInvoke appends engine options.
func WithInvoke(opts ...invoke.Option) Option {
	return OptionFunc(func(o *Options) {
		o.Invoke = append(o.Invoke, opts...)
	})
}

// WithDynamic appends package loader options.
func WithDynamic(opts ...dynamic.Option) Option {
	return OptionFunc(func(o *Options) {
		o.Dynamic = append(o.Dynamic, opts...)
	})
}

// WithJournal selects the journal sink.
func WithJournal(cfg *journal.Config) Option {
	return OptionFunc(func(o *Options) {
		o.Journal = cfg
	})
}

// WithContextKey injects invocation metadata into tunnel events under key.
func WithContextKey(key string) Option {
	return OptionFunc(func(o *Options) {
		o.ContextKey = key
	})
}

// WithEnvFiles loads dotenv files before the environment is read.
func WithEnvFiles(files ...string) Option {
	return OptionFunc(func(o *Options) {
		o.EnvFiles = append(o.EnvFiles, files...)
	})
}

// WithResolver replaces the registry and tunnel lookup.
func WithResolver(r handler.Resolver) Option {
	return OptionFunc(func(o *Options) {
		o.Resolver = r
	})
}

// WithLogger sets the process logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return OptionFunc(func(o *Options) {
		o.Logger = logger
	})
}

func subtree(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return yaml.Marshal(v)
}

// ParseServeConfig turns a bootstrap YAML document into an Option. Each
// section is handed to the package that owns it.
func ParseServeConfig(b []byte) (Option, error) {
	var cfg yamlServerConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("server: parse config: %w", err)
	}

	var opts []Option

	if b, err := subtree(cfg.Runtime); err != nil {
		return nil, fmt.Errorf("server: runtime section: %w", err)
	} else if b != nil {
		opts = append(opts, WithInvoke(invoke.WithConfig(b)))
	}

	if b, err := subtree(cfg.Dynamic); err != nil {
		return nil, fmt.Errorf("server: dynamic section: %w", err)
	} else if b != nil {
		opt, err := dynamic.ParseConfig(b)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDynamic(opt))
	}

	if b, err := subtree(cfg.Journal); err != nil {
		return nil, fmt.Errorf("server: journal section: %w", err)
	} else if b != nil {
		jc, err := journal.ParseConfig(b)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithJournal(jc))
	}

	if cfg.Tunnel.ContextKey != "" {
		opts = append(opts, WithContextKey(cfg.Tunnel.ContextKey))
	}
	if len(cfg.EnvFiles) > 0 {
		opts = append(opts, WithEnvFiles(cfg.EnvFiles...))
	}

	return OptionFunc(func(o *Options) {
		for _, opt := range opts {
			opt.Apply(o)
		}
	}), nil
}

// WithServeConfig applies a bootstrap YAML document. It panics if the
// document is invalid.
func WithServeConfig(yamlBytes []byte) Option {
	opt, err := ParseServeConfig(yamlBytes)
	if err != nil {
		panic(fmt.Errorf("server.WithServeConfig: %w", err))
	}
	return opt
}

// WithServeConfigFile loads a YAML file and applies it.
func WithServeConfigFile(path string) Option {
	b, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("server.WithServeConfigFile(%s): %w", path, err))
	}
	return WithServeConfig(b)
}

// DefaultServeConfigCandidates returns relative paths that are checked, in
// order, when searching for a default config.
func DefaultServeConfigCandidates() []string {
	return []string{
		"runtime.yaml",
		"runtime.yml",
		"bootstrap.yaml",
		"bootstrap.yml",
	}
}

// FindDefaultServeConfigFile searches the working directory, then the
// executable's directory, then LAMBDA_TASK_ROOT.
func FindDefaultServeConfigFile() (string, error) {
	candidates := DefaultServeConfigCandidates()

	dirs := []string{"."}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if root := os.Getenv(config.EnvTaskRoot); root != "" {
		dirs = append(dirs, root)
	}

	for _, dir := range dirs {
		for _, rel := range candidates {
			p := rel
			if dir != "." {
				p = filepath.Join(dir, rel)
			}
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return p, nil
			}
		}
	}

	return "", fmt.Errorf("server config not found (expected %v)", candidates)
}

// WithDefaultServeConfigFile finds and loads the default config file.
// It panics if none is found.
func WithDefaultServeConfigFile() Option {
	p, err := FindDefaultServeConfigFile()
	if err != nil {
		panic(fmt.Errorf("server.WithDefaultServeConfigFile: %w", err))
	}
	return WithServeConfigFile(p)
}
