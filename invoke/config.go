package invoke

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

type yamlInvokeConfig struct {
	Mode struct {
		Debug bool `yaml:"debug"`
	} `yaml:"mode"`
	Trace struct {
		Env string `yaml:"env"`
	} `yaml:"trace"`
}

func optionFromConfigBytes(b []byte) (Option, error) {
	var cfg yamlInvokeConfig
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return nil, err
	}

	return OptionFunc(func(o *Options) {
		o.DebugMode = cfg.Mode.Debug
		if cfg.Trace.Env != "" {
			o.TraceEnv = cfg.Trace.Env
		}
	}), nil
}

// WithConfig parses an invoke YAML document and applies it to Options.
// It panics if the YAML is invalid.
func WithConfig(yamlBytes []byte) Option {
	opt, err := optionFromConfigBytes(yamlBytes)
	if err != nil {
		return OptionFunc(func(*Options) {
			panic(fmt.Errorf("invoke.WithConfig: %w", err))
		})
	}
	return opt
}

// WithConfigFile loads a YAML file and applies it to Options.
// It panics if the file cannot be read or the YAML is invalid.
func WithConfigFile(path string) Option {
	b, err := os.ReadFile(path)
	if err != nil {
		return OptionFunc(func(*Options) {
			panic(fmt.Errorf("invoke.WithConfigFile(%s): %w", path, err))
		})
	}
	return WithConfig(b)
}
