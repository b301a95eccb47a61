package dynamic

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

type yamlConfig struct {
	Toolchain struct {
		OS       string `yaml:"os"`
		Arch     string `yaml:"arch"`
		Compiler string `yaml:"compiler"`
		Variant  string `yaml:"variant"`
	} `yaml:"toolchain"`
	Warehouse struct {
		Local  string `yaml:"local"`
		Remote string `yaml:"remote"`
	} `yaml:"warehouse"`
	Package struct {
		Namespace      string `yaml:"namespace"`
		DefaultVersion string `yaml:"defaultVersion"`
		Preload        []struct {
			Package string `yaml:"package"`
			Version string `yaml:"version"`
		} `yaml:"preload"`
	} `yaml:"package"`
}

// ParseConfig turns a dynamic YAML document into an Option.
func ParseConfig(b []byte) (Option, error) {
	var cfg yamlConfig
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return nil, fmt.Errorf("dynamic: parse config: %w", err)
	}

	return OptionFunc(func(o *Options) {
		o.Os = cfg.Toolchain.OS
		o.Arch = cfg.Toolchain.Arch
		o.Compiler = cfg.Toolchain.Compiler
		o.Variant = cfg.Toolchain.Variant
		o.LocalWarehouse = cfg.Warehouse.Local
		o.RemoteWarehouse = cfg.Warehouse.Remote
		o.Namespace = cfg.Package.Namespace
		o.DefaultVersion = cfg.Package.DefaultVersion

		for _, p := range cfg.Package.Preload {
			if p.Package == "" {
				continue
			}
			o.PreloadPackages = append(o.PreloadPackages, &Package{Package: p.Package, Version: p.Version})
		}
	}), nil
}

// WithConfig applies a YAML document. It panics if the YAML is invalid.
func WithConfig(b []byte) Option {
	opt, err := ParseConfig(b)
	if err != nil {
		return OptionFunc(func(*Options) {
			panic(err)
		})
	}
	return opt
}

// WithConfigFile applies a YAML file. It panics if the file cannot be read.
func WithConfigFile(path string) Option {
	b, err := os.ReadFile(path)
	if err != nil {
		return OptionFunc(func(*Options) {
			panic(fmt.Errorf("dynamic: WithConfigFile(%s): %w", path, err))
		})
	}
	return WithConfig(b)
}
