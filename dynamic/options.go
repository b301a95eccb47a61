package dynamic

import (
	"github.com/aura-studio/dynamic"
	"github.com/mohae/deepcopy"
)

// Package names a tunnel package. Tunnel is set only for packages linked
// into the binary.
type Package struct {
	Package string
	Version string
	Tunnel  dynamic.Tunnel `yaml:"-"`
}

// Options configures a Loader.
type Options struct {
	Os       string
	Arch     string
	Compiler string
	Variant  string

	LocalWarehouse  string
	RemoteWarehouse string

	Namespace      string
	DefaultVersion string

	StaticPackages  []*Package
	PreloadPackages []*Package
}

var defaultOptions = &Options{
	StaticPackages:  []*Package{},
	PreloadPackages: []*Package{},
}

// Option changes Options.
type Option interface {
	Apply(*Options)
}

// OptionFunc adapts a function to an Option.
type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) {
	f(o)
}

func NewOptions(opts ...Option) *Options {
	options := deepcopy.Copy(defaultOptions).(*Options)
	for _, opt := range opts {
		opt.Apply(options)
	}
	return options
}

// WithWarehouse sets the local and remote package warehouses.
func WithWarehouse(local, remote string) Option {
	return OptionFunc(func(o *Options) {
		o.LocalWarehouse = local
		o.RemoteWarehouse = remote
	})
}

// WithNamespace sets the package namespace.
func WithNamespace(namespace string) Option {
	return OptionFunc(func(o *Options) {
		o.Namespace = namespace
	})
}

// WithDefaultVersion sets the version used when a reference names none.
func WithDefaultVersion(version string) Option {
	return OptionFunc(func(o *Options) {
		o.DefaultVersion = version
	})
}

// WithStaticPackage registers a tunnel compiled into the binary.
func WithStaticPackage(pkg, version string, tunnel dynamic.Tunnel) Option {
	return OptionFunc(func(o *Options) {
		o.StaticPackages = append(o.StaticPackages, &Package{Package: pkg, Version: version, Tunnel: tunnel})
	})
}

// WithPreload loads the package from the warehouse during Install.
func WithPreload(pkg, version string) Option {
	return OptionFunc(func(o *Options) {
		o.PreloadPackages = append(o.PreloadPackages, &Package{Package: pkg, Version: version})
	})
}
