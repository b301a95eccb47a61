// Package dynamic wires aura-studio/dynamic so function code shipped as
// tunnel packages can serve invocations.
package dynamic

import (
	"fmt"

	"github.com/aura-studio/dynamic"
	"go.uber.org/zap"
)

// Loader resolves packages through aura-studio/dynamic.
type Loader struct {
	*Options
	logger *zap.SugaredLogger
}

// NewLoader returns a Loader; call Install before GetPackage.
func NewLoader(logger *zap.SugaredLogger, opts ...Option) *Loader {
	if logger == nil {
		logger = zap.S()
	}
	return &Loader{
		Options: NewOptions(opts...),
		logger:  logger.Named("dynamic"),
	}
}

// Install pushes the toolchain and warehouse settings into the dynamic
// package and registers static and preloaded packages. Preload failures are
// logged and do not stop the runtime; the package may still resolve later.
func (l *Loader) Install() {
	if l.Os != "" {
		dynamic.DynamicOS = l.Os
	}
	if l.Arch != "" {
		dynamic.DynamicArch = l.Arch
	}
	if l.Compiler != "" {
		dynamic.DynamicCompiler = l.Compiler
	}
	if l.Variant != "" {
		dynamic.DynamicVariant = l.Variant
	}

	dynamic.UseWarehouse(l.LocalWarehouse, l.RemoteWarehouse)

	if l.Namespace != "" {
		dynamic.UseNamespace(l.Namespace)
	}
	if l.DefaultVersion != "" {
		dynamic.UseDefaultVersion(l.DefaultVersion)
	}

	for _, p := range l.StaticPackages {
		dynamic.RegisterPackage(p.Package, p.Version, p.Tunnel)
	}

	for _, p := range l.PreloadPackages {
		if _, err := l.GetPackage(p.Package, p.Version); err != nil {
			l.logger.Warnf("preload %s@%s failed: %v", p.Package, p.Version, err)
		}
	}
}

// GetPackage returns the tunnel for pkg at version. An empty version means
// the configured default.
func (l *Loader) GetPackage(pkg, version string) (dynamic.Tunnel, error) {
	if version == "" {
		version = l.DefaultVersion
	}
	tunnel, err := dynamic.GetPackage(pkg, version)
	if err != nil {
		return nil, fmt.Errorf("dynamic: get package %s@%s: %w", pkg, version, err)
	}
	return tunnel, nil
}
