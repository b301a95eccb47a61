// Package config loads the immutable process settings the runtime needs
// before it can talk to the control API.
package config

import (
	"errors"
	"fmt"
)

// Environment variables honoured by EnvProvider.
const (
	EnvHandler         = "_HANDLER"
	EnvTaskRoot        = "LAMBDA_TASK_ROOT"
	EnvRuntimeAPI      = "AWS_LAMBDA_RUNTIME_API"
	EnvFunctionName    = "AWS_LAMBDA_FUNCTION_NAME"
	EnvFunctionVersion = "AWS_LAMBDA_FUNCTION_VERSION"
	EnvMemorySize      = "AWS_LAMBDA_FUNCTION_MEMORY_SIZE"
	EnvLogGroupName    = "AWS_LAMBDA_LOG_GROUP_NAME"
	EnvLogStreamName   = "AWS_LAMBDA_LOG_STREAM_NAME"

	// EnvTraceID is written per invocation, never read by Load.
	EnvTraceID = "_X_AMZN_TRACE_ID"
)

// ErrConfig is matched by every error returned from a Provider.
var ErrConfig = errors.New("config")

// RuntimeConfig holds the settings read once at process start.
// It is shared by pointer and must not be modified after Load returns.
type RuntimeConfig struct {
	Handler         string
	TaskRoot        string
	RuntimeAPI      string
	FunctionName    string
	FunctionVersion string
	MemorySizeMB    int
	LogGroupName    string
	LogStreamName   string
}

// Provider yields a RuntimeConfig or fails naming the offending setting.
type Provider interface {
	Load() (*RuntimeConfig, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() (*RuntimeConfig, error)

func (f ProviderFunc) Load() (*RuntimeConfig, error) { return f() }

// Static returns a Provider that always yields cfg.
func Static(cfg *RuntimeConfig) Provider {
	return ProviderFunc(func() (*RuntimeConfig, error) { return cfg, nil })
}

// MissingSettingError reports a required setting that is not present.
type MissingSettingError struct {
	Name string
}

func (e *MissingSettingError) Error() string {
	return fmt.Sprintf("config: environment variable %s not set", e.Name)
}

func (e *MissingSettingError) Is(target error) bool { return target == ErrConfig }

// InvalidSettingError reports a setting whose value cannot be parsed.
type InvalidSettingError struct {
	Name  string
	Value string
	Err   error
}

func (e *InvalidSettingError) Error() string {
	return fmt.Sprintf("config: environment variable %s has invalid value %q: %v", e.Name, e.Value, e.Err)
}

func (e *InvalidSettingError) Unwrap() error { return e.Err }

func (e *InvalidSettingError) Is(target error) bool { return target == ErrConfig }
