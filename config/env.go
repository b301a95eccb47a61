package config

import (
	"fmt"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var envKeys = []struct {
	key string
	env string
}{
	{"handler", EnvHandler},
	{"task_root", EnvTaskRoot},
	{"runtime_api", EnvRuntimeAPI},
	{"function_name", EnvFunctionName},
	{"function_version", EnvFunctionVersion},
	{"memory_size", EnvMemorySize},
	{"log_group_name", EnvLogGroupName},
	{"log_stream_name", EnvLogStreamName},
}

// EnvProvider reads RuntimeConfig from the process environment.
// Every variable is required; a variable set to the empty string counts as set.
type EnvProvider struct {
	v       *viper.Viper
	dotEnvs []string
}

// NewEnvProvider builds a provider. Any dotenv files given are loaded into the
// environment on Load, without overriding variables that are already set.
func NewEnvProvider(dotEnvFiles ...string) *EnvProvider {
	v := viper.New()
	v.AllowEmptyEnv(true)
	for _, k := range envKeys {
		// BindEnv only errors when called without a key.
		_ = v.BindEnv(k.key, k.env)
	}
	return &EnvProvider{v: v, dotEnvs: dotEnvFiles}
}

// Load reads and validates every setting.
func (p *EnvProvider) Load() (*RuntimeConfig, error) {
	if len(p.dotEnvs) > 0 {
		if err := godotenv.Load(p.dotEnvs...); err != nil {
			return nil, fmt.Errorf("%w: loading env files %v: %v", ErrConfig, p.dotEnvs, err)
		}
	}

	for _, k := range envKeys {
		if !p.v.IsSet(k.key) {
			return nil, &MissingSettingError{Name: k.env}
		}
	}

	raw := p.v.GetString("memory_size")
	memory, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &InvalidSettingError{Name: EnvMemorySize, Value: raw, Err: err}
	}

	return &RuntimeConfig{
		Handler:         p.v.GetString("handler"),
		TaskRoot:        p.v.GetString("task_root"),
		RuntimeAPI:      p.v.GetString("runtime_api"),
		FunctionName:    p.v.GetString("function_name"),
		FunctionVersion: p.v.GetString("function_version"),
		MemorySizeMB:    memory,
		LogGroupName:    p.v.GetString("log_group_name"),
		LogStreamName:   p.v.GetString("log_stream_name"),
	}, nil
}
