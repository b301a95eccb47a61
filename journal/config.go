package journal

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"
)

// Sink names.
const (
	SinkNone = "none"
	SinkLog  = "log"
	SinkSQS  = "sqs"
)

// Config selects a journal sink.
type Config struct {
	Sink     string `yaml:"sink"`
	QueueURL string `yaml:"queueUrl"`
}

// ParseConfig decodes a journal YAML document.
func ParseConfig(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return nil, fmt.Errorf("journal: parse config: %w", err)
	}
	return &cfg, nil
}

// New builds the journal described by cfg. A nil result with a nil error
// means journaling is off.
func New(ctx context.Context, cfg *Config, logger *zap.SugaredLogger) (Journal, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Sink {
	case "", SinkNone:
		return nil, nil
	case SinkLog:
		return NewLogJournal(logger), nil
	case SinkSQS:
		return NewSQSJournal(ctx, cfg.QueueURL, nil)
	default:
		return nil, fmt.Errorf("journal: unknown sink %q", cfg.Sink)
	}
}
