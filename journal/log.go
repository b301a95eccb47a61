package journal

import (
	"context"

	"go.uber.org/zap"
)

// LogJournal writes entries to a zap logger.
type LogJournal struct {
	Logger *zap.SugaredLogger
}

// NewLogJournal returns a journal writing to logger.
func NewLogJournal(logger *zap.SugaredLogger) *LogJournal {
	if logger == nil {
		logger = zap.S()
	}
	return &LogJournal{Logger: logger.Named("journal")}
}

func (j *LogJournal) Record(_ context.Context, e *Entry) error {
	kv := []any{
		"requestId", e.RequestID,
		"function", e.FunctionName,
		"version", e.FunctionVersion,
		"success", e.Success,
		"deferred", e.Deferred,
		"duration", e.Duration(),
	}
	if e.TraceID != "" {
		kv = append(kv, "traceId", e.TraceID)
	}
	if !e.Success {
		kv = append(kv, "errorType", e.ErrorType, "errorMessage", e.ErrorMessage)
		j.Logger.Warnw("invocation failed", kv...)
		return nil
	}
	j.Logger.Infow("invocation finished", kv...)
	return nil
}
