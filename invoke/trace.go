package invoke

import "os"

// TraceSlot publishes the trace id of the invocation being dispatched. An
// empty id clears it.
type TraceSlot interface {
	Set(traceID string)
}

// TraceSlotFunc adapts a function to a TraceSlot.
type TraceSlotFunc func(traceID string)

func (f TraceSlotFunc) Set(traceID string) { f(traceID) }

// EnvTraceSlot keeps the trace id in the named process environment variable.
type EnvTraceSlot string

// Set exports traceID, or unsets the variable when it is empty.
func (s EnvTraceSlot) Set(traceID string) {
	if traceID == "" {
		_ = os.Unsetenv(string(s))
		return
	}
	_ = os.Setenv(string(s), traceID)
}
