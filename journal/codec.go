package journal

import (
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Marshal encodes e as a protobuf Struct.
func Marshal(e *Entry) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	s, err := structpb.NewStruct(map[string]any{
		"requestId":       e.RequestID,
		"functionName":    e.FunctionName,
		"functionVersion": e.FunctionVersion,
		"traceId":         e.TraceID,
		"success":         e.Success,
		"errorType":       e.ErrorType,
		"errorMessage":    e.ErrorMessage,
		"deferred":        e.Deferred,
		"startedAt":       e.StartedAt.UTC().Format(time.RFC3339Nano),
		"finishedAt":      e.FinishedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: marshal: %w", err)
	}
	return proto.Marshal(s)
}

// Unmarshal decodes an entry written by Marshal.
func Unmarshal(b []byte) (*Entry, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("journal: unmarshal: %w", err)
	}
	f := s.GetFields()
	e := &Entry{
		RequestID:       f["requestId"].GetStringValue(),
		FunctionName:    f["functionName"].GetStringValue(),
		FunctionVersion: f["functionVersion"].GetStringValue(),
		TraceID:         f["traceId"].GetStringValue(),
		Success:         f["success"].GetBoolValue(),
		ErrorType:       f["errorType"].GetStringValue(),
		ErrorMessage:    f["errorMessage"].GetStringValue(),
		Deferred:        f["deferred"].GetBoolValue(),
	}
	var err error
	if e.StartedAt, err = parseTime(f["startedAt"].GetStringValue()); err != nil {
		return nil, err
	}
	if e.FinishedAt, err = parseTime(f["finishedAt"].GetStringValue()); err != nil {
		return nil, err
	}
	return e, nil
}

// EncodeBody renders an entry as a base64 message body.
func EncodeBody(e *Entry) (string, error) {
	b, err := Marshal(e)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeBody reverses EncodeBody.
func DecodeBody(body string) (*Entry, error) {
	b, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("journal: decode body: %w", err)
	}
	return Unmarshal(b)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("journal: unmarshal: %w", err)
	}
	return t, nil
}
