package logger

import "log/slog"

// Attribute helpers use the empty Attr pattern for nil safety, so call
// sites can write log.Info("msg", logger.Error(err)) without nil checks.

// Error creates an attribute for a single error under the key "error".
// Returns an empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component tags a log line with the emitting component's name.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RequestID tags a log line with the request correlation ID.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}
