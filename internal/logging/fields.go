package logging

import "log/slog"

// Common field names for consistent logging across the pipeline.
const (
	FieldComponent = "component"
	FieldEmail     = "email"
	FieldEventID   = "event_id"
	FieldEdgeKey   = "edge_key"
	FieldRecords   = "records"
	FieldDropped   = "dropped"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Component returns a slog attribute for the pipeline component name.
func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

// Email returns a slog attribute for a participant email.
func Email(email string) slog.Attr {
	return slog.String(FieldEmail, email)
}

// EdgeKey returns a slog attribute for an aggregate edge key.
func EdgeKey(key string) slog.Attr {
	return slog.String(FieldEdgeKey, key)
}

// Err returns a slog attribute for an error message.
func Err(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}
