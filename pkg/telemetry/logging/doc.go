// Package logging configures the process-wide structured logger.
//
// All components log through log/slog with a per-component attribute
// (slog.Default().With("component", ...)), so installing the handler here
// shapes every log line in the process. JSON is the default format; text
// is available for local development. Request-scoped fields travel in the
// context via WithRequestID/GetRequestID.
package logging
