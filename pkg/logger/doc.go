// Package logger builds the slog loggers used by every binary: JSON in prod,
// text elsewhere, always tagged with the environment.
package logger
