// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. The runner defaults to NoOpLogger; pass a SlogAdapter or
// NewLogger result to get structured output.
package logging
