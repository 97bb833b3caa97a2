// Package history houses conversation history persistence. The Store
// interface keeps the runner decoupled from concrete storage; add durable
// backends (Redis, Postgres, ...) in sub-packages without changing calling
// code.
package history
