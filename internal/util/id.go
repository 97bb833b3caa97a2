package util

import "github.com/google/uuid"

// NewID returns a fresh opaque identifier for runs and sessions.
func NewID() string { return uuid.NewString() }
