package memory

import "errors"

// ErrNotConfigured is returned when a provider setting is empty or unknown.
var ErrNotConfigured = errors.New("memory not configured")
