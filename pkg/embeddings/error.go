package embeddings

import "errors"

var (
	// ErrEmptyInput is returned when asked to embed empty or whitespace-only text.
	ErrEmptyInput = errors.New("embedding input is empty")

	// ErrProviderUnavailable is returned when no embedding provider is
	// configured or the provider cannot be constructed (e.g. missing API key).
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrProvider wraps transient provider failures: transport errors,
	// rate limits, server errors and malformed responses. Callers may retry.
	ErrProvider = errors.New("embedding provider error")

	// ErrAuth is returned when the provider rejects the configured credentials.
	// It is never retried.
	ErrAuth = errors.New("embedding provider rejected credentials")
)
