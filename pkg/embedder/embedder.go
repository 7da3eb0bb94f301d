// Package embedder defines the black-box embedding provider contract
// consumed by the vector calculation manager, plus a deterministic
// hash-based provider used for tests and offline operation.
package embedder

import "context"

// BatchResult is the outcome of embedding a batch of texts: either a
// set of vectors on success, or an error string the caller records
// against the failed file.
type BatchResult struct {
	Embeddings [][]float32
	Error      string
}

// Provider is the embedding provider interface: the sole authority on
// vector dimension and the declared per-batch token budget. Provider
// errors surface in BatchResult.Error rather than as a Go error value;
// retries are the caller's responsibility, not the provider's.
type Provider interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) (BatchResult, error)

	// MaxTokensPerBatch bounds how many tokens the caller should submit
	// in a single Embed call.
	MaxTokensPerBatch() int

	// Model is the stable identifier for the embedding model in use,
	// stored alongside vectors so staleness/compat checks can detect a
	// model change.
	Model() string

	// Dimensions is the length of every vector this provider returns.
	Dimensions() int
}
