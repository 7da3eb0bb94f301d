// Package embedqueue provides a bounded worker pool that submits text
// batches to an embedder.Provider, splitting oversized batches to stay
// under the provider's declared token limit.
package embedqueue

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/jsbattig/code-indexer-sub023/pkg/embedder"
)

// DefaultMaxWorkers is used when Manager is constructed with a
// non-positive worker count.
const DefaultMaxWorkers = 4

// approxCharsPerToken is a rough heuristic (no tokenizer dependency):
// most source-code tokenizers average well under 4 characters/token,
// so dividing by 4 tends to under-count tokens.
const approxCharsPerToken = 4

// Future is a non-blocking handle to a submitted batch's eventual
// result.
type Future struct {
	done   chan struct{}
	result embedder.BatchResult
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(result embedder.BatchResult, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

// Wait blocks until the batch completes, or ctx is done, whichever
// comes first.
func (f *Future) Wait(ctx context.Context) (embedder.BatchResult, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return embedder.BatchResult{}, ctx.Err()
	}
}

type task struct {
	ctx    context.Context
	texts  []string
	future *Future
}

// Manager is a fixed-size pool of workers, each consulting the same
// embedder.Provider. Submissions return immediately; the caller awaits
// the returned Future on its own schedule.
type Manager struct {
	provider embedder.Provider
	tasks    chan task
	wg       sync.WaitGroup

	stopOnce sync.Once
}

// NewManager starts maxWorkers goroutines consuming from an internal
// task queue. maxWorkers <= 0 uses DefaultMaxWorkers.
func NewManager(provider embedder.Provider, maxWorkers int) *Manager {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	m := &Manager{
		provider: provider,
		tasks:    make(chan task, maxWorkers*2),
	}
	for i := 0; i < maxWorkers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for t := range m.tasks {
		m.run(t)
	}
}

func (m *Manager) run(t task) {
	batches := splitByTokenBudget(t.texts, m.provider.MaxTokensPerBatch())

	embeddings := make([][]float32, 0, len(t.texts))
	for _, batch := range batches {
		result, err := m.provider.Embed(t.ctx, batch)
		if err != nil {
			t.future.complete(embedder.BatchResult{Error: err.Error()}, err)
			return
		}
		if result.Error != "" {
			t.future.complete(result, nil)
			return
		}
		embeddings = append(embeddings, result.Embeddings...)
	}
	t.future.complete(embedder.BatchResult{Embeddings: embeddings}, nil)
}

// SubmitBatchTask queues texts for embedding and returns immediately. No
// retries happen at this layer; a provider error surfaces verbatim on
// the Future's BatchResult.Error.
func (m *Manager) SubmitBatchTask(ctx context.Context, texts []string) *Future {
	f := newFuture()
	m.tasks <- task{ctx: ctx, texts: texts, future: f}
	return f
}

// Stop closes the task queue and waits for every already-submitted
// (including already-queued) task to drain before returning. No new
// submissions are permitted after Stop is called.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.tasks)
	})
	m.wg.Wait()
}

// splitByTokenBudget groups texts into the fewest possible sub-batches
// such that each sub-batch's estimated token count stays under
// maxTokens. A single text that alone exceeds the budget is still sent
// alone, since the chunker already bounds individual chunk size.
func splitByTokenBudget(texts []string, maxTokens int) [][]string {
	if maxTokens <= 0 || len(texts) == 0 {
		return [][]string{texts}
	}

	var batches [][]string
	var current []string
	currentTokens := 0

	for _, text := range texts {
		tokens := estimateTokens(text)
		if len(current) > 0 && currentTokens+tokens > maxTokens {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, text)
		currentTokens += tokens
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	tokens := n / approxCharsPerToken
	if tokens == 0 && n > 0 {
		tokens = 1
	}
	return tokens
}
