package embedqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsbattig/code-indexer-sub023/pkg/embedder"
)

type stubProvider struct {
	dim        int
	maxTokens  int
	calls      atomic.Int32
	failOn     string
	delayFirst time.Duration
}

func (p *stubProvider) Embed(ctx context.Context, texts []string) (embedder.BatchResult, error) {
	p.calls.Add(1)
	if p.delayFirst > 0 && p.calls.Load() == 1 {
		time.Sleep(p.delayFirst)
	}
	for _, t := range texts {
		if t == p.failOn {
			return embedder.BatchResult{Error: "embedding failed for " + t}, nil
		}
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return embedder.BatchResult{Embeddings: out}, nil
}

func (p *stubProvider) MaxTokensPerBatch() int { return p.maxTokens }
func (p *stubProvider) Model() string          { return "stub" }
func (p *stubProvider) Dimensions() int        { return p.dim }

func TestManager_SubmitBatchTask_ReturnsEmbeddings(t *testing.T) {
	provider := &stubProvider{dim: 2, maxTokens: 100_000}
	m := NewManager(provider, 2)
	defer m.Stop()

	future := m.SubmitBatchTask(context.Background(), []string{"hello", "world"})
	result, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Embeddings, 2)
	assert.Empty(t, result.Error)
}

func TestManager_SubmitBatchTask_IsNonBlocking(t *testing.T) {
	provider := &stubProvider{dim: 2, maxTokens: 100_000, delayFirst: 100 * time.Millisecond}
	m := NewManager(provider, 1)
	defer m.Stop()

	start := time.Now()
	future := m.SubmitBatchTask(context.Background(), []string{"slow"})
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	_, err := future.Wait(context.Background())
	require.NoError(t, err)
}

func TestManager_ProviderErrorSurfacesOnResult(t *testing.T) {
	provider := &stubProvider{dim: 2, maxTokens: 100_000, failOn: "bad"}
	m := NewManager(provider, 1)
	defer m.Stop()

	future := m.SubmitBatchTask(context.Background(), []string{"good", "bad"})
	result, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Error)
}

func TestManager_SplitsBatchesUnderTokenBudget(t *testing.T) {
	provider := &stubProvider{dim: 2, maxTokens: 1} // forces one text per call
	m := NewManager(provider, 1)
	defer m.Stop()

	future := m.SubmitBatchTask(context.Background(), []string{"aaaa", "bbbb", "cccc"})
	result, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Embeddings, 3)
	assert.GreaterOrEqual(t, int(provider.calls.Load()), 3)
}

func TestManager_Stop_DrainsQueuedWork(t *testing.T) {
	provider := &stubProvider{dim: 2, maxTokens: 100_000}
	m := NewManager(provider, 1)

	futures := make([]*Future, 5)
	for i := range futures {
		futures[i] = m.SubmitBatchTask(context.Background(), []string{"x"})
	}
	m.Stop()

	for _, f := range futures {
		result, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Len(t, result.Embeddings, 1)
	}
}

func TestSplitByTokenBudget_GroupsUnderBudget(t *testing.T) {
	texts := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc"} // 8 chars ~ 2 tokens each
	batches := splitByTokenBudget(texts, 2)
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), 1)
	}
}
