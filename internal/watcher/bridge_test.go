package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jsbattig/code-indexer-sub023/internal/ingest"
)

type recordingProcessor struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingProcessor) ProcessFile(_ context.Context, _, relPath string, _ ingest.Metadata) ingest.FileResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, relPath)
	return ingest.FileResult{Path: relPath, Success: true}
}

func (r *recordingProcessor) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.paths))
	copy(out, r.paths)
	return out
}

func TestBridge_RunReindexesCreatedAndModifiedFiles(t *testing.T) {
	proc := &recordingProcessor{}
	b := NewBridge("/project", proc, ingest.Metadata{ProjectID: "proj"})

	events := make(chan []FileEvent, 1)
	events <- []FileEvent{
		{Path: "a.go", Operation: OpCreate},
		{Path: "b.go", Operation: OpModify},
		{Path: "c.go", Operation: OpDelete},
		{Path: "somedir", Operation: OpCreate, IsDir: true},
	}
	close(events)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b.Run(ctx, events)

	assert.ElementsMatch(t, []string{"a.go", "b.go"}, proc.seen())
}

func TestBridge_RunStopsOnContextCancel(t *testing.T) {
	proc := &recordingProcessor{}
	b := NewBridge("/project", proc, ingest.Metadata{})

	events := make(chan []FileEvent)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		b.Run(ctx, events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
