package insights

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type memInsightStore struct {
	mu       sync.Mutex
	statuses map[int64][]string
	insights map[int64]string
	failSet  bool
}

func newMemInsightStore() *memInsightStore {
	return &memInsightStore{
		statuses: make(map[int64][]string),
		insights: make(map[int64]string),
	}
}

func (s *memInsightStore) SetInsightsStatus(_ context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return errors.New("connection reset")
	}
	s.statuses[id] = append(s.statuses[id], status)
	return nil
}

func (s *memInsightStore) SaveInsights(_ context.Context, id int64, insights string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights[id] = insights
	s.statuses[id] = append(s.statuses[id], "ready")
	return nil
}

func (s *memInsightStore) history(id int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses[id]...)
}

type fakeVideoAPI struct {
	indexOK    bool
	indexErr   error
	transcript string
	report     string
	genErr     error

	lastPrompt string
	lastModel  string
}

func (f *fakeVideoAPI) IndexVideo(_ context.Context, _, _ string) (bool, error) {
	return f.indexOK, f.indexErr
}

func (f *fakeVideoAPI) GetTranscriptText(_ context.Context, _, _ string) (string, error) {
	return f.transcript, nil
}

func (f *fakeVideoAPI) GenerateText(_ context.Context, _, prompt, modelName string) (string, error) {
	f.lastPrompt = prompt
	f.lastModel = modelName
	return f.report, f.genErr
}

func equalHistory(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestProcessHappyPath(t *testing.T) {
	t.Parallel()

	store := newMemInsightStore()
	api := &fakeVideoAPI{indexOK: true, transcript: "we agreed to ship on friday", report: "## 📋 Meeting Summary\nShip friday."}
	p := NewPipeline(store, api, "ultra", zap.NewNop())

	if err := p.Process(context.Background(), 1, "m-9", "key"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := store.history(1); !equalHistory(got, []string{"processing", "ready"}) {
		t.Fatalf("unexpected status history: %v", got)
	}
	want := `["## 📋 Meeting Summary\nShip friday."]`
	if store.insights[1] != want {
		t.Fatalf("unexpected stored insights: %q", store.insights[1])
	}
	if !strings.Contains(api.lastPrompt, "we agreed to ship on friday") {
		t.Fatalf("prompt does not carry the transcript: %q", api.lastPrompt)
	}
	if api.lastModel != "ultra" {
		t.Fatalf("expected model ultra, got %q", api.lastModel)
	}
}

func TestProcessIndexRejectionIsTerminalFailure(t *testing.T) {
	t.Parallel()

	store := newMemInsightStore()
	p := NewPipeline(store, &fakeVideoAPI{indexOK: false}, "", zap.NewNop())

	if err := p.Process(context.Background(), 1, "m-9", "key"); err != nil {
		t.Fatalf("domain failure must not surface as an error: %v", err)
	}
	if got := store.history(1); !equalHistory(got, []string{"processing", "failed"}) {
		t.Fatalf("unexpected status history: %v", got)
	}
}

func TestProcessIndexErrorIsTerminalFailure(t *testing.T) {
	t.Parallel()

	store := newMemInsightStore()
	p := NewPipeline(store, &fakeVideoAPI{indexErr: errors.New("boom")}, "", zap.NewNop())

	if err := p.Process(context.Background(), 1, "m-9", "key"); err != nil {
		t.Fatalf("domain failure must not surface as an error: %v", err)
	}
	if got := store.history(1); !equalHistory(got, []string{"processing", "failed"}) {
		t.Fatalf("unexpected status history: %v", got)
	}
}

func TestProcessEmptyTranscriptEndsReadyWithoutContent(t *testing.T) {
	t.Parallel()

	store := newMemInsightStore()
	p := NewPipeline(store, &fakeVideoAPI{indexOK: true, transcript: "   "}, "", zap.NewNop())

	if err := p.Process(context.Background(), 1, "m-9", "key"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := store.history(1); !equalHistory(got, []string{"processing", "ready"}) {
		t.Fatalf("unexpected status history: %v", got)
	}
	if _, ok := store.insights[1]; ok {
		t.Fatalf("expected no stored insights, got %q", store.insights[1])
	}
}

func TestProcessEmptyGenerationEndsReadyWithoutContent(t *testing.T) {
	t.Parallel()

	store := newMemInsightStore()
	p := NewPipeline(store, &fakeVideoAPI{indexOK: true, transcript: "hello", report: ""}, "", zap.NewNop())

	if err := p.Process(context.Background(), 1, "m-9", "key"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := store.history(1); !equalHistory(got, []string{"processing", "ready"}) {
		t.Fatalf("unexpected status history: %v", got)
	}
	if _, ok := store.insights[1]; ok {
		t.Fatalf("expected no stored insights")
	}
}

func TestProcessGenerationErrorEndsReadyWithoutContent(t *testing.T) {
	t.Parallel()

	store := newMemInsightStore()
	p := NewPipeline(store, &fakeVideoAPI{indexOK: true, transcript: "hello", genErr: errors.New("model unavailable")}, "", zap.NewNop())

	if err := p.Process(context.Background(), 1, "m-9", "key"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := store.history(1); !equalHistory(got, []string{"processing", "ready"}) {
		t.Fatalf("unexpected status history: %v", got)
	}
}

func TestProcessLedgerWriteFailureIsRetryable(t *testing.T) {
	t.Parallel()

	store := newMemInsightStore()
	store.failSet = true
	p := NewPipeline(store, &fakeVideoAPI{indexOK: true}, "", zap.NewNop())

	if err := p.Process(context.Background(), 1, "m-9", "key"); err == nil {
		t.Fatal("infrastructure failure must surface as an error for retry")
	}
}
