package exec

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kr-reversion-bot/internal/bracket"
	"kr-reversion-bot/internal/broker/rest"

	"go.uber.org/zap"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryStore) Close() error { return nil }

type mockRest struct {
	mu      sync.Mutex
	nextID  string
	failAll bool

	placed  []rest.OrderRequest
	cancels []string
	closes  []string
}

func (m *mockRest) PlaceOrder(ctx context.Context, req rest.OrderRequest) (string, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return "", errors.New("gateway rejected order")
	}
	m.placed = append(m.placed, req)
	return m.nextID, nil
}

func (m *mockRest) CancelOrder(ctx context.Context, orderID, reason string) error {
	_ = ctx
	_ = reason
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels = append(m.cancels, orderID)
	return nil
}

func (m *mockRest) ClosePosition(ctx context.Context, symbol, reason string) error {
	_ = ctx
	_ = reason
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes = append(m.closes, symbol)
	return nil
}

func newTestExecutor(mock *mockRest, store *memoryStore) *Executor {
	return New(mock, store, "SPY", time.Second, zap.NewNop())
}

func TestSubmitRecordsMeta(t *testing.T) {
	mock := &mockRest{nextID: "oid-1"}
	store := newMemoryStore()
	executor := newTestExecutor(mock, store)

	ticket, err := executor.SubmitMarketOrder(bracket.Long, 10)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ticket != "oid-1" {
		t.Fatalf("expected oid-1, got %s", ticket)
	}
	if len(mock.placed) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(mock.placed))
	}
	req := mock.placed[0]
	if req.Symbol != "SPY" || req.Side != "buy" || req.Type != "market" || req.ClientOrderID == "" {
		t.Fatalf("unexpected request: %+v", req)
	}
	meta, ok := executor.Resolve("oid-1")
	if !ok || meta.Kind != bracket.KindEntry || meta.Direction != bracket.Long || meta.Quantity != 10 {
		t.Fatalf("unexpected meta: %+v ok=%v", meta, ok)
	}
}

func TestStopAndLimitCarryPrices(t *testing.T) {
	mock := &mockRest{nextID: "oid-2"}
	executor := newTestExecutor(mock, newMemoryStore())

	if _, err := executor.SubmitStopOrder(bracket.Short, 10, 97); err != nil {
		t.Fatalf("stop: %v", err)
	}
	mock.nextID = "oid-3"
	if _, err := executor.SubmitLimitOrder(bracket.Short, 10, 106); err != nil {
		t.Fatalf("limit: %v", err)
	}
	if mock.placed[0].Type != "stop" || mock.placed[0].StopPrice != 97 || mock.placed[0].Side != "sell" {
		t.Fatalf("unexpected stop request: %+v", mock.placed[0])
	}
	if mock.placed[1].Type != "limit" || mock.placed[1].LimitPrice != 106 {
		t.Fatalf("unexpected limit request: %+v", mock.placed[1])
	}
	if meta, _ := executor.Resolve("oid-2"); meta.Kind != bracket.KindStop {
		t.Fatalf("expected stop kind, got %+v", meta)
	}
	if meta, _ := executor.Resolve("oid-3"); meta.Kind != bracket.KindTarget {
		t.Fatalf("expected target kind, got %+v", meta)
	}
}

func TestSubmitRejectionPropagates(t *testing.T) {
	mock := &mockRest{failAll: true}
	executor := newTestExecutor(mock, newMemoryStore())

	if _, err := executor.SubmitMarketOrder(bracket.Long, 10); err == nil {
		t.Fatalf("expected rejection error")
	}
	if _, ok := executor.Resolve("oid-1"); ok {
		t.Fatalf("rejected order must not be remembered")
	}
}

func TestSubmitFlatDirectionFails(t *testing.T) {
	executor := newTestExecutor(&mockRest{nextID: "x"}, newMemoryStore())
	if _, err := executor.SubmitMarketOrder(bracket.Flat, 10); err == nil {
		t.Fatalf("expected error for flat direction")
	}
}

func TestResolveSurvivesRestart(t *testing.T) {
	mock := &mockRest{nextID: "oid-9"}
	store := newMemoryStore()
	executor := newTestExecutor(mock, store)
	if _, err := executor.SubmitStopOrder(bracket.Short, 5, 90); err != nil {
		t.Fatalf("submit: %v", err)
	}

	restarted := newTestExecutor(&mockRest{}, store)
	meta, ok := restarted.Resolve("oid-9")
	if !ok || meta.Kind != bracket.KindStop || meta.Quantity != 5 {
		t.Fatalf("expected persisted meta, got %+v ok=%v", meta, ok)
	}
}

func TestResolveUnknownOrder(t *testing.T) {
	executor := newTestExecutor(&mockRest{}, newMemoryStore())
	if _, ok := executor.Resolve("never-seen"); ok {
		t.Fatalf("unknown order must not resolve")
	}
}

func TestLiquidateClosesSymbol(t *testing.T) {
	mock := &mockRest{}
	executor := newTestExecutor(mock, newMemoryStore())
	executor.Liquidate("exit signal")
	if len(mock.closes) != 1 || mock.closes[0] != "SPY" {
		t.Fatalf("expected SPY close, got %v", mock.closes)
	}
}

func TestCancelBestEffort(t *testing.T) {
	mock := &mockRest{}
	executor := newTestExecutor(mock, newMemoryStore())
	executor.Cancel("oid-4", "target filled")
	if len(mock.cancels) != 1 || mock.cancels[0] != "oid-4" {
		t.Fatalf("expected cancel for oid-4, got %v", mock.cancels)
	}
}
