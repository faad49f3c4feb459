package exec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"kr-reversion-bot/internal/bracket"
	"kr-reversion-bot/internal/broker/rest"
	"kr-reversion-bot/internal/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RestClient is the slice of the gateway REST API the executor needs.
type RestClient interface {
	PlaceOrder(ctx context.Context, req rest.OrderRequest) (string, error)
	CancelOrder(ctx context.Context, orderID, reason string) error
	ClosePosition(ctx context.Context, symbol, reason string) error
}

// OrderMeta is what the executor remembers about every order it submitted,
// keyed by the gateway's order id. The event pump uses it to attach kind and
// direction to raw stream notifications.
type OrderMeta struct {
	Kind      bracket.OrderKind `json:"kind"`
	Direction bracket.Direction `json:"direction"`
	Quantity  float64           `json:"quantity"`
}

// Executor implements bracket.Gateway on top of the gateway REST client.
// Submissions are single-shot: a failed bracket placement must surface
// immediately so the controller can liquidate, never be retried into a window
// where the position sits unprotected. Submitted-order metadata is mirrored
// into the kv store so events from a previous run can still be classified.
type Executor struct {
	rest    RestClient
	store   state.Store
	log     *zap.Logger
	symbol  string
	timeout time.Duration

	mu   sync.Mutex
	meta map[string]OrderMeta
}

func New(restClient RestClient, store state.Store, symbol string, timeout time.Duration, log *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Executor{
		rest:    restClient,
		store:   store,
		log:     log,
		symbol:  symbol,
		timeout: timeout,
		meta:    make(map[string]OrderMeta),
	}
}

func (e *Executor) SubmitMarketOrder(direction bracket.Direction, quantity float64) (bracket.Ticket, error) {
	return e.submit(bracket.KindEntry, "market", direction, quantity, 0)
}

func (e *Executor) SubmitStopOrder(direction bracket.Direction, quantity, stopPrice float64) (bracket.Ticket, error) {
	return e.submit(bracket.KindStop, "stop", direction, quantity, stopPrice)
}

func (e *Executor) SubmitLimitOrder(direction bracket.Direction, quantity, limitPrice float64) (bracket.Ticket, error) {
	return e.submit(bracket.KindTarget, "limit", direction, quantity, limitPrice)
}

func (e *Executor) submit(kind bracket.OrderKind, orderType string, direction bracket.Direction, quantity, price float64) (bracket.Ticket, error) {
	side, err := sideFor(direction)
	if err != nil {
		return "", err
	}
	req := rest.OrderRequest{
		ClientOrderID: uuid.NewString(),
		Symbol:        e.symbol,
		Side:          side,
		Type:          orderType,
		Quantity:      quantity,
	}
	switch orderType {
	case "stop":
		req.StopPrice = price
	case "limit":
		req.LimitPrice = price
	}
	ctx, cancel := e.callCtx()
	defer cancel()
	orderID, err := e.rest.PlaceOrder(ctx, req)
	if err != nil {
		return "", fmt.Errorf("place %s order: %w", orderType, err)
	}
	if orderID == "" {
		return "", errors.New("empty order id")
	}
	e.remember(orderID, OrderMeta{Kind: kind, Direction: direction, Quantity: quantity})
	return bracket.Ticket(orderID), nil
}

func (e *Executor) Cancel(ticket bracket.Ticket, reason string) {
	ctx, cancel := e.callCtx()
	defer cancel()
	if err := e.rest.CancelOrder(ctx, string(ticket), reason); err != nil {
		e.log.Warn("order cancel failed",
			zap.String("order_id", string(ticket)),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func (e *Executor) Liquidate(reason string) {
	ctx, cancel := e.callCtx()
	defer cancel()
	if err := e.rest.ClosePosition(ctx, e.symbol, reason); err != nil {
		e.log.Error("liquidation request failed",
			zap.String("symbol", e.symbol),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

// Resolve classifies a gateway order id. Unknown ids (orders from other
// sessions the store no longer holds, or gateway-originated orders such as
// liquidation fills) report ok=false.
func (e *Executor) Resolve(orderID string) (OrderMeta, bool) {
	e.mu.Lock()
	meta, ok := e.meta[orderID]
	e.mu.Unlock()
	if ok {
		return meta, true
	}
	if e.store == nil {
		return OrderMeta{}, false
	}
	ctx, cancel := e.callCtx()
	defer cancel()
	raw, ok, err := e.store.Get(ctx, metaKey(orderID))
	if err != nil || !ok {
		return OrderMeta{}, false
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return OrderMeta{}, false
	}
	e.mu.Lock()
	e.meta[orderID] = meta
	e.mu.Unlock()
	return meta, true
}

func (e *Executor) remember(orderID string, meta OrderMeta) {
	e.mu.Lock()
	e.meta[orderID] = meta
	e.mu.Unlock()
	if e.store == nil {
		return
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return
	}
	ctx, cancel := e.callCtx()
	defer cancel()
	if err := e.store.Set(ctx, metaKey(orderID), string(payload)); err != nil {
		e.log.Warn("failed to persist order meta", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (e *Executor) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.timeout)
}

func metaKey(orderID string) string {
	return "order:" + orderID
}

func sideFor(direction bracket.Direction) (string, error) {
	switch direction {
	case bracket.Long:
		return "buy", nil
	case bracket.Short:
		return "sell", nil
	}
	return "", fmt.Errorf("no order side for direction %q", direction)
}
