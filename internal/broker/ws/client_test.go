package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func TestRunReplaysSubscriptionAndDeliversEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

		// First client message must be the replayed subscription.
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var sub subscribeMessage
		if err := json.Unmarshal(data, &sub); err != nil || sub.Channel != "orders" || sub.Symbol != "SPY" {
			t.Errorf("unexpected subscription: %s", data)
			return
		}
		event := `{"channel":"orders","data":{"order_id":"oid-1","status":"FILLED","fill_price":100.5,"filled_qty":10}}`
		if err := conn.Write(ctx, websocket.MessageText, []byte(event)); err != nil {
			return
		}
		<-ctx.Done()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(wsURL, 10*time.Millisecond, 0, zap.NewNop())
	client.SubscribeOrders("SPY")

	got := make(chan OrderUpdate, 1)
	go func() {
		_ = client.Run(ctx, func(raw json.RawMessage) {
			if update, ok := ParseOrderUpdate(raw); ok {
				select {
				case got <- update:
				default:
				}
			}
		})
	}()

	select {
	case update := <-got:
		if update.OrderID != "oid-1" || update.Status != "FILLED" || update.FillPrice != 100.5 {
			t.Fatalf("unexpected update: %+v", update)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for order update")
	}
}

func TestParseOrderUpdateIgnoresOtherChannels(t *testing.T) {
	if _, ok := ParseOrderUpdate(json.RawMessage(`{"channel":"candles","data":{}}`)); ok {
		t.Fatalf("expected non-order channels to be ignored")
	}
	if _, ok := ParseOrderUpdate(json.RawMessage(`{"channel":"orders","data":{"status":"FILLED"}}`)); ok {
		t.Fatalf("expected updates without an order id to be ignored")
	}
	if _, ok := ParseOrderUpdate(json.RawMessage(`not json`)); ok {
		t.Fatalf("expected invalid payloads to be ignored")
	}
}
