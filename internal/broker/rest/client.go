package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to the order gateway's JSON API: order submission and
// cancellation, position close and candle history.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

func New(baseURL, token string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type OrderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	Quantity      float64 `json:"quantity"`
	StopPrice     float64 `json:"stop_price,omitempty"`
	LimitPrice    float64 `json:"limit_price,omitempty"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
}

// PlaceOrder submits one order and returns the gateway's order id. A non-2xx
// response or a missing id is the synchronous rejection case; everything else
// about the order's fate arrives later on the event stream.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	var resp orderResponse
	if err := c.post(ctx, "/v1/orders", req, &resp); err != nil {
		return "", err
	}
	if resp.OrderID == "" {
		return "", errors.New("gateway returned no order id")
	}
	return resp.OrderID, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID, reason string) error {
	if orderID == "" {
		return errors.New("order id is required")
	}
	path := "/v1/orders/" + url.PathEscape(orderID) + "/cancel"
	return c.post(ctx, path, map[string]string{"reason": reason}, nil)
}

func (c *Client) ClosePosition(ctx context.Context, symbol, reason string) error {
	if symbol == "" {
		return errors.New("symbol is required")
	}
	path := "/v1/positions/" + url.PathEscape(symbol) + "/close"
	return c.post(ctx, path, map[string]string{"reason": reason}, nil)
}

type Candle struct {
	TimeMS int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	var out []Candle
	if err := c.get(ctx, "/v1/candles?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
