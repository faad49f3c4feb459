package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"kr-reversion-bot/internal/alerts"
	"kr-reversion-bot/internal/bracket"
	"kr-reversion-bot/internal/broker/rest"
	"kr-reversion-bot/internal/broker/ws"
	"kr-reversion-bot/internal/config"
	"kr-reversion-bot/internal/exec"
	"kr-reversion-bot/internal/metrics"
	"kr-reversion-bot/internal/signal"
	"kr-reversion-bot/internal/state"
	"kr-reversion-bot/internal/state/sqlite"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	log        *zap.Logger
	store      state.Store
	rest       *rest.Client
	ws         *ws.Client
	executor   *exec.Executor
	evaluator  *signal.Evaluator
	controller *bracket.Controller
	alerts     *alerts.Telegram
	promserver *http.Server

	paused         atomic.Bool
	operatorWarned bool
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(os.Getenv("BROKER_API_TOKEN"))
	if token == "" {
		_ = store.Close()
		return nil, errors.New("BROKER_API_TOKEN is required")
	}
	restClient := rest.New(cfg.REST.BaseURL, token, cfg.REST.Timeout, log)
	wsClient := ws.New(cfg.WS.URL, cfg.WS.ReconnectDelay, cfg.WS.PingInterval, log)
	executor := exec.New(restClient, store, cfg.Strategy.Symbol, cfg.REST.Timeout, log)

	m := metrics.NewNoop()
	var promserver *http.Server
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheus()
		m = prom.Metrics
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler())
		promserver = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
	}

	controller := bracket.NewController(bracket.Config{
		Quantity:       cfg.Strategy.Quantity,
		StopMultiple:   cfg.Strategy.StopMultiple,
		TargetMultiple: cfg.Strategy.TargetMultiple,
	}, executor, log, m)

	evaluator := signal.NewEvaluator(signal.Config{
		RSIPeriod:   cfg.Strategy.RSIPeriod,
		Oversold:    cfg.Strategy.RSIOversold,
		Overbought:  cfg.Strategy.RSIOverbought,
		ExitLevel:   cfg.Strategy.RSIExitLevel,
		ATRPeriod:   cfg.Strategy.ATRPeriod,
		KRPeriod:    cfg.Strategy.KRPeriod,
		KRBandwidth: cfg.Strategy.KRBandwidth,
	})

	return &App{
		cfg:        cfg,
		log:        log,
		store:      store,
		rest:       restClient,
		ws:         wsClient,
		executor:   executor,
		evaluator:  evaluator,
		controller: controller,
		alerts:     alerts.NewTelegram(cfg.Telegram, log),
		promserver: promserver,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	// Shutdown must never leave a live position behind with nobody watching
	// its brackets. Flatten is a no-op when already flat.
	defer a.controller.ForceFlatten("shutdown")

	a.ws.SubscribeOrders(a.cfg.Strategy.Symbol)
	a.startOperator(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.ws.Run(ctx, a.handleStreamMessage)
	})
	g.Go(func() error {
		return a.evalLoop(ctx)
	})
	if a.promserver != nil {
		g.Go(func() error {
			err := a.promserver.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return a.promserver.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

func (a *App) evalLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Strategy.EvalInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.tick(ctx); err != nil {
				a.log.Warn("evaluation tick failed", zap.Error(err))
			}
		}
	}
}

func (a *App) tick(ctx context.Context) error {
	s := a.cfg.Strategy
	candles, err := a.rest.Candles(ctx, s.Symbol, s.CandleInterval, s.CandleWindow)
	if err != nil {
		return err
	}
	bars := toBars(candles)
	held := a.controller.Position().Direction
	eval, err := a.evaluator.Evaluate(bars, held)
	if err != nil {
		if errors.Is(err, signal.ErrNotReady) {
			a.log.Debug("indicators warming up", zap.Int("bars", len(bars)))
			return nil
		}
		return err
	}
	a.applyEvaluation(ctx, eval)
	return nil
}

func (a *App) applyEvaluation(ctx context.Context, eval signal.Evaluation) {
	a.log.Debug("evaluated",
		zap.String("signal", string(eval.Signal)),
		zap.Float64("rsi", eval.RSI),
		zap.Float64("atr", eval.ATR),
		zap.Float64("kr", eval.KR),
		zap.Float64("close", eval.Close))
	if eval.Signal == bracket.SignalHold {
		return
	}
	if a.paused.Load() && eval.Signal != bracket.SignalExitNow {
		a.log.Info("trading paused, entry signal suppressed", zap.String("signal", string(eval.Signal)))
		return
	}
	a.controller.OnSignal(eval.Signal, eval.RiskUnit)
	a.notify(ctx, "signal "+string(eval.Signal)+" on "+a.cfg.Strategy.Symbol)
}

func (a *App) handleStreamMessage(raw json.RawMessage) {
	update, ok := ws.ParseOrderUpdate(raw)
	if !ok {
		return
	}
	meta, ok := a.executor.Resolve(update.OrderID)
	if !ok {
		a.log.Debug("order event for unknown order", zap.String("order_id", update.OrderID))
		return
	}
	status, ok := orderStatus(update.Status)
	if !ok {
		a.log.Debug("order event with unknown status",
			zap.String("order_id", update.OrderID),
			zap.String("status", update.Status))
		return
	}
	a.controller.OnOrderEvent(bracket.OrderEvent{
		OrderID:   bracket.Ticket(update.OrderID),
		Status:    status,
		Kind:      meta.Kind,
		Direction: meta.Direction,
		FillPrice: update.FillPrice,
		FilledQty: update.FilledQty,
	})
}

func (a *App) notify(ctx context.Context, message string) {
	if err := a.alerts.Send(ctx, message); err != nil {
		a.log.Warn("alert send failed", zap.Error(err))
	}
}

func orderStatus(s string) (bracket.OrderStatus, bool) {
	switch strings.ToUpper(s) {
	case "FILLED":
		return bracket.StatusFilled, true
	case "CANCELED", "CANCELLED":
		return bracket.StatusCanceled, true
	case "CANCEL_PENDING":
		return bracket.StatusCancelPending, true
	case "INVALID", "REJECTED":
		return bracket.StatusInvalid, true
	case "ERROR":
		return bracket.StatusError, true
	}
	return "", false
}

func toBars(candles []rest.Candle) []signal.Bar {
	bars := make([]signal.Bar, len(candles))
	for i, c := range candles {
		bars[i] = signal.Bar{
			Time:   time.UnixMilli(c.TimeMS).UTC(),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
	}
	return bars
}
