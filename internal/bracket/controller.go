package bracket

import (
	"sync"

	"kr-reversion-bot/internal/metrics"

	"go.uber.org/zap"
)

type Config struct {
	Quantity       float64
	StopMultiple   float64
	TargetMultiple float64
}

// Controller owns the bracket order lifecycle for a single instrument: it
// decides when an entry is submitted, derives and submits the protective OCO
// pair once the entry fills, reconciles asynchronous order events and returns
// the instrument to a clean flat state afterward. All mutations are serialized
// behind one mutex, so events racing each other are resolved purely by arrival
// order: the loser finds its ticket reference already cleared and becomes a
// no-op.
type Controller struct {
	cfg     Config
	gw      Gateway
	log     *zap.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	pos         Position
	pair        BracketPair
	pendingDir  Direction
	pendingTkt  Ticket
	pendingRisk float64
}

func NewController(cfg Config, gw Gateway, log *zap.Logger, m *metrics.Metrics) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Controller{
		cfg:     cfg,
		gw:      gw,
		log:     log,
		metrics: m,
		pos:     Position{Direction: Flat},
	}
}

// CurrentState reports the derived lifecycle state.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Position returns a snapshot of the current holding.
func (c *Controller) Position() Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// OnSignal evaluates one signal tick. Only a flat controller honors entry
// signals and only a bracketed one honors an exit; anything arriving while a
// transition is in flight is dropped so the controller never double-acts.
func (c *Controller) OnSignal(sig Signal, riskUnit float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.stateLocked() {
	case StateFlat:
		var dir Direction
		switch sig {
		case SignalEnterLong:
			dir = Long
		case SignalEnterShort:
			dir = Short
		default:
			return
		}
		ticket, err := c.gw.SubmitMarketOrder(dir, c.cfg.Quantity)
		if err != nil {
			c.metrics.EntriesFailed.Inc()
			c.log.Warn("entry submission rejected",
				zap.String("direction", string(dir)),
				zap.Float64("quantity", c.cfg.Quantity),
				zap.Error(err))
			return
		}
		c.pendingDir = dir
		c.pendingTkt = ticket
		c.pendingRisk = riskUnit
		c.metrics.EntriesSubmitted.Inc()
		c.log.Info("entry submitted",
			zap.String("direction", string(dir)),
			zap.Float64("quantity", c.cfg.Quantity),
			zap.String("ticket", string(ticket)))
	case StateOpenBracketed:
		if sig != SignalExitNow {
			return
		}
		c.log.Info("exit signal received, flattening",
			zap.String("direction", string(c.pos.Direction)))
		c.flattenLocked("exit signal")
	default:
		c.log.Debug("signal ignored mid-transition",
			zap.String("signal", string(sig)),
			zap.String("state", string(c.stateLocked())))
	}
}

// OnOrderEvent reconciles one gateway notification. Handlers are idempotent:
// redelivering an event for an already-cleared ticket is absorbed silently.
func (c *Controller) OnOrderEvent(ev OrderEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.Status {
	case StatusFilled:
		switch ev.Kind {
		case KindEntry:
			c.onEntryFilledLocked(ev)
		case KindStop:
			c.onLegFilledLocked(ev, c.pair.Stop, c.pair.Target, "stop filled")
		case KindTarget:
			c.onLegFilledLocked(ev, c.pair.Target, c.pair.Stop, "target filled")
		default:
			c.ignoreLocked(ev)
		}
	case StatusCanceled:
		c.onCanceledLocked(ev)
	case StatusInvalid, StatusError:
		c.onRejectedLocked(ev)
	default:
		c.ignoreLocked(ev)
	}
}

// ForceFlatten cancels any live orders, liquidates and unconditionally resets
// to flat. It is the escape hatch used by the fatal paths and by shutdown.
func (c *Controller) ForceFlatten(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateLocked() == StateFlat {
		return
	}
	c.log.Warn("force flatten", zap.String("reason", reason))
	c.flattenLocked(reason)
}

func (c *Controller) onEntryFilledLocked(ev OrderEvent) {
	// Duplicate or stale entry fills fail these guards: the pending ticket is
	// cleared the first time around.
	if !c.pair.Absent() || c.pendingTkt == "" || ev.Direction != c.pendingDir {
		c.ignoreLocked(ev)
		return
	}
	c.pos = Position{Direction: c.pendingDir, Quantity: ev.FilledQty, EntryPrice: ev.FillPrice}
	riskUnit := c.pendingRisk
	c.pendingDir, c.pendingTkt, c.pendingRisk = Flat, "", 0

	stopPrice, targetPrice, err := BracketPrices(c.pos.Direction, c.pos.EntryPrice, riskUnit, c.cfg.StopMultiple, c.cfg.TargetMultiple)
	if err != nil {
		// The position must never sit unprotected, so a missing risk unit at
		// fill time kills the trade outright.
		c.log.Error("cannot derive bracket prices, liquidating",
			zap.Float64("risk_unit", riskUnit), zap.Error(err))
		c.flattenLocked("invalid risk unit at entry fill")
		return
	}

	closeDir := c.pos.Direction.Opposite()
	stopTkt, err := c.gw.SubmitStopOrder(closeDir, c.pos.Quantity, stopPrice)
	if err != nil {
		c.metrics.BracketsFailed.Inc()
		c.log.Error("stop submission failed, liquidating", zap.Error(err))
		c.flattenLocked("stop submission failed")
		return
	}
	targetTkt, err := c.gw.SubmitLimitOrder(closeDir, c.pos.Quantity, targetPrice)
	if err != nil {
		// The pair is atomic-or-nothing: a lone stop never protects a position.
		c.metrics.BracketsFailed.Inc()
		c.gw.Cancel(stopTkt, "target submission failed")
		c.log.Error("target submission failed, liquidating", zap.Error(err))
		c.flattenLocked("target submission failed")
		return
	}
	c.pair = BracketPair{Stop: stopTkt, Target: targetTkt}
	c.metrics.BracketsPlaced.Inc()
	c.log.Info("position bracketed",
		zap.String("direction", string(c.pos.Direction)),
		zap.Float64("entry_price", c.pos.EntryPrice),
		zap.Float64("quantity", c.pos.Quantity),
		zap.Float64("stop_price", stopPrice),
		zap.Float64("target_price", targetPrice))
}

func (c *Controller) onLegFilledLocked(ev OrderEvent, filledLeg, otherLeg Ticket, what string) {
	if filledLeg == "" || ev.OrderID != filledLeg {
		c.ignoreLocked(ev)
		return
	}
	if otherLeg != "" {
		c.gw.Cancel(otherLeg, what)
	}
	c.metrics.Exits.Inc()
	c.log.Info(what,
		zap.Float64("fill_price", ev.FillPrice),
		zap.Float64("entry_price", c.pos.EntryPrice))
	c.resetLocked()
}

func (c *Controller) onCanceledLocked(ev OrderEvent) {
	switch {
	case ev.Kind == KindEntry && c.pendingTkt != "" && ev.OrderID == c.pendingTkt:
		c.log.Info("entry canceled before fill", zap.String("ticket", string(ev.OrderID)))
		c.resetLocked()
	case ev.Kind == KindStop && ev.OrderID == c.pair.Stop && c.pair.Stop != "":
		c.pair.Stop = ""
		c.dropPairIfFlatLocked()
	case ev.Kind == KindTarget && ev.OrderID == c.pair.Target && c.pair.Target != "":
		c.pair.Target = ""
		c.dropPairIfFlatLocked()
	default:
		c.ignoreLocked(ev)
	}
}

func (c *Controller) onRejectedLocked(ev OrderEvent) {
	if ev.Kind == KindEntry && c.pendingTkt != "" && ev.OrderID == c.pendingTkt && c.pos.Direction == Flat {
		c.log.Warn("entry order rejected",
			zap.String("ticket", string(ev.OrderID)),
			zap.String("status", string(ev.Status)))
		c.resetLocked()
		return
	}
	c.ignoreLocked(ev)
}

// dropPairIfFlatLocked clears any remaining leg reference once the position is
// gone, e.g. when a manual liquidation raced ahead of the cancel confirms.
func (c *Controller) dropPairIfFlatLocked() {
	if c.pos.Direction == Flat {
		c.pair = BracketPair{}
	}
}

func (c *Controller) flattenLocked(reason string) {
	if c.pair.Stop != "" {
		c.gw.Cancel(c.pair.Stop, reason)
	}
	if c.pair.Target != "" {
		c.gw.Cancel(c.pair.Target, reason)
	}
	if c.pendingTkt != "" {
		c.gw.Cancel(c.pendingTkt, reason)
	}
	c.gw.Liquidate(reason)
	c.metrics.Liquidations.Inc()
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.pos = Position{Direction: Flat}
	c.pair = BracketPair{}
	c.pendingDir = Flat
	c.pendingTkt = ""
	c.pendingRisk = 0
}

func (c *Controller) ignoreLocked(ev OrderEvent) {
	c.metrics.EventsIgnored.Inc()
	c.log.Debug("order event ignored",
		zap.String("order_id", string(ev.OrderID)),
		zap.String("status", string(ev.Status)),
		zap.String("kind", string(ev.Kind)))
}

func (c *Controller) stateLocked() State {
	if c.pos.Direction == Flat {
		if c.pendingTkt != "" {
			return StateEntryPending
		}
		return StateFlat
	}
	if c.pair.Present() {
		return StateOpenBracketed
	}
	return StateOpenUnbracketed
}
