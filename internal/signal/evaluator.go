package signal

import (
	"errors"

	"kr-reversion-bot/internal/bracket"
)

// ErrNotReady marks an evaluation attempted before enough bars accumulated.
var ErrNotReady = errors.New("not enough bars")

type Config struct {
	RSIPeriod   int
	Oversold    float64
	Overbought  float64
	ExitLevel   float64
	ATRPeriod   int
	KRPeriod    int
	KRBandwidth float64
}

// Evaluation carries the decision plus the inputs that produced it, so the
// caller can log and chart them without recomputing.
type Evaluation struct {
	Signal   bracket.Signal
	RiskUnit float64
	RSI      float64
	ATR      float64
	KR       float64
	Close    float64
}

// Evaluator turns a bar window into an opaque enter/exit/hold decision for the
// bracket controller. Mean-reversion rules: go long when RSI is oversold and
// price sits below the kernel regression curve, short on the mirror condition,
// and exit a held position when RSI crosses back through the exit level. The
// current ATR rides along as the risk unit used to size the bracket legs.
type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Evaluate(bars []Bar, held bracket.Direction) (Evaluation, error) {
	values := closes(bars)
	rsi, err := RSI(values, e.cfg.RSIPeriod)
	if err != nil {
		return Evaluation{Signal: bracket.SignalHold}, err
	}
	atr, err := ATR(bars, e.cfg.ATRPeriod)
	if err != nil {
		return Evaluation{Signal: bracket.SignalHold}, err
	}
	kr, err := KernelRegression(values, e.cfg.KRPeriod, e.cfg.KRBandwidth)
	if err != nil {
		return Evaluation{Signal: bracket.SignalHold}, err
	}

	out := Evaluation{
		Signal:   bracket.SignalHold,
		RiskUnit: atr,
		RSI:      rsi,
		ATR:      atr,
		KR:       kr,
		Close:    values[len(values)-1],
	}
	switch held {
	case bracket.Flat:
		if rsi < e.cfg.Oversold && out.Close < kr {
			out.Signal = bracket.SignalEnterLong
		} else if rsi > e.cfg.Overbought && out.Close > kr {
			out.Signal = bracket.SignalEnterShort
		}
	case bracket.Long:
		if rsi > e.cfg.ExitLevel {
			out.Signal = bracket.SignalExitNow
		}
	case bracket.Short:
		if rsi < e.cfg.ExitLevel {
			out.Signal = bracket.SignalExitNow
		}
	}
	return out, nil
}
