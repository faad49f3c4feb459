package signal

import (
	"fmt"
	"math"
)

// ATR returns the latest average true range with Wilder smoothing.
// Needs period+1 bars; the first bar only seeds the previous close.
func ATR(bars []Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("atr period must be > 0, got %d", period)
	}
	if len(bars) <= period {
		return 0, fmt.Errorf("atr needs %d bars, got %d: %w", period+1, len(bars), ErrNotReady)
	}
	var atr float64
	for i := 1; i <= period; i++ {
		atr += trueRange(bars[i], bars[i-1].Close)
	}
	atr /= float64(period)
	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRange(bars[i], bars[i-1].Close)) / float64(period)
	}
	return atr, nil
}

func trueRange(b Bar, prevClose float64) float64 {
	tr := b.High - b.Low
	if hc := math.Abs(b.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(b.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}
