package signal

import (
	"fmt"
	"math"
)

const weightEpsilon = 1e-10

// KernelRegression returns the Nadaraya-Watson estimate for the most recent
// value: a weighted mean of the last period values where the weight of a value
// j steps back is exp(-0.5*(j/bandwidth)^2). A smaller bandwidth hugs the
// latest prices, a larger one smooths harder.
func KernelRegression(values []float64, period int, bandwidth float64) (float64, error) {
	if period < 1 {
		return 0, fmt.Errorf("kernel regression period must be >= 1, got %d", period)
	}
	if bandwidth <= 0 {
		return 0, fmt.Errorf("kernel regression bandwidth must be positive, got %f", bandwidth)
	}
	if len(values) < period {
		return 0, fmt.Errorf("kernel regression needs %d values, got %d: %w", period, len(values), ErrNotReady)
	}
	window := values[len(values)-period:]
	var sum, sumWeights float64
	last := len(window) - 1
	for i, v := range window {
		u := float64(i-last) / bandwidth
		w := math.Exp(-0.5 * u * u)
		sum += w * v
		sumWeights += w
	}
	if sumWeights <= weightEpsilon {
		return window[last], nil
	}
	return sum / sumWeights, nil
}
