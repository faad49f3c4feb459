package bracket

import (
	"errors"
	"math"
)

var errBadRiskUnit = errors.New("risk unit must be a positive number")

// BracketPrices derives the protective stop and profit-target prices for a
// filled entry. The risk unit is a volatility scalar (ATR in the shipped
// signal source); stop and target sit stopMultiple and targetMultiple units
// away from the entry, on opposite sides for long versus short.
func BracketPrices(direction Direction, entryPrice, riskUnit, stopMultiple, targetMultiple float64) (stop, target float64, err error) {
	if riskUnit <= 0 || math.IsNaN(riskUnit) || math.IsInf(riskUnit, 0) {
		return 0, 0, errBadRiskUnit
	}
	switch direction {
	case Long:
		return entryPrice - stopMultiple*riskUnit, entryPrice + targetMultiple*riskUnit, nil
	case Short:
		return entryPrice + stopMultiple*riskUnit, entryPrice - targetMultiple*riskUnit, nil
	}
	return 0, 0, errors.New("no bracket prices for a flat direction")
}
