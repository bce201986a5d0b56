package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/rewired-gh/walletrisk/internal/models"
)

// ErrWeightSum is returned when a weight set does not sum to 1.0.
var ErrWeightSum = errors.New("weights must sum to 1.0")

const weightTolerance = 1e-9

// Weights are static, hand-chosen coefficients. They are not fit from data, so
// the resulting score is a heuristic ranking and not a calibrated probability.
//
// Age and transaction count are risk-decreasing and enter the score inverted.
// Average value and counterparty count are risk-increasing and enter as-is.
type Weights struct {
	AgeDays              float64 `json:"age_days"`
	TxCount              float64 `json:"tx_count"`
	AvgTxValue           float64 `json:"avg_tx_value"`
	UniqueCounterparties float64 `json:"unique_counterparties"`
}

func DefaultWeights() Weights {
	return Weights{
		AgeDays:              0.30,
		TxCount:              0.25,
		AvgTxValue:           0.20,
		UniqueCounterparties: 0.25,
	}
}

func (w Weights) Sum() float64 {
	return w.AgeDays + w.TxCount + w.AvgTxValue + w.UniqueCounterparties
}

// Validate rejects weights outside [0, 1] and sets that do not sum to 1.0.
// Weights are never renormalized.
func (w Weights) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"age_days", w.AgeDays},
		{"tx_count", w.TxCount},
		{"avg_tx_value", w.AvgTxValue},
		{"unique_counterparties", w.UniqueCounterparties},
	}
	for _, n := range named {
		if math.IsNaN(n.value) || n.value < 0 || n.value > 1 {
			return fmt.Errorf("weight %s must be between 0.0 and 1.0, got %v", n.name, n.value)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w, got %.6f", ErrWeightSum, sum)
	}
	return nil
}

// Score combines one wallet's normalized features into a 0-1000 risk score.
func Score(nf models.NormalizedFeatures, w Weights) models.RiskScore {
	contrib := models.NormalizedFeatures{
		AgeDays:              w.AgeDays * (1 - nf.AgeDays),
		TxCount:              w.TxCount * (1 - nf.TxCount),
		AvgTxValue:           w.AvgTxValue * nf.AvgTxValue,
		UniqueCounterparties: w.UniqueCounterparties * nf.UniqueCounterparties,
	}

	raw := clamp01(contrib.AgeDays + contrib.TxCount + contrib.AvgTxValue + contrib.UniqueCounterparties)

	value := int(math.Round(raw * models.MaxScore))
	if value < models.MinScore {
		value = models.MinScore
	}
	if value > models.MaxScore {
		value = models.MaxScore
	}

	return models.RiskScore{
		Value: value,
		Raw:   raw,
		Breakdown: models.Breakdown{
			Normalized:    nf,
			Contributions: contrib,
		},
	}
}
