package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/rewired-gh/walletrisk/internal/models"
)

// Method selects how raw features are mapped into [0, 1].
type Method string

const (
	MinMax Method = "minmax"
	ZScore Method = "zscore"
)

// Midpoint is the value every wallet receives in a dimension with no spread.
const Midpoint = 0.5

// ParseMethod accepts a method name case-insensitively. Empty means MinMax.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MinMax:
		return MinMax, nil
	case ZScore:
		return ZScore, nil
	default:
		return "", fmt.Errorf("unknown normalization method %q (want minmax or zscore)", s)
	}
}

const numDims = 4

func toVector(f models.WalletFeatures) [numDims]float64 {
	return [numDims]float64{f.AgeDays, float64(f.TxCount), f.AvgTxValue, float64(f.UniqueCounterparties)}
}

func fromVector(v [numDims]float64) models.NormalizedFeatures {
	return models.NormalizedFeatures{
		AgeDays:              v[0],
		TxCount:              v[1],
		AvgTxValue:           v[2],
		UniqueCounterparties: v[3],
	}
}

// Normalize maps every wallet's features into [0, 1] relative to the batch.
// Output has one entry per input, in the same order.
func Normalize(batch []models.WalletFeatures, method Method) []models.NormalizedFeatures {
	out := make([]models.NormalizedFeatures, len(batch))
	if len(batch) == 0 {
		return out
	}

	raw := make([][numDims]float64, len(batch))
	for i, f := range batch {
		raw[i] = toVector(f)
	}

	norm := make([][numDims]float64, len(batch))
	column := make([]float64, len(batch))
	for d := 0; d < numDims; d++ {
		for i := range raw {
			column[i] = raw[i][d]
		}
		var scaled []float64
		if method == ZScore {
			scaled = zScoreColumn(column)
		} else {
			scaled = minMaxColumn(column)
		}
		for i, v := range scaled {
			norm[i][d] = v
		}
	}

	for i := range norm {
		out[i] = fromVector(norm[i])
	}
	return out
}

func minMaxColumn(col []float64) []float64 {
	lo, hi := col[0], col[0]
	for _, v := range col[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(col))
	if hi == lo {
		for i := range out {
			out[i] = Midpoint
		}
		return out
	}

	span := hi - lo
	for i, v := range col {
		out[i] = clamp01((v - lo) / span)
	}
	return out
}

// zScoreColumn standardizes the column and squashes it through the normal CDF.
func zScoreColumn(col []float64) []float64 {
	var w welford
	for _, v := range col {
		w.add(v)
	}
	sigma := w.stddev()

	out := make([]float64, len(col))
	if sigma == 0 {
		for i := range out {
			out[i] = Midpoint
		}
		return out
	}

	for i, v := range col {
		z := (v - w.mean) / sigma
		out[i] = clamp01(0.5 * (1 + math.Erf(z/math.Sqrt2)))
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
