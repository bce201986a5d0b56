package scoring

import (
	"time"

	"github.com/rewired-gh/walletrisk/internal/logger"
	"github.com/rewired-gh/walletrisk/internal/models"
)

// Scorer scores whole batches with a fixed weight set and normalization method.
type Scorer struct {
	weights Weights
	method  Method
}

// New validates the weights before returning a Scorer.
func New(weights Weights, method Method) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if method == "" {
		method = MinMax
	}
	return &Scorer{weights: weights, method: method}, nil
}

func (s *Scorer) Weights() Weights { return s.weights }

func (s *Scorer) Method() Method { return s.method }

// ScoreBatch scores every successfully fetched wallet against the others in the batch.
// Wallets whose fetch failed are returned as no_data in their original position and
// take no part in normalization.
func (s *Scorer) ScoreBatch(histories []models.WalletHistory, asOf time.Time) []models.WalletResult {
	results := make([]models.WalletResult, len(histories))

	var features []models.WalletFeatures
	var scoredIdx []int
	for i, h := range histories {
		results[i].Address = h.Address
		if h.Err != nil {
			results[i].Status = models.StatusNoData
			results[i].Error = h.Err.Error()
			continue
		}
		f := Extract(h.Address, h.Transactions, asOf)
		results[i].Features = f
		features = append(features, f)
		scoredIdx = append(scoredIdx, i)
	}

	normalized := Normalize(features, s.method)

	var maxScore int
	for j, nf := range normalized {
		i := scoredIdx[j]
		results[i].Status = models.StatusScored
		results[i].Score = Score(nf, s.weights)

		r := results[i]
		if r.Score.Value > maxScore {
			maxScore = r.Score.Value
		}
		logger.Debug("Scored %s: score=%d age=%.2fd txs=%d avg=%.0f cps=%d norm=(%.3f %.3f %.3f %.3f)",
			r.Address, r.Score.Value, r.Features.AgeDays, r.Features.TxCount, r.Features.AvgTxValue,
			r.Features.UniqueCounterparties, nf.AgeDays, nf.TxCount, nf.AvgTxValue, nf.UniqueCounterparties)
	}

	logger.Debug("Scored batch of %d wallets (%d no_data, method=%s, max_score=%d)",
		len(histories), len(histories)-len(normalized), s.method, maxScore)

	return results
}
