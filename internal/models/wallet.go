package models

import "time"

// WalletFeatures are the raw, unnormalized metrics derived from one wallet's history.
type WalletFeatures struct {
	AgeDays              float64 `json:"age_days"`
	TxCount              int     `json:"tx_count"`
	AvgTxValue           float64 `json:"avg_tx_value"` // wei
	UniqueCounterparties int     `json:"unique_counterparties"`
}

// NormalizedFeatures maps each WalletFeatures field into [0, 1] relative to the
// batch it was scored in. The same wallet can normalize differently in another batch.
type NormalizedFeatures struct {
	AgeDays              float64 `json:"age_days"`
	TxCount              float64 `json:"tx_count"`
	AvgTxValue           float64 `json:"avg_tx_value"`
	UniqueCounterparties float64 `json:"unique_counterparties"`
}

// Breakdown keeps the normalized inputs and weighted contributions behind a score.
type Breakdown struct {
	Normalized    NormalizedFeatures `json:"normalized"`
	Contributions NormalizedFeatures `json:"contributions"`
}

// RiskScore is the final 0-1000 score. Higher means riskier by this heuristic.
type RiskScore struct {
	Value     int       `json:"value"`
	Raw       float64   `json:"raw"`
	Breakdown Breakdown `json:"breakdown"`
}

const (
	MinScore = 0
	MaxScore = 1000
)

// Band buckets the score into thirds of the scale.
func (s RiskScore) Band() string {
	switch {
	case s.Value < 334:
		return "low"
	case s.Value < 667:
		return "medium"
	default:
		return "high"
	}
}

// Status is the per-wallet outcome of a run.
type Status string

const (
	StatusScored Status = "scored"
	StatusNoData Status = "no_data"
)

// WalletResult is what the reporter receives for one wallet. Features and Score
// are only meaningful when Status is StatusScored.
type WalletResult struct {
	Address  string         `json:"address"`
	Status   Status         `json:"status"`
	Features WalletFeatures `json:"features"`
	Score    RiskScore      `json:"score"`
	Error    string         `json:"error,omitempty"`
}

// Scored reports whether the wallet received a score.
func (r WalletResult) Scored() bool {
	return r.Status == StatusScored
}

// Run describes one batch scoring pass.
type Run struct {
	ID          string    `json:"id"`
	AsOf        time.Time `json:"as_of"`
	Method      string    `json:"method"`
	WeightsJSON string    `json:"weights"`
	WalletCount int       `json:"wallet_count"`
	FailedCount int       `json:"failed_count"`
	CreatedAt   time.Time `json:"created_at"`
}
