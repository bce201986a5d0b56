// Package scoring turns wallet transaction histories into batch-relative risk scores.
//
// The pipeline is Extract → Normalize → Score. Normalization needs every wallet in
// the batch, so the only entry point that produces scores takes the whole batch.
package scoring

import (
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/rewired-gh/walletrisk/internal/models"
)

const secondsPerDay = 86400

// Extract computes the raw features of one wallet as of the given time.
// An empty history is valid and yields the zero WalletFeatures.
func Extract(address string, txs []models.TransactionRecord, asOf time.Time) models.WalletFeatures {
	if len(txs) == 0 {
		return models.WalletFeatures{}
	}

	// The explorer returns records oldest first; re-sort a copy if it did not.
	if !sort.SliceIsSorted(txs, func(i, j int) bool { return txs[i].Timestamp < txs[j].Timestamp }) {
		sorted := make([]models.TransactionRecord, len(txs))
		copy(sorted, txs)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
		txs = sorted
	}

	ageDays := float64(asOf.Unix()-txs[0].Timestamp) / secondsPerDay
	if ageDays < 0 {
		ageDays = 0
	}

	self := strings.ToLower(address)
	counterparties := make(map[string]struct{})
	sum := new(big.Int)
	for _, tx := range txs {
		if tx.Value != nil {
			sum.Add(sum, tx.Value)
		}
		cp := strings.ToLower(tx.Counterparty)
		if cp == "" || cp == self {
			continue
		}
		counterparties[cp] = struct{}{}
	}

	avg, _ := new(big.Float).Quo(new(big.Float).SetInt(sum), big.NewFloat(float64(len(txs)))).Float64()

	return models.WalletFeatures{
		AgeDays:              ageDays,
		TxCount:              len(txs),
		AvgTxValue:           avg,
		UniqueCounterparties: len(counterparties),
	}
}
