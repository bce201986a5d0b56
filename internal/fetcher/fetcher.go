// Package fetcher assembles the batch of wallet histories the scorer consumes.
package fetcher

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/walletrisk/internal/logger"
	"github.com/rewired-gh/walletrisk/internal/models"
)

// TransactionSource returns the transaction history of one address.
type TransactionSource interface {
	FetchTransactions(ctx context.Context, address string) ([]models.TransactionRecord, error)
}

// FetchAll fetches every address with at most concurrency requests in flight.
// One wallet failing never stops the others: its error is recorded in the
// matching WalletHistory. Results keep the order of addresses.
func FetchAll(ctx context.Context, src TransactionSource, addresses []string, concurrency int) []models.WalletHistory {
	if concurrency < 1 {
		concurrency = 1
	}

	histories := make([]models.WalletHistory, len(addresses))
	total := len(addresses)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, addr := range addresses {
		histories[i].Address = addr
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				histories[i].Err = err
				return nil
			}

			logger.Info("Processing wallet %d/%d: %s", i+1, total, addr)
			txs, err := src.FetchTransactions(gctx, addr)
			if err != nil {
				logger.Warn("No data for %s: %v", addr, err)
				histories[i].Err = err
				return nil
			}
			histories[i].Transactions = txs
			return nil
		})
	}

	// Workers never return errors; Wait only joins them.
	_ = g.Wait()
	return histories
}

// Failed counts the histories that could not be fetched.
func Failed(histories []models.WalletHistory) int {
	n := 0
	for _, h := range histories {
		if h.Err != nil {
			n++
		}
	}
	return n
}
