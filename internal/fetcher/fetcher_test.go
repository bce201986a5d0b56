package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rewired-gh/walletrisk/internal/models"
)

type fakeSource struct {
	mu       sync.Mutex
	inFlight int32
	peak     int32
	fail     map[string]error
	delay    time.Duration
}

func (f *fakeSource) FetchTransactions(ctx context.Context, address string) ([]models.TransactionRecord, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()

	time.Sleep(f.delay)
	if err, ok := f.fail[address]; ok {
		return nil, err
	}
	return []models.TransactionRecord{{Counterparty: address, Direction: models.Received}}, nil
}

func addresses(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("0x%040d", i)
	}
	return out
}

func TestFetchAll_PreservesOrderAndIsolatesFailures(t *testing.T) {
	addrs := addresses(6)
	src := &fakeSource{fail: map[string]error{addrs[2]: errors.New("boom")}}

	histories := FetchAll(context.Background(), src, addrs, 3)
	if len(histories) != len(addrs) {
		t.Fatalf("got %d histories, want %d", len(histories), len(addrs))
	}
	for i, h := range histories {
		if h.Address != addrs[i] {
			t.Errorf("history %d: address %s, want %s", i, h.Address, addrs[i])
		}
		if i == 2 {
			if h.Err == nil {
				t.Error("expected failure to be recorded for wallet 2")
			}
			continue
		}
		if h.Err != nil || len(h.Transactions) != 1 || h.Transactions[0].Counterparty != addrs[i] {
			t.Errorf("history %d not fetched correctly: %+v", i, h)
		}
	}
	if Failed(histories) != 1 {
		t.Errorf("Failed() = %d, want 1", Failed(histories))
	}
}

func TestFetchAll_RespectsConcurrencyLimit(t *testing.T) {
	src := &fakeSource{delay: 10 * time.Millisecond}
	FetchAll(context.Background(), src, addresses(10), 2)
	if src.peak > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", src.peak)
	}
}

func TestFetchAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	histories := FetchAll(ctx, &fakeSource{}, addresses(3), 1)
	if Failed(histories) != 3 {
		t.Errorf("expected all wallets to fail on a cancelled context, got %d", Failed(histories))
	}
}

func TestFetchAll_Empty(t *testing.T) {
	if got := FetchAll(context.Background(), &fakeSource{}, nil, 4); len(got) != 0 {
		t.Errorf("expected no histories, got %d", len(got))
	}
}
