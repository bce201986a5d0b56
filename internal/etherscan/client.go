// Package etherscan fetches wallet transaction histories from the Etherscan API.
package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/walletrisk/internal/logger"
	"github.com/rewired-gh/walletrisk/internal/models"
	"github.com/rewired-gh/walletrisk/internal/retry"
)

var (
	// ErrInvalidAddress is returned for addresses that are not 0x-prefixed 20-byte hex.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrAPI is returned when Etherscan answers with a non-retryable error status.
	ErrAPI = errors.New("etherscan api error")
)

// maxResultWindow is the most records Etherscan serves for one query (page × offset).
const maxResultWindow = 10000

const noTransactionsMessage = "No transactions found"

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsValidAddress reports whether s is a syntactically valid EVM address.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(strings.TrimSpace(s))
}

// FetchError reports why one wallet's history could not be fetched.
type FetchError struct {
	Address string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Address, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClientConfig holds tuning knobs for the Etherscan client.
type ClientConfig struct {
	ChainID           int
	PageSize          int
	MaxRetries        int
	RetryDelayBase    time.Duration
	RequestsPerSecond float64 // 0 disables pacing
}

// Client provides access to the Etherscan account API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	config     ClientConfig
	limiter    *rate.Limiter // nil when unpaced
}

// NewClient creates a new Etherscan client. The limiter is shared by every
// request made through the client, across goroutines.
func NewClient(baseURL, apiKey string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.ChainID <= 0 {
		cfg.ChainID = 1
	}
	if cfg.PageSize <= 0 || cfg.PageSize > maxResultWindow {
		cfg.PageSize = 1000
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config:  cfg,
		limiter: newLimiter(cfg.RequestsPerSecond),
	}
}

// envelope is the common Etherscan response wrapper. Result is an array on
// success and a string on error.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type rawTx struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	ContractAddress string `json:"contractAddress"`
	IsError         string `json:"isError"`
}

// FetchTransactions returns the full normal-transaction history of address,
// oldest first. A wallet with no history yields an empty slice and no error.
// Every failure is a *FetchError.
func (c *Client) FetchTransactions(ctx context.Context, address string) ([]models.TransactionRecord, error) {
	address = strings.TrimSpace(address)
	if !IsValidAddress(address) {
		return nil, &FetchError{Address: address, Err: ErrInvalidAddress}
	}
	self := strings.ToLower(address)

	var records []models.TransactionRecord
	seen := make(map[string]struct{})
	var startBlock int64
	page := 1

	for {
		raws, err := c.fetchPage(ctx, self, startBlock, page)
		if err != nil {
			return nil, &FetchError{Address: address, Err: err}
		}

		var lastBlock int64
		for _, raw := range raws {
			rec, err := toRecord(self, raw)
			if err != nil {
				return nil, &FetchError{Address: address, Err: err}
			}
			lastBlock = rec.BlockNumber
			// Restarting from the last block re-serves its records.
			if _, dup := seen[rec.Hash]; dup {
				continue
			}
			seen[rec.Hash] = struct{}{}
			records = append(records, rec)
		}

		if len(raws) < c.config.PageSize {
			break
		}

		if (page+1)*c.config.PageSize > maxResultWindow {
			if lastBlock == startBlock {
				logger.Warn("History of %s exceeds %d records within block %d, truncating", address, maxResultWindow, startBlock)
				break
			}
			startBlock = lastBlock
			page = 1
			continue
		}
		page++
	}

	logger.Debug("Fetched %d transactions for %s", len(records), address)
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, address string, startBlock int64, page int) ([]rawTx, error) {
	q := url.Values{}
	q.Set("chainid", strconv.Itoa(c.config.ChainID))
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", address)
	q.Set("startblock", strconv.FormatInt(startBlock, 10))
	q.Set("endblock", "99999999")
	q.Set("page", strconv.Itoa(page))
	q.Set("offset", strconv.Itoa(c.config.PageSize))
	q.Set("sort", "asc")
	q.Set("apikey", c.apiKey)

	var raws []rawTx
	err := c.doRequest(ctx, c.baseURL+"?"+q.Encode(), func(env envelope) error {
		if env.Status != "1" {
			if env.Message == noTransactionsMessage {
				raws = nil
				return nil
			}
			return apiError(env)
		}
		if err := json.Unmarshal(env.Result, &raws); err != nil {
			return retry.Permanent(fmt.Errorf("failed to decode transactions: %w", err))
		}
		return nil
	})
	return raws, err
}

// apiError classifies a status "0" response. Rate limiting is transient;
// anything else (bad key, bad address) will not improve on retry.
func apiError(env envelope) error {
	var detail string
	if err := json.Unmarshal(env.Result, &detail); err != nil {
		detail = string(env.Result)
	}
	err := fmt.Errorf("%w: %s: %s", ErrAPI, env.Message, detail)
	if strings.Contains(strings.ToLower(detail), "rate limit") {
		return err
	}
	return retry.Permanent(err)
}

// doRequest performs a GET with retry, pacing every attempt, and hands the
// decoded envelope to handle.
func (c *Client) doRequest(ctx context.Context, urlStr string, handle func(envelope) error) error {
	policy := retry.Policy{
		MaxAttempts: c.config.MaxRetries + 1,
		BaseDelay:   c.config.RetryDelayBase,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			logger.Warn("Etherscan request failed (attempt %d), retrying in %v: %v", attempt, wait, err)
		},
	}

	return retry.Do(ctx, policy, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("server error: %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return retry.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
		}

		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return handle(env)
	})
}

func toRecord(self string, raw rawTx) (models.TransactionRecord, error) {
	ts, err := strconv.ParseInt(raw.TimeStamp, 10, 64)
	if err != nil {
		return models.TransactionRecord{}, fmt.Errorf("bad timestamp %q in %s: %w", raw.TimeStamp, raw.Hash, err)
	}
	block, err := strconv.ParseInt(raw.BlockNumber, 10, 64)
	if err != nil {
		return models.TransactionRecord{}, fmt.Errorf("bad block number %q in %s: %w", raw.BlockNumber, raw.Hash, err)
	}
	value, ok := new(big.Int).SetString(raw.Value, 10)
	if !ok {
		return models.TransactionRecord{}, fmt.Errorf("bad value %q in %s", raw.Value, raw.Hash)
	}

	from := strings.ToLower(raw.From)
	to := strings.ToLower(raw.To)
	if to == "" {
		// Contract creation: the created contract is the other side.
		to = strings.ToLower(raw.ContractAddress)
	}

	rec := models.TransactionRecord{
		Hash:        raw.Hash,
		BlockNumber: block,
		Timestamp:   ts,
		Value:       value,
	}
	if from == self {
		rec.Direction = models.Sent
		rec.Counterparty = to
	} else {
		rec.Direction = models.Received
		rec.Counterparty = from
	}
	if err := rec.Validate(); err != nil {
		return models.TransactionRecord{}, fmt.Errorf("bad transaction %s: %w", raw.Hash, err)
	}
	return rec, nil
}

// newLimiter allows one request per 1/rps seconds with no burst. A
// non-positive rate disables pacing.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
