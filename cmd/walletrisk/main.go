package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rewired-gh/walletrisk/internal/config"
	"github.com/rewired-gh/walletrisk/internal/etherscan"
	"github.com/rewired-gh/walletrisk/internal/fetcher"
	"github.com/rewired-gh/walletrisk/internal/logger"
	"github.com/rewired-gh/walletrisk/internal/models"
	"github.com/rewired-gh/walletrisk/internal/report"
	"github.com/rewired-gh/walletrisk/internal/scoring"
	"github.com/rewired-gh/walletrisk/internal/storage"
	"github.com/rewired-gh/walletrisk/internal/telegram"
	"github.com/rewired-gh/walletrisk/internal/wallets"
)

// Exit statuses.
const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
)

var (
	configPath = flag.String("config", "", "Path to configuration file (optional)")
	inputPath  = flag.String("input", "wallets.csv", "Wallet list, one address per row; - for stdin")
	outputPath = flag.String("output", "-", "Where to write results; - for stdout")
	format     = flag.String("format", "table", "Output format: table, csv or json")
	asOfFlag   = flag.String("as-of", "", "Scoring time as RFC 3339 or Unix seconds (default now)")

	listRuns   = flag.Int("runs", 0, "List the N most recent stored runs and exit")
	showRun    = flag.String("run", "", "Print the stored results of a run and exit")
	historyFor = flag.String("history", "", "Print the latest stored score of an address and exit")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return exitConfig
	}

	if q := (historyQuery{runs: *listRuns, runID: *showRun, address: *historyFor}); q.active() {
		return runHistory(cfg, q)
	}

	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return exitConfig
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if *configPath != "" {
		logger.Info("Configuration loaded from %s", *configPath)
	}

	asOf, err := parseAsOf(*asOfFlag, time.Now())
	if err != nil {
		logger.Error("Invalid -as-of: %v", err)
		return exitConfig
	}
	outFormat, err := report.ParseFormat(*format)
	if err != nil {
		logger.Error("Invalid -format: %v", err)
		return exitConfig
	}

	scorer, err := scoring.New(cfg.Weights(), cfg.Method())
	if err != nil {
		logger.Error("Invalid scoring weights: %v", err)
		return exitConfig
	}

	addresses, err := readWallets(*inputPath)
	if err != nil {
		logger.Error("Failed to read wallets: %v", err)
		return exitConfig
	}
	logger.Info("Loaded %d wallets from %s", len(addresses), *inputPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := etherscan.NewClient(
		cfg.Etherscan.BaseURL,
		cfg.Etherscan.APIKey,
		cfg.Etherscan.Timeout,
		etherscan.ClientConfig{
			ChainID:           cfg.Etherscan.ChainID,
			PageSize:          cfg.Etherscan.PageSize,
			MaxRetries:        cfg.Etherscan.MaxRetries,
			RetryDelayBase:    cfg.Etherscan.RetryDelayBase,
			RequestsPerSecond: cfg.Fetcher.RequestsPerSecond,
		},
	)

	startTime := time.Now()
	histories := fetcher.FetchAll(ctx, client, addresses, cfg.Fetcher.Concurrency)
	failed := fetcher.Failed(histories)
	logger.Info("Fetched %d wallets in %v (%d failed)", len(histories), time.Since(startTime), failed)

	results := scorer.ScoreBatch(histories, asOf)
	logger.Info("Calculated risk scores as of %s (method: %s)", asOf.UTC().Format(time.RFC3339), scorer.Method())

	if err := writeReport(*outputPath, outFormat, results); err != nil {
		logger.Error("Failed to write report: %v", err)
		return exitFailure
	}

	record := &models.Run{
		AsOf:        asOf,
		Method:      string(scorer.Method()),
		WeightsJSON: weightsJSON(scorer.Weights()),
		WalletCount: len(results),
		FailedCount: failed,
	}

	if cfg.Storage.Enabled {
		saveRun(cfg, record, results)
	}
	if cfg.Telegram.Enabled {
		sendDigest(ctx, cfg, record, results)
	}

	if failed > 0 {
		logger.Warn("%d of %d wallets could not be fetched and are reported as no_data", failed, len(results))
		return exitFailure
	}
	return exitOK
}

// parseAsOf accepts Unix seconds or RFC 3339. Empty means now.
func parseAsOf(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or Unix seconds, got %q", s)
	}
	return t, nil
}

func readWallets(path string) ([]string, error) {
	addresses, err := wallets.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		logger.Warn("Wallet list %s is empty", path)
	}
	return addresses, nil
}

func writeReport(path string, f report.Format, results []models.WalletResult) error {
	var w io.Writer = os.Stdout
	if path != "-" && path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		w = file
	}
	if err := report.Write(w, f, results); err != nil {
		return err
	}
	if w != os.Stdout {
		logger.Info("Results saved to %s", path)
	}
	return nil
}

func weightsJSON(w scoring.Weights) string {
	b, err := json.Marshal(w)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func saveRun(cfg *config.Config, run *models.Run, results []models.WalletResult) {
	store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
	if err != nil {
		logger.Error("Failed to initialize storage: %v", err)
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	if err := store.SaveRun(run, results); err != nil {
		logger.Error("Failed to save run: %v", err)
		return
	}
	logger.Info("Saved run %s to %s", run.ID, cfg.Storage.DBPath)
}

func sendDigest(ctx context.Context, cfg *config.Config, run *models.Run, results []models.WalletResult) {
	client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
	if err != nil {
		logger.Error("Failed to initialize Telegram client: %v", err)
		return
	}

	digest := telegram.BuildDigest(run.ID, run.AsOf, results, cfg.Telegram.TopK, cfg.Telegram.MinScore)
	if err := client.SendDigest(ctx, digest); err != nil {
		logger.Error("Failed to send Telegram digest: %v", err)
		return
	}
	logger.Info("Sent Telegram digest with %d wallets", len(digest.Wallets))
}
