package main

import (
	"errors"
	"io"
	"log"
	"os"

	"github.com/rewired-gh/walletrisk/internal/config"
	"github.com/rewired-gh/walletrisk/internal/logger"
	"github.com/rewired-gh/walletrisk/internal/models"
	"github.com/rewired-gh/walletrisk/internal/report"
	"github.com/rewired-gh/walletrisk/internal/storage"
)

// historyQuery selects a read-only view of stored runs. At most one field is used,
// in the order runID, address, runs.
type historyQuery struct {
	runs    int
	runID   string
	address string
}

func (q historyQuery) active() bool {
	return q.runs > 0 || q.runID != "" || q.address != ""
}

// runHistory answers q from the score database without contacting Etherscan.
func runHistory(cfg *config.Config, q historyQuery) int {
	if err := cfg.ValidateHistory(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return exitConfig
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	outFormat, err := report.ParseFormat(*format)
	if err != nil {
		logger.Error("Invalid -format: %v", err)
		return exitConfig
	}

	store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
	if err != nil {
		logger.Error("Failed to open storage: %v", err)
		return exitFailure
	}
	defer store.Close()

	if err := showHistory(os.Stdout, store, outFormat, q); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.Warn("%v", err)
		} else {
			logger.Error("Failed to read history: %v", err)
		}
		return exitFailure
	}
	return exitOK
}

func showHistory(w io.Writer, store *storage.Storage, f report.Format, q historyQuery) error {
	switch {
	case q.runID != "":
		if _, err := store.GetRun(q.runID); err != nil {
			return err
		}
		results, err := store.ListResults(q.runID)
		if err != nil {
			return err
		}
		return report.Write(w, f, results)

	case q.address != "":
		res, err := store.LatestResult(q.address)
		if err != nil {
			return err
		}
		return report.Write(w, f, []models.WalletResult{*res})

	default:
		runs, err := store.ListRuns(q.runs)
		if err != nil {
			return err
		}
		return report.WriteRuns(w, runs)
	}
}
