// Package report renders per-wallet results for analysts.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rewired-gh/walletrisk/internal/models"
)

// Format selects the output encoding.
type Format string

const (
	Table Format = "table"
	CSV   Format = "csv"
	JSON  Format = "json"
)

// ParseFormat accepts a format name case-insensitively. Empty means Table.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", Table:
		return Table, nil
	case CSV:
		return CSV, nil
	case JSON:
		return JSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, csv or json)", s)
	}
}

// Write renders results in the given format.
func Write(w io.Writer, format Format, results []models.WalletResult) error {
	switch format {
	case CSV:
		return writeCSV(w, results)
	case JSON:
		return writeJSON(w, results)
	default:
		return writeTable(w, results)
	}
}

var weiPerEth = new(big.Float).SetFloat64(1e18)

// WeiToEth converts a wei amount for display only.
func WeiToEth(wei float64) float64 {
	eth, _ := new(big.Float).Quo(big.NewFloat(wei), weiPerEth).Float64()
	return eth
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

var csvHeader = []string{
	"wallet_id", "status", "score", "band",
	"age_days", "tx_count", "avg_tx_value_eth", "unique_counterparties",
	"contrib_age", "contrib_tx_count", "contrib_avg_value", "contrib_counterparties",
	"error",
}

func writeCSV(w io.Writer, results []models.WalletResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range results {
		var row []string
		if r.Scored() {
			f, c := r.Features, r.Score.Breakdown.Contributions
			row = []string{
				r.Address, string(r.Status), strconv.Itoa(r.Score.Value), r.Score.Band(),
				formatFloat(f.AgeDays, 2), strconv.Itoa(f.TxCount), formatFloat(WeiToEth(f.AvgTxValue), 6),
				strconv.Itoa(f.UniqueCounterparties),
				formatFloat(c.AgeDays, 4), formatFloat(c.TxCount, 4), formatFloat(c.AvgTxValue, 4),
				formatFloat(c.UniqueCounterparties, 4),
				"",
			}
		} else {
			row = []string{r.Address, string(r.Status), "", "", "", "", "", "", "", "", "", "", r.Error}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// jsonResult leaves score and features out of no_data entries so they cannot
// be read as a zero-risk wallet.
type jsonResult struct {
	Address       string                 `json:"address"`
	Status        models.Status          `json:"status"`
	Band          string                 `json:"band,omitempty"`
	Score         *models.RiskScore      `json:"score,omitempty"`
	Features      *models.WalletFeatures `json:"features,omitempty"`
	AvgTxValueEth *float64               `json:"avg_tx_value_eth,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

func writeJSON(w io.Writer, results []models.WalletResult) error {
	out := make([]jsonResult, len(results))
	for i, r := range results {
		out[i] = jsonResult{Address: r.Address, Status: r.Status, Error: r.Error}
		if r.Scored() {
			score, features := r.Score, r.Features
			eth := WeiToEth(features.AvgTxValue)
			out[i].Band = score.Band()
			out[i].Score = &score
			out[i].Features = &features
			out[i].AvgTxValueEth = &eth
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

func writeTable(w io.Writer, results []models.WalletResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WALLET\tSCORE\tBAND\tAGE (d)\tTXS\tAVG (ETH)\tCOUNTERPARTIES\tNOTE")

	for _, r := range results {
		if !r.Scored() {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\tno data: %s\n", r.Address, r.Error)
			continue
		}
		f := r.Features
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.1f\t%d\t%.6f\t%d\t\n",
			r.Address, r.Score.Value, r.Score.Band(), f.AgeDays, f.TxCount, WeiToEth(f.AvgTxValue), f.UniqueCounterparties)
	}

	return tw.Flush()
}
