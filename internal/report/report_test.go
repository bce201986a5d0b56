package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/walletrisk/internal/models"
)

func sampleResults() []models.WalletResult {
	return []models.WalletResult{
		{
			Address:  "0xaaaa000000000000000000000000000000000001",
			Status:   models.StatusScored,
			Features: models.WalletFeatures{AgeDays: 10, TxCount: 2, AvgTxValue: 1.5e18, UniqueCounterparties: 2},
			Score: models.RiskScore{
				Value: 700,
				Raw:   0.7,
				Breakdown: models.Breakdown{
					Contributions: models.NormalizedFeatures{AgeDays: 0.3, TxCount: 0.15, AvgTxValue: 0, UniqueCounterparties: 0.25},
				},
			},
		},
		{
			Address: "0xbbbb000000000000000000000000000000000002",
			Status:  models.StatusNoData,
			Error:   "invalid address",
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", Table, false},
		{"CSV", CSV, false},
		{"json", JSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, CSV, sampleResults()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][0] != "wallet_id" || rows[0][2] != "score" {
		t.Errorf("unexpected header: %v", rows[0])
	}

	scored := rows[1]
	if scored[2] != "700" || scored[3] != "high" || scored[6] != "1.500000" {
		t.Errorf("unexpected scored row: %v", scored)
	}

	failed := rows[2]
	if failed[1] != "no_data" || failed[2] != "" || failed[len(failed)-1] != "invalid address" {
		t.Errorf("unexpected no_data row: %v", failed)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, JSON, sampleResults()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("got %d entries, want 2", len(decoded))
	}
	if decoded[0]["band"] != "high" || decoded[0]["avg_tx_value_eth"] != 1.5 {
		t.Errorf("unexpected scored entry: %v", decoded[0])
	}
	if decoded[1]["status"] != "no_data" || decoded[1]["error"] != "invalid address" {
		t.Errorf("unexpected no_data entry: %v", decoded[1])
	}
	for _, key := range []string{"band", "score", "features", "avg_tx_value_eth"} {
		if _, ok := decoded[1][key]; ok {
			t.Errorf("no_data entry should not carry %q: %v", key, decoded[1])
		}
	}
	score, ok := decoded[0]["score"].(map[string]any)
	if !ok || score["value"] != float64(700) {
		t.Errorf("scored entry should carry its score: %v", decoded[0]["score"])
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Table, sampleResults()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "WALLET") || !strings.Contains(out, "700") {
		t.Errorf("table missing header or score:\n%s", out)
	}
	if !strings.Contains(out, "no data: invalid address") {
		t.Errorf("table missing failure annotation:\n%s", out)
	}
}

func TestWeiToEth(t *testing.T) {
	if got := WeiToEth(2.5e18); got != 2.5 {
		t.Errorf("WeiToEth(2.5e18) = %v, want 2.5", got)
	}
	if got := WeiToEth(0); got != 0 {
		t.Errorf("WeiToEth(0) = %v, want 0", got)
	}
}

func TestWriteRuns(t *testing.T) {
	runs := []models.Run{
		{ID: "run-2", AsOf: time.Unix(86400, 0), Method: "zscore", WalletCount: 3, FailedCount: 1, CreatedAt: time.Unix(90000, 0)},
		{ID: "run-1", AsOf: time.Unix(0, 0), Method: "minmax", WalletCount: 2, CreatedAt: time.Unix(100, 0)},
	}

	var buf bytes.Buffer
	if err := WriteRuns(&buf, runs); err != nil {
		t.Fatalf("WriteRuns: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header and 2 runs:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "run-2") || !strings.Contains(lines[1], "1970-01-02T00:00:00Z") {
		t.Errorf("unexpected first run line: %q", lines[1])
	}
	if !strings.Contains(lines[2], "minmax") {
		t.Errorf("unexpected second run line: %q", lines[2])
	}
}
