package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/walletrisk/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Score: 12.5", "Score: 12\\.5"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// Chat ID is parsed before the bot token is checked against the API.
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}

func scored(addr string, score int) models.WalletResult {
	return models.WalletResult{
		Address:  addr,
		Status:   models.StatusScored,
		Features: models.WalletFeatures{AgeDays: 3.5, TxCount: 4, UniqueCounterparties: 2},
		Score:    models.RiskScore{Value: score},
	}
}

func TestBuildDigest(t *testing.T) {
	results := []models.WalletResult{
		scored("0xa", 700),
		scored("0xb", 900),
		{Address: "0xc", Status: models.StatusNoData, Error: "boom"},
		scored("0xd", 300),
		scored("0xe", 800),
		scored("0xf", 700),
	}

	d := BuildDigest("run-1", time.Unix(0, 0), results, 3, 667)
	if d.Scored != 5 || d.NoData != 1 {
		t.Errorf("counts: scored=%d no_data=%d, want 5 and 1", d.Scored, d.NoData)
	}
	if len(d.Wallets) != 3 {
		t.Fatalf("got %d wallets, want top 3", len(d.Wallets))
	}
	want := []string{"0xb", "0xe", "0xa"}
	for i, w := range d.Wallets {
		if w.Address != want[i] {
			t.Errorf("position %d: %s, want %s", i, w.Address, want[i])
		}
	}
}

func TestFormatDigest(t *testing.T) {
	d := BuildDigest("a1b2-c3", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		[]models.WalletResult{scored("0xabc", 850)}, 10, 0)
	msg := formatDigest(d)

	for _, want := range []string{
		"*Wallet Risk Digest*",
		"2026\\-01\\-02 03:04:05",
		"1\\. `0xabc`",
		"*850* \\(high\\)",
		"age 3\\.5 d",
		"run `a1b2\\-c3`",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
