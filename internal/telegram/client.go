// Package telegram provides a client for sending scoring digests via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/walletrisk/internal/models"
	"github.com/rewired-gh/walletrisk/internal/retry"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// sendMarkdownV2 sends a MarkdownV2 message with backoff retry.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	policy := retry.Policy{MaxAttempts: c.maxRetries, BaseDelay: c.retryDelayBase}
	err := retry.Do(ctx, policy, func(context.Context) error {
		_, err := c.bot.Send(msg)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed after %d retries: %w", c.maxRetries, err)
	}
	return nil
}

// Digest summarizes one run for a chat message.
type Digest struct {
	RunID   string
	AsOf    time.Time
	Wallets []models.WalletResult // highest score first
	Scored  int
	NoData  int
}

// BuildDigest keeps the topK scored wallets at or above minScore, highest first.
// Ties keep batch order.
func BuildDigest(runID string, asOf time.Time, results []models.WalletResult, topK, minScore int) Digest {
	d := Digest{RunID: runID, AsOf: asOf}
	for _, r := range results {
		if !r.Scored() {
			d.NoData++
			continue
		}
		d.Scored++
		if r.Score.Value >= minScore {
			d.Wallets = append(d.Wallets, r)
		}
	}

	sort.SliceStable(d.Wallets, func(i, j int) bool {
		return d.Wallets[i].Score.Value > d.Wallets[j].Score.Value
	})
	if len(d.Wallets) > topK {
		d.Wallets = d.Wallets[:topK]
	}
	return d
}

// SendDigest sends the run summary. Nothing is sent when there is nothing to flag.
func (c *Client) SendDigest(ctx context.Context, d Digest) error {
	if len(d.Wallets) == 0 && d.NoData == 0 {
		return nil
	}
	return c.sendMarkdownV2(ctx, formatDigest(d))
}

// formatDigest formats a digest into a Telegram MarkdownV2 message.
func formatDigest(d Digest) string {
	var b strings.Builder
	b.WriteString("🚨 *Wallet Risk Digest*\n\n")

	dateStr := escapeMarkdownV2(d.AsOf.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "📅 As of: %s UTC\n", dateStr)
	fmt.Fprintf(&b, "🧮 Scored: %d, no data: %d\n\n", d.Scored, d.NoData)

	for i, w := range d.Wallets {
		f := w.Features
		fmt.Fprintf(&b, "%d\\. `%s`\n", i+1, escapeMarkdownV2(w.Address))
		fmt.Fprintf(&b, "   *%d* \\(%s\\) age %s d, %d txs, %d counterparties\n",
			w.Score.Value, escapeMarkdownV2(w.Score.Band()),
			escapeMarkdownV2(strconv.FormatFloat(f.AgeDays, 'f', 1, 64)), f.TxCount, f.UniqueCounterparties)
	}

	if d.RunID != "" {
		fmt.Fprintf(&b, "\nrun `%s`", escapeMarkdownV2(d.RunID))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
