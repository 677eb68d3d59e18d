// Package telegram provides a client for sending alert notifications via
// Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/minhvq/gapspike/internal/models"
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
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
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

// ListenForCommands starts a goroutine that polls for Telegram updates and
// handles bot commands. It returns immediately; the goroutine stops when ctx
// is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends an ingest/processing error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(err error) error {
	text := fmt.Sprintf("⚠️ *Processing error*\n`%s`", escapeMarkdownV2(err.Error()))
	return c.sendMarkdownV2(text)
}

// Send sends a notification for newly activated alerts.
func (c *Client) Send(results []models.DetectionResult) error {
	return c.sendMarkdownV2(c.formatMessage(results))
}

// formatMessage formats newly activated alerts into a Telegram MarkdownV2
// message, grouped by venue.
func (c *Client) formatMessage(results []models.DetectionResult) string {
	message := "🚨 *Gap/Spike Alerts*\n\n"

	if len(results) > 0 {
		ts := time.Unix(results[0].Timestamp, 0).UTC()
		dateStr := escapeMarkdownV2(ts.Format("2006-01-02 15:04:05"))
		message += fmt.Sprintf("📅 Detected: %s UTC\n\n", dateStr)
	}

	byVenue := make(map[string][]models.DetectionResult)
	var venues []string
	for _, r := range results {
		if _, seen := byVenue[r.Venue]; !seen {
			venues = append(venues, r.Venue)
		}
		byVenue[r.Venue] = append(byVenue[r.Venue], r)
	}

	for i, venue := range venues {
		message += fmt.Sprintf("%d\\. *%s*\n", i+1, escapeMarkdownV2(venue))
		for _, r := range byVenue[venue] {
			emoji := "📈"
			dir := r.Gap.Direction
			if r.Spike.Detected && !r.Gap.Detected {
				dir = r.Spike.Direction
			}
			if dir == models.DirectionDown {
				emoji = "📉"
			}
			message += fmt.Sprintf("   %s %s\n", emoji, escapeMarkdownV2(r.Summary()))
		}
		message += "\n"
	}

	return message
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
