// Package telegram delivers snapshots, alerts and learning results via the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/marketpulse/internal/logger"
	"github.com/rewired-gh/marketpulse/internal/models"
)

// SnapshotFunc produces a fresh snapshot for the /snapshot command.
type SnapshotFunc func(ctx context.Context) *models.Snapshot

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	return NewClientWithEndpoint(botToken, chatID, tgbotapi.APIEndpoint, maxRetries, retryDelayBase)
}

// NewClientWithEndpoint creates a client against a custom Bot API endpoint,
// formatted like tgbotapi.APIEndpoint.
func NewClientWithEndpoint(botToken, chatID, endpoint string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, &http.Client{Timeout: 90 * time.Second})
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

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, onSnapshot SnapshotFunc) {
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
					c.handleCommand(ctx, update.Message, onSnapshot)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(ctx context.Context, msg *tgbotapi.Message, onSnapshot SnapshotFunc) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "snapshot":
		// snapshots go to the configured chat only
		if msg.Chat.ID != c.chatID || onSnapshot == nil {
			return
		}
		snap := onSnapshot(ctx)
		if snap == nil {
			return
		}
		if err := c.SendSnapshot(snap); err != nil {
			logger.Error("Failed to answer /snapshot: %v", err)
		}
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
// Long texts are split on line boundaries.
func (c *Client) sendMarkdownV2(text string) error {
	for _, part := range splitMessage(text, maxMessageLen) {
		if err := c.sendPart(part); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendPart(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

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

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(job string, jobErr error) error {
	text := fmt.Sprintf("⚠️ *%s failed*\n`%s`", escapeMarkdownV2(job), escapeMarkdownV2(jobErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(job string, failureCount int) error {
	text := fmt.Sprintf("✅ *%s recovered* after %d consecutive failure\\(s\\)", escapeMarkdownV2(job), failureCount)
	return c.sendMarkdownV2(text)
}

// SendSnapshot sends the ranked snapshot report.
func (c *Client) SendSnapshot(snap *models.Snapshot) error {
	return c.sendMarkdownV2(FormatSnapshot(snap))
}

// SendAlerts sends intraday move alerts. An empty list sends nothing.
func (c *Client) SendAlerts(alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return c.sendMarkdownV2(FormatAlerts(alerts))
}

// SendLearnResult sends the weekly weight learning summary.
func (c *Client) SendLearnResult(r *models.LearnResult) error {
	return c.sendMarkdownV2(FormatLearnResult(r))
}
