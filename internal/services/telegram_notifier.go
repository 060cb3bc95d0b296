package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const telegramMessage = `Trip Ledger

Login code: %s

Enter this code on the website to sign in.
The code expires in %s.
If you did not request it, ignore this message.`

// TelegramNotifier sends login codes through the Telegram Bot API to a
// single pre-registered chat.
type TelegramNotifier struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
	codeTTL time.Duration
	logger  *slog.Logger
}

// NewTelegramNotifier creates a new TelegramNotifier. A nil client gets a
// default one with a 10 second timeout.
func NewTelegramNotifier(client *http.Client, baseURL, token, chatID string, codeTTL time.Duration, logger *slog.Logger) *TelegramNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TelegramNotifier{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		chatID:  chatID,
		codeTTL: codeTTL,
		logger:  logger,
	}
}

type telegramSendMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

func (n *TelegramNotifier) Send(ctx context.Context, code string) error {
	payload, err := json.Marshal(telegramSendMessage{
		ChatID: n.chatID,
		Text:   fmt.Sprintf(telegramMessage, code, n.codeTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to encode telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// The URL embeds the bot token; never log or return it verbatim
		return fmt.Errorf("telegram request failed: %w", redactToken(err, n.token))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var result telegramResponse
	if err := json.Unmarshal(body, &result); err != nil || resp.StatusCode != http.StatusOK || !result.OK {
		n.logger.Error("telegram rejected login code message",
			slog.Int("status", resp.StatusCode),
			slog.String("description", result.Description))
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	n.logger.Info("login code sent via telegram")
	return nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redactToken(err error, token string) error {
	if token == "" {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "[REDACTED]"), err: err}
}
