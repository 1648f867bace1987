package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Messenger delivers one text message to one user.
type Messenger interface {
	Name() string
	Deliver(ctx context.Context, userID int64, text string) error
}

// TelegramMessenger delivers messages through the Telegram Bot API.
// The user's messenger identity doubles as the chat id.
type TelegramMessenger struct {
	botToken string
	client   *http.Client
}

// NewTelegramMessenger creates a Telegram-backed messenger.
func NewTelegramMessenger(botToken string) *TelegramMessenger {
	return &TelegramMessenger{
		botToken: botToken,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the messenger.
func (t *TelegramMessenger) Name() string {
	return "telegram"
}

// Deliver sends a text message to the given chat.
func (t *TelegramMessenger) Deliver(ctx context.Context, userID int64, text string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)

	payload := map[string]interface{}{
		"chat_id": userID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

// ConsoleMessenger prints messages to stdout instead of delivering
// them, for manual runs without a bot token.
type ConsoleMessenger struct{}

// NewConsoleMessenger creates a stdout-backed messenger.
func NewConsoleMessenger() *ConsoleMessenger {
	return &ConsoleMessenger{}
}

// Name returns the name of the messenger.
func (c *ConsoleMessenger) Name() string {
	return "console"
}

// Deliver prints the message.
func (c *ConsoleMessenger) Deliver(ctx context.Context, userID int64, text string) error {
	fmt.Printf("[user %d] %s\n", userID, text)
	return nil
}

// NoOpMessenger discards every message.
type NoOpMessenger struct{}

// NewNoOpMessenger creates a messenger that does nothing.
func NewNoOpMessenger() *NoOpMessenger {
	return &NoOpMessenger{}
}

// Name returns the name of the messenger.
func (n *NoOpMessenger) Name() string {
	return "noop"
}

// Deliver does nothing.
func (n *NoOpMessenger) Deliver(ctx context.Context, userID int64, text string) error {
	return nil
}
