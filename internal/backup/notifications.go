package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shop-lifecycle/internal/logging"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Summary is what the orchestrator reports after a completed backup
type Summary struct {
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	SizeBytes    int64     `json:"size_bytes"`
	ArtifactName string    `json:"artifact"`
	DeletedCount int       `json:"deleted_count"`
}

// Text renders the summary as the plain-text message sent to every channel
func (s Summary) Text() string {
	var b strings.Builder
	b.WriteString("Shop database backup completed\n")
	fmt.Fprintf(&b, "Time: %s\n", s.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Size: %s (%d bytes)\n", humanize.Bytes(uint64(s.SizeBytes)), s.SizeBytes)
	if s.ArtifactName != "" {
		fmt.Fprintf(&b, "File: %s\n", s.ArtifactName)
	}
	fmt.Fprintf(&b, "Old snapshots removed: %d", s.DeletedCount)
	return b.String()
}

// Notifier receives backup summaries. Delivery is observability, not a guarantee.
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
	// Enabled reports whether Notify would deliver anywhere
	Enabled() bool
}

// NotificationChannel interface for different notification methods
type NotificationChannel interface {
	Send(ctx context.Context, summary Summary) error
	GetType() string
	IsEnabled() bool
}

// NotificationManager fans a summary out to every enabled channel
type NotificationManager struct {
	logger   *logging.Logger
	timeout  time.Duration
	channels []NotificationChannel
}

// NewNotificationManager creates a manager with the channels present in config
func NewNotificationManager(logger *logging.Logger, config NotificationConfig) *NotificationManager {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	nm := &NotificationManager{logger: logger, timeout: timeout}
	client := &http.Client{Timeout: timeout}

	if config.Telegram != nil {
		nm.AddChannel(NewTelegramChannel(*config.Telegram, client))
	}
	if config.Webhook != nil {
		nm.AddChannel(NewWebhookChannel(*config.Webhook, client))
	}
	if config.File != nil {
		nm.AddChannel(NewFileChannel(*config.File))
	}

	return nm
}

// AddChannel registers an additional channel
func (nm *NotificationManager) AddChannel(ch NotificationChannel) {
	nm.channels = append(nm.channels, ch)
}

// Enabled reports whether any channel will receive notifications
func (nm *NotificationManager) Enabled() bool {
	for _, ch := range nm.channels {
		if ch.IsEnabled() {
			return true
		}
	}
	return false
}

// Notify sends the summary to all enabled channels within the configured
// timeout. Every channel is attempted; failures are joined into the result.
func (nm *NotificationManager) Notify(ctx context.Context, summary Summary) error {
	ctx, cancel := context.WithTimeout(ctx, nm.timeout)
	defer cancel()

	var errs []error
	for _, ch := range nm.channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, summary); err != nil {
			nm.logger.WithFields(map[string]interface{}{
				"channel": ch.GetType(),
				"error":   err.Error(),
			}).Error("Failed to send notification")
			errs = append(errs, fmt.Errorf("%s: %w", ch.GetType(), err))
			continue
		}
		nm.logger.WithField("channel", ch.GetType()).Debug("Notification sent")
	}

	return errors.Join(errs...)
}

// TelegramChannel posts the summary through the Telegram Bot API
type TelegramChannel struct {
	config TelegramConfig
	client *http.Client
}

// NewTelegramChannel creates a new Telegram notification channel
func NewTelegramChannel(config TelegramConfig, client *http.Client) *TelegramChannel {
	if config.APIBase == "" {
		config.APIBase = defaultTelegramAPI
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TelegramChannel{config: config, client: client}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send sends a Telegram message
func (tc *TelegramChannel) Send(ctx context.Context, summary Summary) error {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":                  tc.config.ChatID,
		"text":                     summary.Text(),
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	endpoint := strings.TrimRight(tc.config.APIBase, "/") + "/bot" + tc.config.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		// the endpoint embeds the bot token, keep it out of the error
		return errors.New("failed to create telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach telegram API: %w", redactURLError(err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed telegramResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode >= 400 || !parsed.OK {
		if parsed.Description != "" {
			return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, parsed.Description)
		}
		return fmt.Errorf("telegram API returned error status: %d", resp.StatusCode)
	}
	return nil
}

// GetType returns the channel type
func (tc *TelegramChannel) GetType() string {
	return "telegram"
}

// IsEnabled checks if the channel is enabled
func (tc *TelegramChannel) IsEnabled() bool {
	return tc.config.BotToken != "" && tc.config.ChatID != ""
}

// redactURLError drops the request URL, which carries the bot token
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

// WebhookChannel implements generic webhook notifications
type WebhookChannel struct {
	config WebhookConfig
	client *http.Client
}

// NewWebhookChannel creates a new webhook notification channel
func NewWebhookChannel(config WebhookConfig, client *http.Client) *WebhookChannel {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookChannel{config: config, client: client}
}

type webhookPayload struct {
	Summary
	Message string `json:"message"`
}

// Send sends a webhook notification
func (wc *WebhookChannel) Send(ctx context.Context, summary Summary) error {
	payload, err := json.Marshal(webhookPayload{Summary: summary, Message: summary.Text()})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	method := wc.config.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, wc.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range wc.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := wc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}

// GetType returns the channel type
func (wc *WebhookChannel) GetType() string {
	return "webhook"
}

// IsEnabled checks if the channel is enabled
func (wc *WebhookChannel) IsEnabled() bool {
	return wc.config.URL != ""
}

// FileChannel appends one line per summary to a local file
type FileChannel struct {
	config FileConfig
}

// NewFileChannel creates a new file notification channel
func NewFileChannel(config FileConfig) *FileChannel {
	return &FileChannel{config: config}
}

// Send writes a notification to a file
func (fc *FileChannel) Send(ctx context.Context, summary Summary) error {
	if dir := filepath.Dir(fc.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create notification directory: %w", err)
		}
	}

	file, err := os.OpenFile(fc.config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open notification file: %w", err)
	}
	defer file.Close()

	line := fmt.Sprintf("[%s] %s\n",
		summary.Timestamp.UTC().Format(time.RFC3339),
		strings.ReplaceAll(summary.Text(), "\n", " | "))
	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write notification to file: %w", err)
	}
	return nil
}

// GetType returns the channel type
func (fc *FileChannel) GetType() string {
	return "file"
}

// IsEnabled checks if the channel is enabled
func (fc *FileChannel) IsEnabled() bool {
	return fc.config.Path != ""
}
