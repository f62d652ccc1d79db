package machine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/disgoorg/disgo/discord"

	"ambimix/config"
)

// WebhookManager posts mixer notifications to a Discord webhook
type WebhookManager struct {
	url      string
	username string
	logger   *slog.Logger
	client   *http.Client
}

type webhookPayload struct {
	Username string          `json:"username,omitempty"`
	Embeds   []discord.Embed `json:"embeds,omitempty"`
}

// NewWebhookManager creates a new WebhookManager instance, or nil when no
// webhook URL is configured.
func NewWebhookManager(cfg *config.Config) *WebhookManager {
	if cfg.Discord.WebhookURL == "" {
		return nil
	}
	return &WebhookManager{
		url:      cfg.Discord.WebhookURL,
		username: "ambimix",
		logger:   slog.With("component", "webhook"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify implements Sender.
func (w *WebhookManager) Notify(n Notification) error {
	return w.send(webhookPayload{
		Username: w.username,
		Embeds:   []discord.Embed{notificationEmbed(n)},
	})
}

func (w *WebhookManager) send(payload webhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord webhook returned status %d: %s", resp.StatusCode, body)
	}

	w.logger.Debug("Posted notification to Discord webhook",
		slog.Int("status", resp.StatusCode))

	return nil
}

// notificationEmbed builds the embed shared by webhook and channel posts.
func notificationEmbed(n Notification) discord.Embed {
	b := discord.NewEmbedBuilder().
		SetTitle(notificationTitle(n.Type)).
		SetDescription(n.Message()).
		SetColor(notificationColor(n.Type)).
		SetTimestamp(n.Time)
	if n.Type == NotificationTypeStarted {
		b.AddField("Volume", fmt.Sprintf("%d%%", percentOf(n.Volume)), true)
	}
	if !n.Track.BuiltIn {
		b.AddField("Source", n.Track.SourceRef, true)
	}
	return b.Build()
}

func notificationTitle(t NotificationType) string {
	switch t {
	case NotificationTypeAdded:
		return "➕ Track added"
	case NotificationTypeRemoved:
		return "🗑️ Track removed"
	case NotificationTypeStarted:
		return "▶️ Ambient started"
	case NotificationTypeStopped:
		return "⏸️ Ambient stopped"
	default:
		return "🎧 Mixer"
	}
}

func notificationColor(t NotificationType) int {
	switch t {
	case NotificationTypeAdded, NotificationTypeStarted:
		return 0x00ff00
	case NotificationTypeRemoved:
		return 0xff0000
	default:
		return 0xffa500
	}
}
