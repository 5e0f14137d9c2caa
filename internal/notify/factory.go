package notify

import (
	"fmt"

	"github.com/amitpo23/medici-web03012026-sub000/internal/config"
)

// NewChannelsFromConfig builds every enabled channel. broadcaster may be nil,
// in which case the broadcast channel is skipped.
func NewChannelsFromConfig(cfg config.NotifyConfig, broadcaster Broadcaster) ([]Channel, error) {
	var channels []Channel

	if cfg.Broadcast.Enabled && broadcaster != nil {
		channels = append(channels, NewBroadcastChannel(broadcaster))
	}

	if cfg.Email.Enabled {
		e := cfg.Email
		if e.SMTPHost == "" || len(e.To) == 0 {
			return nil, fmt.Errorf("missing smtp_host or to for email")
		}
		channels = append(channels, NewEmailChannel(e.SMTPHost, e.SMTPPort, e.Username, e.Password, e.From, e.To, e.UseTLS))
	}

	if cfg.Webhook.Enabled {
		if cfg.Webhook.URL == "" {
			return nil, fmt.Errorf("missing url for webhook")
		}
		channels = append(channels, NewWebhookChannel(cfg.Webhook.URL, cfg.Webhook.Headers))
	}

	if cfg.Chat.Enabled {
		c := cfg.Chat
		ch, err := NewChatChannel(c.Provider, c.WebhookURL, c.Secret, c.BotToken, c.ChatID)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}

	return channels, nil
}
