package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
	"github.com/amitpo23/medici-web03012026-sub000/internal/httpclient"
)

// 支持的聊天机器人
const (
	ProviderDingTalk = "dingtalk"
	ProviderWeChat   = "wechat"
	ProviderTelegram = "telegram"
)

const telegramAPIBase = "https://api.telegram.org"

// ChatChannel sends alerts to a chat robot: DingTalk (钉钉), WeChat Work (企业微信) or Telegram.
type ChatChannel struct {
	Provider   string
	WebhookURL string
	Secret     string // DingTalk 加签密钥，可选
	BotToken   string
	ChatID     string

	APIBase string // Telegram API base, overridable for tests
	Client  *http.Client
	now     func() time.Time
}

func NewChatChannel(provider, webhookURL, secret, botToken, chatID string) (*ChatChannel, error) {
	c := &ChatChannel{
		Provider:   strings.ToLower(provider),
		WebhookURL: webhookURL,
		Secret:     secret,
		BotToken:   botToken,
		ChatID:     chatID,
		APIBase:    telegramAPIBase,
		Client:     httpclient.Shared(),
		now:        time.Now,
	}

	switch c.Provider {
	case ProviderDingTalk, ProviderWeChat:
		if webhookURL == "" {
			return nil, fmt.Errorf("missing webhook_url for %s", c.Provider)
		}
	case ProviderTelegram:
		if botToken == "" || chatID == "" {
			return nil, fmt.Errorf("missing bot_token or chat_id for telegram")
		}
	default:
		return nil, fmt.Errorf("unsupported chat provider: %s", provider)
	}
	return c, nil
}

func (c *ChatChannel) Name() string { return alert.ChannelChat }

func (c *ChatChannel) Send(ctx context.Context, a alert.Alert) error {
	switch c.Provider {
	case ProviderDingTalk:
		return c.sendDingTalk(ctx, a)
	case ProviderWeChat:
		return c.sendWeChat(ctx, a)
	case ProviderTelegram:
		return c.sendTelegram(ctx, a)
	default:
		return fmt.Errorf("unsupported chat provider: %s", c.Provider)
	}
}

func (c *ChatChannel) sendDingTalk(ctx context.Context, a alert.Alert) error {
	target := c.WebhookURL
	if c.Secret != "" {
		signed, err := c.signDingTalk(target)
		if err != nil {
			return err
		}
		target = signed
	}

	body := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": Title(a),
			"text":  markdownText(a),
		},
	}
	return c.postRobot(ctx, "DingTalk", target, body)
}

// signDingTalk appends timestamp and HMAC-SHA256 sign parameters.
func (c *ChatChannel) signDingTalk(webhook string) (string, error) {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(c.Secret))
	mac.Write([]byte(ts + "\n" + c.Secret))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	u, err := url.Parse(webhook)
	if err != nil {
		return "", fmt.Errorf("invalid DingTalk webhook: %w", err)
	}
	q := u.Query()
	q.Set("timestamp", ts)
	q.Set("sign", sign)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *ChatChannel) sendWeChat(ctx context.Context, a alert.Alert) error {
	body := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"content": markdownText(a),
		},
	}
	return c.postRobot(ctx, "WeChat", c.WebhookURL, body)
}

// postRobot posts to a DingTalk/WeChat robot. Both answer HTTP 200 with a
// non-zero errcode on rejection.
func (c *ChatChannel) postRobot(ctx context.Context, name, target string, body interface{}) error {
	resp, err := c.postJSON(ctx, target, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s notification failed with status: %d", name, resp.StatusCode)
	}

	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.ErrCode != 0 {
		return fmt.Errorf("%s notification rejected: %d %s", name, result.ErrCode, result.ErrMsg)
	}
	return nil
}

func (c *ChatChannel) sendTelegram(ctx context.Context, a alert.Alert) error {
	target := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(c.APIBase, "/"), c.BotToken)
	body := map[string]interface{}{
		"chat_id":    c.ChatID,
		"text":       fmt.Sprintf("*%s*\n\n%s", escapeMarkdown(Title(a)), escapeMarkdown(FormatAlertMessage(a))),
		"parse_mode": "Markdown",
	}

	resp, err := c.postJSON(ctx, target, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Telegram notification failed with status: %d", resp.StatusCode)
	}
	return nil
}

func (c *ChatChannel) postJSON(ctx context.Context, target string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Client.Do(req)
}

func markdownText(a alert.Alert) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("### %s\n\n", Title(a)))
	sb.WriteString(fmt.Sprintf("- 告警类型: %s\n", a.Type))
	sb.WriteString(fmt.Sprintf("- 告警级别: **%s**\n", a.Severity))
	if a.Category != "" {
		sb.WriteString(fmt.Sprintf("- 告警分类: %s\n", a.Category))
	}
	sb.WriteString(fmt.Sprintf("- 发生次数: %d\n", a.OccurrenceCount))
	sb.WriteString(fmt.Sprintf("- 时间: %s\n\n", a.LastSeenAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(a.Message)
	return sb.String()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "`", "\\`")

// escapeMarkdown escapes Telegram legacy Markdown control characters.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
