package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
)

// Title returns the notification headline for an alert.
func Title(a alert.Alert) string {
	if a.Status == alert.StatusResolved {
		return fmt.Sprintf("【告警恢复】%s", a.Title)
	}
	if a.Severity == alert.SeverityCritical {
		return fmt.Sprintf("【严重告警】%s", a.Title)
	}
	return fmt.Sprintf("【监控告警】%s", a.Title)
}

// FormatAlertMessage 格式化告警消息正文
func FormatAlertMessage(a alert.Alert) string {
	var sb strings.Builder

	sb.WriteString(Title(a) + "\n")
	sb.WriteString(fmt.Sprintf("告警类型: %s\n", a.Type))
	sb.WriteString(fmt.Sprintf("告警级别: %s\n", a.Severity))
	if a.Category != "" {
		sb.WriteString(fmt.Sprintf("告警分类: %s\n", a.Category))
	}
	sb.WriteString(fmt.Sprintf("当前状态: %s\n", a.Status))
	sb.WriteString(fmt.Sprintf("首次发生: %s\n", a.CreatedAt.Format("2006-01-02 15:04:05")))
	if a.OccurrenceCount > 1 {
		sb.WriteString(fmt.Sprintf("发生次数: %d\n", a.OccurrenceCount))
	}
	if a.ResolvedAt != nil {
		sb.WriteString(fmt.Sprintf("恢复时间: %s\n", a.ResolvedAt.Format("2006-01-02 15:04:05")))
	}

	if len(a.Metadata) > 0 {
		keys := make([]string, 0, len(a.Metadata))
		for k := range a.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\n详细信息:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, a.Metadata[k]))
		}
	}

	sb.WriteString(fmt.Sprintf("\n%s", a.Message))

	return sb.String()
}

// payload is the JSON body shared by webhook and broadcast deliveries.
type payload struct {
	Event  string      `json:"event"`
	Title  string      `json:"title"`
	Text   string      `json:"text"`
	Alert  alert.Alert `json:"alert"`
	SentAt time.Time   `json:"sent_at"`
}

func newPayload(a alert.Alert) payload {
	event := "alert.fired"
	if a.Status == alert.StatusResolved {
		event = "alert.resolved"
	}
	return payload{
		Event:  event,
		Title:  Title(a),
		Text:   FormatAlertMessage(a),
		Alert:  a,
		SentAt: time.Now().UTC(),
	}
}
