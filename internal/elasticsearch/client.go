package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
	"github.com/amitpo23/medici-web03012026-sub000/internal/config"
	"github.com/amitpo23/medici-web03012026-sub000/internal/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// EventDoc 告警事件文档
type EventDoc struct {
	AlertID         string    `json:"alert_id"`
	Type            string    `json:"type"`
	Transition      string    `json:"transition"`
	Severity        string    `json:"severity"`
	Category        string    `json:"category"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Status          string    `json:"status"`
	Acknowledged    bool      `json:"acknowledged"`
	OccurrenceCount int       `json:"occurrence_count"`
	Notified        bool      `json:"notified"`
	FirstSeenAt     time.Time `json:"first_seen_at"`
	Timestamp       time.Time `json:"@timestamp"`

	// 额外元数据
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewEventDoc flattens a lifecycle transition into an index document.
func NewEventDoc(t alert.Transition) EventDoc {
	a := t.Alert
	at := t.At
	if at.IsZero() {
		at = time.Now()
	}
	return EventDoc{
		AlertID:         a.ID,
		Type:            a.Type,
		Transition:      string(t.Kind),
		Severity:        string(a.Severity),
		Category:        a.Category,
		Title:           a.Title,
		Message:         a.Message,
		Status:          string(a.Status),
		Acknowledged:    a.Acknowledged,
		OccurrenceCount: a.OccurrenceCount,
		Notified:        t.Notify,
		FirstSeenAt:     a.CreatedAt,
		Timestamp:       at.UTC(),
		Metadata:        a.Metadata,
	}
}

// Client archives alert events in date-rolled indices and searches them.
type Client struct {
	es     *elasticsearch.Client
	config config.ElasticsearchConfig
	log    *zap.Logger
}

// NewClient connects to the cluster. It returns nil, nil when disabled.
func NewClient(cfg config.ElasticsearchConfig, log *zap.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	esConfig := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	es, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	// 测试连接
	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned error: %s", res.String())
	}

	client := &Client{
		es:     es,
		config: cfg,
		log:    logger.OrNop(log),
	}

	client.log.Info("Elasticsearch client initialized successfully", zap.Strings("addresses", cfg.Addresses))

	return client, nil
}

// indexFor 生成索引名称（按日期滚动）
func (c *Client) indexFor(t time.Time) string {
	return fmt.Sprintf("%s-%s", c.config.IndexPrefix, t.UTC().Format("2006.01.02"))
}

func (c *Client) indexPattern() string {
	return fmt.Sprintf("%s-*", c.config.IndexPrefix)
}

// Name implements alert.Sink.
func (c *Client) Name() string { return "elasticsearch" }

// Record implements alert.Sink.
func (c *Client) Record(ctx context.Context, t alert.Transition) error {
	return c.IndexEvent(ctx, NewEventDoc(t))
}

// IndexEvent 索引告警事件
func (c *Client) IndexEvent(ctx context.Context, doc EventDoc) error {
	if c == nil || c.es == nil {
		return nil // ES 未启用，跳过
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	index := c.indexFor(doc.Timestamp)
	req := esapi.IndexRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("failed to index alert event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch indexing error: %s", res.String())
	}

	c.log.Debug("Alert event indexed",
		zap.String("index", index),
		zap.String("alert_id", doc.AlertID),
		zap.String("transition", doc.Transition))

	return nil
}

// EventQuery 事件搜索条件
type EventQuery struct {
	Type       string     `json:"type,omitempty"`
	Severity   string     `json:"severity,omitempty"`
	Transition string     `json:"transition,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	QueryText  string     `json:"query_text,omitempty"`
	Size       int        `json:"size,omitempty"`
	From       int        `json:"from,omitempty"`
}

type SearchResult struct {
	Total int64      `json:"total"`
	Hits  []EventDoc `json:"hits"`
}

// buildSearchBody 构建查询
func buildSearchBody(q EventQuery) map[string]interface{} {
	must := []map[string]interface{}{}

	for field, value := range map[string]string{
		"type":       q.Type,
		"severity":   q.Severity,
		"transition": q.Transition,
	} {
		if value != "" {
			must = append(must, map[string]interface{}{
				"term": map[string]interface{}{field: value},
			})
		}
	}

	// 时间范围过滤
	if q.StartTime != nil || q.EndTime != nil {
		rangeQuery := map[string]interface{}{}
		if q.StartTime != nil {
			rangeQuery["gte"] = q.StartTime.Format(time.RFC3339)
		}
		if q.EndTime != nil {
			rangeQuery["lte"] = q.EndTime.Format(time.RFC3339)
		}
		must = append(must, map[string]interface{}{
			"range": map[string]interface{}{"@timestamp": rangeQuery},
		})
	}

	// 全文搜索
	if q.QueryText != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.QueryText,
				"fields": []string{"title", "message"},
			},
		})
	}

	// 设置分页
	size := q.Size
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100 // 最大 100 条
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"size": size,
		"from": q.From,
		"sort": []map[string]interface{}{
			{"@timestamp": map[string]interface{}{"order": "desc"}},
		},
	}
}

// SearchEvents 搜索告警事件，最新的在前
func (c *Client) SearchEvents(ctx context.Context, q EventQuery) (*SearchResult, error) {
	if c == nil || c.es == nil {
		return &SearchResult{Total: 0, Hits: []EventDoc{}}, nil
	}

	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index:             []string{c.indexPattern()},
		Body:              bytes.NewReader(body),
		IgnoreUnavailable: esapi.BoolPtr(true),
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("failed to search alert events: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source EventDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	result := &SearchResult{
		Total: response.Hits.Total.Value,
		Hits:  make([]EventDoc, 0, len(response.Hits.Hits)),
	}
	for _, hit := range response.Hits.Hits {
		result.Hits = append(result.Hits, hit.Source)
	}

	c.log.Debug("Alert event search completed",
		zap.Int64("total", result.Total),
		zap.Int("returned", len(result.Hits)))

	return result, nil
}

// CreateIndexTemplate 创建索引模板（如果不存在）
func (c *Client) CreateIndexTemplate(ctx context.Context) error {
	if c == nil || c.es == nil {
		return nil
	}

	templateName := fmt.Sprintf("%s-template", c.config.IndexPrefix)

	template := map[string]interface{}{
		"index_patterns": []string{c.indexPattern()},
		"template": map[string]interface{}{
			"settings": map[string]interface{}{
				"number_of_shards":   1,
				"number_of_replicas": 1,
				"refresh_interval":   "5s",
			},
			"mappings": map[string]interface{}{
				"properties": map[string]interface{}{
					"alert_id":         map[string]string{"type": "keyword"},
					"type":             map[string]string{"type": "keyword"},
					"transition":       map[string]string{"type": "keyword"},
					"severity":         map[string]string{"type": "keyword"},
					"category":         map[string]string{"type": "keyword"},
					"status":           map[string]string{"type": "keyword"},
					"title":            map[string]string{"type": "text"},
					"message":          map[string]string{"type": "text"},
					"acknowledged":     map[string]string{"type": "boolean"},
					"notified":         map[string]string{"type": "boolean"},
					"occurrence_count": map[string]string{"type": "integer"},
					"first_seen_at":    map[string]string{"type": "date"},
					"@timestamp":       map[string]string{"type": "date"},
					"metadata":         map[string]interface{}{"type": "object", "enabled": false},
				},
			},
		},
	}

	body, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("failed to marshal index template: %w", err)
	}

	req := esapi.IndicesPutIndexTemplateRequest{
		Name: templateName,
		Body: bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("failed to create index template: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		c.log.Warn("Failed to create index template", zap.String("template", templateName), zap.String("response", res.String()))
		return nil
	}
	c.log.Info("Index template created", zap.String("template", templateName))
	return nil
}
