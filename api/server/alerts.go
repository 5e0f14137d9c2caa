package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
	"github.com/amitpo23/medici-web03012026-sub000/internal/elasticsearch"
	"github.com/amitpo23/medici-web03012026-sub000/internal/monitor"
	"github.com/amitpo23/medici-web03012026-sub000/internal/persist"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 100

func (s *Server) getActiveAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Active())
}

func (s *Server) getAlertHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if capacity := s.engine.HistoryCapacity(); limit > capacity {
		limit = capacity
	}

	history := s.engine.History(limit)
	c.JSON(http.StatusOK, gin.H{
		"history": history,
		"count":   len(history),
		"limit":   limit,
	})
}

func (s *Server) getAlertStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Stats())
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	a, err := s.engine.Acknowledge(c.Request.Context(), c.Param("id"))
	if errors.Is(err, alert.ErrAlertNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": a, "message": "Alert acknowledged"})
}

func (s *Server) resolveAlert(c *gin.Context) {
	a, err := s.engine.Resolve(c.Request.Context(), c.Param("type"))
	if errors.Is(err, alert.ErrAlertNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active alert of this type"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": a, "message": "Alert resolved"})
}

func (s *Server) getThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"thresholds": s.engine.Thresholds()})
}

func (s *Server) updateThresholds(c *gin.Context) {
	var changes map[string]float64
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(changes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no thresholds given"})
		return
	}

	values, err := s.engine.UpdateThresholds(changes)
	var terr *alert.ThresholdError
	if errors.As(err, &terr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": terr.Error(), "keys": terr.Keys()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"thresholds": values, "message": "Thresholds updated"})
}

// RuleView is the JSON shape of a registered rule.
type RuleView struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Severity    alert.Severity `json:"severity"`
	Category    string         `json:"category"`
	Channels    []string       `json:"channels"`
	Cooldown    string         `json:"cooldown,omitempty"`
}

func (s *Server) listRules(c *gin.Context) {
	rules := s.engine.Rules()
	views := make([]RuleView, 0, len(rules))
	for _, r := range rules {
		v := RuleView{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Severity:    r.Severity,
			Category:    r.Category,
			Channels:    r.Channels,
		}
		if r.Cooldown > 0 {
			v.Cooldown = r.Cooldown.String()
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, gin.H{"rules": views})
}

type TestAlertRequest struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func (s *Server) createTestAlert(c *gin.Context) {
	var req TestAlertRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	a, err := s.engine.CreateTestAlert(c.Request.Context(), alert.Severity(req.Severity), req.Message)
	if errors.Is(err, alert.ErrInvalidSeverity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"alert": a, "message": "Test alert created"})
}

// triggerCheck runs a cycle now, or joins the one in flight, and waits for it.
func (s *Server) triggerCheck(c *gin.Context) {
	if s.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Alert scheduler is not enabled"})
		return
	}

	select {
	case o := <-s.scheduler.TriggerNow():
		if errors.Is(o.Err, monitor.ErrStopped) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": o.Err.Error()})
			return
		}
		if o.Err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": o.Err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"shared":          o.Shared,
			"started_at":      o.Result.StartedAt,
			"duration_ms":     o.Result.Duration.Milliseconds(),
			"signals":         o.Result.Signals,
			"transitions":     o.Result.Transitions,
			"provider_errors": o.Result.ProviderErrors,
			"rule_errors":     o.Result.RuleErrors,
			"notified":        o.Result.Notified,
		})
	case <-c.Request.Context().Done():
		// 周期仍会在后台完成
		c.JSON(http.StatusAccepted, gin.H{"message": "Check is still running"})
	}
}

// 事件查询
type EventSearchRequest struct {
	Type       string `form:"type"`
	Severity   string `form:"severity"`
	Transition string `form:"transition"`
	StartTime  *int64 `form:"start_time"` // Unix timestamp
	EndTime    *int64 `form:"end_time"`   // Unix timestamp
	Query      string `form:"q"`
	Size       int    `form:"size"`
	From       int    `form:"from"`
}

func (s *Server) searchEvents(c *gin.Context) {
	var req EventSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// If ES is enabled, use ES; otherwise use the SQL archive
	switch {
	case s.es != nil:
		query := elasticsearch.EventQuery{
			Type:       req.Type,
			Severity:   req.Severity,
			Transition: req.Transition,
			QueryText:  req.Query,
			Size:       req.Size,
			From:       req.From,
		}

		// 转换时间
		if req.StartTime != nil {
			t := time.Unix(*req.StartTime, 0)
			query.StartTime = &t
		}
		if req.EndTime != nil {
			t := time.Unix(*req.EndTime, 0)
			query.EndTime = &t
		}

		result, err := s.es.SearchEvents(c.Request.Context(), query)
		if err != nil {
			s.log.Warn("Alert event search failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"source": "elasticsearch", "total": result.Total, "hits": result.Hits})

	case s.events != nil:
		events, err := s.events.Events(c.Request.Context(), persist.EventFilter{
			Type:       req.Type,
			Transition: req.Transition,
			Limit:      req.Size,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"source": "sql", "total": len(events), "hits": events})

	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No alert event archive is enabled"})
	}
}
