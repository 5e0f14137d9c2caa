package server

import (
	"fmt"
	"net/http"

	"github.com/amitpo23/medici-web03012026-sub000/internal/config"

	"github.com/gin-gonic/gin"
)

// GetConfigResponse 获取配置响应
type GetConfigResponse struct {
	Config *config.Config `json:"config"`
}

// UpdateConfigRequest 更新配置请求
type UpdateConfigRequest struct {
	Config *config.Config `json:"config" binding:"required"`
}

// getConfig 获取系统配置
func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, GetConfigResponse{
		Config: s.config,
	})
}

// updateConfig 更新系统配置，重启后生效
func (s *Server) updateConfig(c *gin.Context) {
	if s.configPath == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "Service was started without a config file"})
		return
	}

	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 密钥不经 JSON 输出，沿用当前值
	keepSecrets(req.Config, s.config)

	// 验证配置
	if err := req.Config.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 保存配置到文件
	if err := config.SaveToFile(s.configPath, req.Config); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to save config: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Configuration saved. Please restart the service for changes to take effect.",
		"config":  req.Config,
	})
}

func keepSecrets(dst, src *config.Config) {
	dst.Database.Password = src.Database.Password
	dst.Elasticsearch.Password = src.Elasticsearch.Password
	dst.Notify.Email.Password = src.Notify.Email.Password
	dst.Notify.Chat.Secret = src.Notify.Chat.Secret
	dst.Notify.Chat.BotToken = src.Notify.Chat.BotToken
}
