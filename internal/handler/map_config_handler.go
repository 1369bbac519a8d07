package handler

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/jengzang/vehicle-status-backend/pkg/response"
)

// MapConfigHandler serves the static map configuration used by the dashboard
type MapConfigHandler struct {
	path string
}

// NewMapConfigHandler creates a handler reading the file at path
func NewMapConfigHandler(path string) *MapConfigHandler {
	return &MapConfigHandler{path: path}
}

// Get handles GET /api/v1/map-config. The file may be YAML or JSON.
func (h *MapConfigHandler) Get(c *gin.Context) {
	content, err := os.ReadFile(h.path)
	if err != nil {
		log.Error().Err(err).Str("path", h.path).Msg("Failed to read map config")
		response.InternalError(c, "无法读取地图配置文件")
		return
	}

	var cfg map[string]interface{}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		log.Error().Err(err).Str("path", h.path).Msg("Failed to parse map config")
		response.InternalError(c, "地图配置文件格式错误")
		return
	}
	response.Success(c, cfg)
}
