package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tnphung/weather-app/internal/config"
	"github.com/tnphung/weather-app/internal/core"
	"github.com/tnphung/weather-app/internal/model"
	"github.com/tnphung/weather-app/internal/store"
)

// AdminHandler 管理 API 处理器
type AdminHandler struct {
	store     *store.Store
	countries *core.CountryTable
	cfg       *config.Config
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(store *store.Store, countries *core.CountryTable, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		store:     store,
		countries: countries,
		cfg:       cfg,
	}
}

// GetStatus 获取系统状态
func (h *AdminHandler) GetStatus(c *gin.Context) {
	keys, err := h.store.CountAPIKeys(c.Request.Context())
	if err != nil {
		internalJSON(c, err)
		return
	}

	c.JSON(200, gin.H{
		"active_api_keys":   keys,
		"countries_loaded":  h.countries.Len(),
		"quota_limit":       h.cfg.Quota.Limit,
		"quota_window_min":  h.cfg.Quota.WindowMinutes,
		"cache_ttl_min":     h.cfg.Cache.TTLMinutes,
		"upstream_base_url": h.cfg.OpenWeather.BaseURL,
	})
}

// === 日志 ===

// GetLogs 获取查询日志
func (h *AdminHandler) GetLogs(c *gin.Context) {
	var query model.LogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(400, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: "Invalid query: " + err.Error(),
				Type:    "invalid_request_error",
			},
		})
		return
	}

	logs, err := h.store.QueryLogs(c.Request.Context(), &query)
	if err != nil {
		internalJSON(c, err)
		return
	}
	if logs == nil {
		logs = []*model.LookupLog{}
	}

	c.JSON(200, gin.H{"data": logs})
}

// GetStats 获取每日统计
func (h *AdminHandler) GetStats(c *gin.Context) {
	days := 7
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			c.JSON(400, model.ErrorResponse{
				Error: model.ErrorDetail{
					Message: "days must be between 1 and 365",
					Type:    "invalid_request_error",
				},
			})
			return
		}
		days = n
	}

	daily, err := h.store.GetDailyStats(c.Request.Context(), days)
	if err != nil {
		internalJSON(c, err)
		return
	}
	if daily == nil {
		daily = []*model.DailyStats{}
	}

	c.JSON(200, gin.H{"daily": daily})
}

func internalJSON(c *gin.Context, err error) {
	c.JSON(500, model.ErrorResponse{
		Error: model.ErrorDetail{
			Message: err.Error(),
			Type:    "internal_error",
		},
	})
}
