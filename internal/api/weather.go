package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/tnphung/weather-app/internal/core"
	"github.com/tnphung/weather-app/internal/model"
)

// WeatherHandler 天气查询与密钥签发
type WeatherHandler struct {
	coord          *core.Coordinator
	keysPerRequest int
}

// NewWeatherHandler 创建天气处理器
func NewWeatherHandler(coord *core.Coordinator, keysPerRequest int) *WeatherHandler {
	if keysPerRequest <= 0 {
		keysPerRequest = 5
	}
	return &WeatherHandler{coord: coord, keysPerRequest: keysPerRequest}
}

// GetReport GET /weather/report?q=city,country&apiKey=KEY
func (h *WeatherHandler) GetReport(c *gin.Context) {
	query := c.Query("q")
	apiKey := c.Query("apiKey")

	if query == "" {
		writeError(c, core.NewError(core.KindInvalidQuery, core.MsgMissingQuery, nil))
		return
	}
	if apiKey == "" {
		c.JSON(400, model.ErrorResponse{
			Error: model.ErrorDetail{
				Message: core.MsgMissingKey,
				Type:    "invalid_request_error",
				Code:    "missing_api_key",
			},
		})
		return
	}

	desc, err := h.coord.GetWeatherReport(c.Request.Context(), query, apiKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, model.WeatherReportResponse{Description: desc})
}

// IssueKeys GET /weather/apikeys
func (h *WeatherHandler) IssueKeys(c *gin.Context) {
	keys, err := h.coord.IssueAPIKeys(c.Request.Context(), h.keysPerRequest)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]model.IssuedKey, 0, len(keys))
	for _, k := range keys {
		resp = append(resp, k.ToIssued())
	}
	c.JSON(200, resp)
}

// writeError 按错误类别输出状态码与错误体
func writeError(c *gin.Context, err error) {
	kind := core.KindOf(err)
	status, errType := statusForKind(kind)

	msg := core.MsgInternal
	if e, ok := asCoreError(err); ok && e.Message != "" && kind != core.KindInternal {
		msg = e.Message
	}

	c.JSON(status, model.ErrorResponse{
		Error: model.ErrorDetail{
			Message: msg,
			Type:    errType,
			Code:    kind.String(),
		},
	})
}

func statusForKind(kind core.Kind) (int, string) {
	switch kind {
	case core.KindInvalidQuery:
		return 400, "invalid_request_error"
	case core.KindKeyInvalid:
		return 401, "authentication_error"
	case core.KindQuotaExceeded:
		return 429, "rate_limit_error"
	case core.KindCountryNotFound, core.KindCityNotFound:
		return 404, "not_found_error"
	case core.KindUpstream:
		return 502, "upstream_error"
	default:
		return 500, "internal_error"
	}
}

func asCoreError(err error) (*core.Error, bool) {
	var e *core.Error
	ok := errors.As(err, &e)
	return e, ok
}
