package model

import "time"

// CachedReport 缓存的天气描述，(City, Country) 至多一行
type CachedReport struct {
	ID            int64     `json:"id"`
	City          string    `json:"city"`
	Country       string    `json:"country"`
	Description   string    `json:"description"`
	LastRefreshed time.Time `json:"last_refreshed"`
}

// Age 返回距上次刷新的时间
func (r CachedReport) Age(now time.Time) time.Duration {
	return now.Sub(r.LastRefreshed)
}

// Country 国家名称与代码
type Country struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// WeatherReportResponse 天气查询响应
type WeatherReportResponse struct {
	Description string `json:"description"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}
