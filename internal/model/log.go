package model

import "time"

// CacheOutcome 缓存命中情况
type CacheOutcome string

const (
	CacheHit       CacheOutcome = "hit"
	CacheMiss      CacheOutcome = "miss"
	CacheStale     CacheOutcome = "stale"
	CacheReconcile CacheOutcome = "reconcile"
	CacheNone      CacheOutcome = "" // 未走到缓存阶段
)

// LookupLog 天气查询日志
type LookupLog struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	APIKey    string    `json:"api_key"` // 已脱敏
	Query     string    `json:"query"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`

	// 结果
	Outcome      string       `json:"outcome"` // ok 或错误类别
	CacheOutcome CacheOutcome `json:"cache_outcome,omitempty"`
	Success      bool         `json:"success"`
	LatencyMs    int64        `json:"latency_ms"`
	Error        string       `json:"error,omitempty"`
}

// DailyStats 每日统计汇总
type DailyStats struct {
	Date          string  `json:"date"`
	TotalRequests int     `json:"total_requests"`
	SuccessRate   float64 `json:"success_rate"`
	CacheHits     int     `json:"cache_hits"`
	QuotaDenials  int     `json:"quota_denials"`
	AvgLatency    float64 `json:"avg_latency_ms"`
}

// LogQuery 日志查询参数
type LogQuery struct {
	RequestID string    `form:"request_id"`
	Outcome   string    `form:"outcome"`
	Success   *bool     `form:"success"`
	StartTime time.Time `form:"start_time"`
	EndTime   time.Time `form:"end_time"`
	Limit     int       `form:"limit"`
	Offset    int       `form:"offset"`
}
