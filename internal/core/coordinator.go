package core

import (
	"context"
	"errors"
	"time"

	"github.com/tnphung/weather-app/internal/logger"
	"github.com/tnphung/weather-app/internal/model"
)

// LogStore 查询日志持久化
type LogStore interface {
	SaveLog(ctx context.Context, log *model.LookupLog) error
}

type requestIDKey struct{}

// WithRequestID 把请求 ID 放进 context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext 取出请求 ID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Coordinator 天气查询流程
//
// 校验查询 -> 校验 key -> 解析国家 -> 取缓存/上游 -> 记录用量 -> 返回。
// 任一步失败立即返回并归还占用的名额，除配额超限时的 key 删除外不留下副作用。
type Coordinator struct {
	quota     *QuotaTracker
	countries *CountryTable
	cache     *ReportCache
	logs      LogStore
	log       *logger.Logger
}

// NewCoordinator 创建查询协调器，logs 可为 nil
func NewCoordinator(quota *QuotaTracker, countries *CountryTable, cache *ReportCache, logs LogStore) *Coordinator {
	return &Coordinator{
		quota:     quota,
		countries: countries,
		cache:     cache,
		logs:      logs,
		log:       logger.Default(),
	}
}

// SetLogger 替换日志输出
func (c *Coordinator) SetLogger(l *logger.Logger) {
	c.log = l
}

// GetWeatherReport 查询 "city,country" 的天气描述
func (c *Coordinator) GetWeatherReport(ctx context.Context, query, apiKey string) (desc string, err error) {
	start := time.Now()
	entry := &model.LookupLog{
		ID:        GenerateLogID(),
		RequestID: RequestIDFromContext(ctx),
		Timestamp: start,
		APIKey:    model.MaskKey(apiKey),
		Query:     query,
	}
	defer func() { c.finish(ctx, entry, start, err) }()

	city, countryName, err := ParseQuery(query)
	if err != nil {
		return "", err
	}
	entry.City = Normalize(city)

	if err = c.quota.Admit(ctx, apiKey); err != nil {
		return "", err
	}
	reserved := true
	defer func() {
		if reserved {
			c.quota.Release(apiKey)
		}
	}()

	country, err := c.countries.Resolve(ctx, countryName)
	if err != nil {
		return "", err
	}
	entry.Country = country.Name

	desc, outcome, err := c.cache.Resolve(ctx, city, country.Name, country.Code)
	entry.CacheOutcome = outcome
	if err != nil {
		return "", classifySourceError(err)
	}

	reserved = false
	if err = c.quota.RecordUse(ctx, apiKey); err != nil {
		return "", err
	}
	return desc, nil
}

// IssueAPIKeys 签发 n 个新 key
func (c *Coordinator) IssueAPIKeys(ctx context.Context, n int) ([]model.APIKeyRecord, error) {
	keys, err := c.quota.IssueN(ctx, n)
	if err != nil {
		c.log.With("request_id", RequestIDFromContext(ctx)).Error("issue api keys failed", "error", err)
		return nil, err
	}
	return keys, nil
}

// classifySourceError 未分类的上游错误归为 Upstream
func classifySourceError(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewError(KindUpstream, MsgUpstream, err)
}

func (c *Coordinator) finish(ctx context.Context, entry *model.LookupLog, start time.Time, err error) {
	latency := time.Since(start)
	entry.LatencyMs = latency.Milliseconds()
	entry.Outcome = Outcome(err)
	entry.Success = err == nil
	if err != nil {
		entry.Error = err.Error()
	}
	lookupDuration.WithLabelValues(entry.Outcome).Observe(latency.Seconds())

	log := c.log.With("request_id", entry.RequestID)
	switch kind := KindOf(err); {
	case err == nil:
		log.Info("weather lookup", "city", entry.City, "country", entry.Country,
			"cache", entry.CacheOutcome, "latency_ms", entry.LatencyMs)
	case kind == KindUpstream || kind == KindInternal:
		log.Error("weather lookup failed", "query", entry.Query, "outcome", entry.Outcome, "error", err)
	default:
		log.Info("weather lookup rejected", "query", entry.Query, "outcome", entry.Outcome)
	}

	if c.logs == nil {
		return
	}
	// 请求结束后仍需写入
	if serr := c.logs.SaveLog(context.WithoutCancel(ctx), entry); serr != nil {
		log.Warn("save lookup log failed", "error", serr)
	}
}
