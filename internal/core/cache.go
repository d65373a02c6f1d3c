package core

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tnphung/weather-app/internal/logger"
	"github.com/tnphung/weather-app/internal/model"
)

// DefaultReportTTL 缓存有效期
const DefaultReportTTL = time.Hour

// resolveTimeout 合并执行的一次解析最长耗时，不随单个调用方取消
const resolveTimeout = 30 * time.Second

// WeatherSource 上游天气服务
//
// 城市不存在时返回的错误须包装 ErrCityNotFound。
type WeatherSource interface {
	Fetch(ctx context.Context, city, countryCode string) (string, error)
}

// ReportStore 天气缓存持久化
type ReportStore interface {
	FindReports(ctx context.Context, city, country string) ([]model.CachedReport, error)
	InsertReport(ctx context.Context, r *model.CachedReport) error
	UpdateReport(ctx context.Context, r model.CachedReport) error
	DeleteReports(ctx context.Context, ids []int64) error
}

// ReportCache 按 (城市, 国家) 缓存天气描述
type ReportCache struct {
	store  ReportStore
	source WeatherSource
	clock  Clock
	ttl    time.Duration
	group  singleflight.Group
}

type resolveResult struct {
	description string
	outcome     model.CacheOutcome
}

// NewReportCache 创建缓存，ttl 为 0 时使用默认值
func NewReportCache(store ReportStore, source WeatherSource, clock Clock, ttl time.Duration) *ReportCache {
	if clock == nil {
		clock = SystemClock{}
	}
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}
	return &ReportCache{store: store, source: source, clock: clock, ttl: ttl}
}

// Lookup 返回与 (city, country) 匹配的全部缓存行
func (c *ReportCache) Lookup(ctx context.Context, city, country string) ([]model.CachedReport, error) {
	rows, err := c.store.FindReports(ctx, Normalize(city), Normalize(country))
	if err != nil {
		return nil, internalError(err)
	}
	return rows, nil
}

// Resolve 返回天气描述，必要时调用上游并写回缓存
//
// 同一对 (city, country) 的并发调用合并为一次执行。合并的执行不受某个调用方
// 取消的影响；调用方取消时只是自己提前返回。上游失败时缓存不变，错误原样返回。
func (c *ReportCache) Resolve(ctx context.Context, city, country, countryCode string) (string, model.CacheOutcome, error) {
	city, country = Normalize(city), Normalize(country)

	ch := c.group.DoChan(pairKey(city, country), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return c.resolve(rctx, city, country, countryCode)
	})

	select {
	case <-ctx.Done():
		return "", "", ctx.Err()
	case r := <-ch:
		res, _ := r.Val.(resolveResult)
		if r.Shared {
			logger.Debug("report resolve shared", "city", city, "country", country)
		}
		return res.description, res.outcome, r.Err
	}
}

func (c *ReportCache) resolve(ctx context.Context, city, country, countryCode string) (resolveResult, error) {
	rows, err := c.store.FindReports(ctx, city, country)
	if err != nil {
		return resolveResult{}, internalError(err)
	}

	switch len(rows) {
	case 0:
		res := resolveResult{outcome: model.CacheMiss}
		desc, err := c.fetch(ctx, city, countryCode)
		if err != nil {
			return res, err
		}
		r := &model.CachedReport{City: city, Country: country, Description: desc, LastRefreshed: c.clock.Now()}
		if err := c.store.InsertReport(ctx, r); err != nil {
			return res, internalError(err)
		}
		res.description = desc
		reportCacheTotal.WithLabelValues(string(res.outcome)).Inc()
		return res, nil

	case 1:
		row := rows[0]
		if row.Age(c.clock.Now()) <= c.ttl {
			reportCacheTotal.WithLabelValues(string(model.CacheHit)).Inc()
			return resolveResult{description: row.Description, outcome: model.CacheHit}, nil
		}
		res := resolveResult{outcome: model.CacheStale}
		desc, err := c.fetch(ctx, city, countryCode)
		if err != nil {
			return res, err
		}
		row.Description = desc
		row.LastRefreshed = c.clock.Now()
		err = c.store.UpdateReport(ctx, row)
		if errors.Is(err, model.ErrNotFound) {
			// 读取后该行已被清理
			row.ID = 0
			err = c.store.InsertReport(ctx, &row)
		}
		if err != nil {
			return res, internalError(err)
		}
		res.description = desc
		reportCacheTotal.WithLabelValues(string(res.outcome)).Inc()
		return res, nil

	default:
		res := resolveResult{outcome: model.CacheReconcile}
		desc, err := c.fetch(ctx, city, countryCode)
		if err != nil {
			return res, err
		}
		ids := make([]int64, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		if err := c.store.DeleteReports(ctx, ids); err != nil {
			return res, internalError(err)
		}
		r := &model.CachedReport{City: city, Country: country, Description: desc, LastRefreshed: c.clock.Now()}
		if err := c.store.InsertReport(ctx, r); err != nil {
			return res, internalError(err)
		}
		logger.Warn("duplicate reports reconciled", "city", city, "country", country, "removed", len(rows))
		res.description = desc
		reportCacheTotal.WithLabelValues(string(res.outcome)).Inc()
		return res, nil
	}
}

// fetch 调用上游并记录结果
func (c *ReportCache) fetch(ctx context.Context, city, countryCode string) (string, error) {
	desc, err := c.source.Fetch(ctx, city, countryCode)
	switch {
	case err == nil:
		upstreamFetchesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrCityNotFound):
		upstreamFetchesTotal.WithLabelValues("not_found").Inc()
	default:
		upstreamFetchesTotal.WithLabelValues("error").Inc()
	}
	return desc, err
}
