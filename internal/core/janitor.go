package core

import (
	"context"
	"sync"
	"time"

	"github.com/tnphung/weather-app/internal/logger"
)

// JanitorStore 后台清理依赖的存储操作
type JanitorStore interface {
	PurgeReports(ctx context.Context, before time.Time) (int64, error)
	CleanOldLogs(ctx context.Context, retentionDays int) (int64, error)
}

// Janitor 定期清理过期缓存与查询日志
type Janitor struct {
	store            JanitorStore
	clock            Clock
	interval         time.Duration
	reportRetention  time.Duration
	logRetentionDays int
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// NewJanitor 创建清理任务
func NewJanitor(store JanitorStore, clock Clock, interval, reportRetention time.Duration, logRetentionDays int) *Janitor {
	if clock == nil {
		clock = SystemClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Janitor{
		store:            store,
		clock:            clock,
		interval:         interval,
		reportRetention:  reportRetention,
		logRetentionDays: logRetentionDays,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Start 启动清理循环
func (j *Janitor) Start() {
	if j.interval <= 0 {
		return
	}
	if j.ctx == nil || j.ctx.Err() != nil {
		j.ctx, j.cancel = context.WithCancel(context.Background())
	}

	j.wg.Add(1)
	go j.run()
}

// Stop 停止清理循环
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

func (j *Janitor) run() {
	defer j.wg.Done()

	// 启动时立即清理一次
	j.Sweep(j.ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(j.ctx)
		}
	}
}

// Sweep 执行一轮清理
func (j *Janitor) Sweep(ctx context.Context) {
	if j.reportRetention > 0 {
		n, err := j.store.PurgeReports(ctx, j.clock.Now().Add(-j.reportRetention))
		if err != nil {
			logger.Warn("purge reports failed", "error", err)
		} else if n > 0 {
			logger.Info("purged stale reports", "count", n)
		}
	}
	if j.logRetentionDays > 0 {
		n, err := j.store.CleanOldLogs(ctx, j.logRetentionDays)
		if err != nil {
			logger.Warn("clean lookup logs failed", "error", err)
		} else if n > 0 {
			logger.Info("cleaned old lookup logs", "count", n)
		}
	}
}
