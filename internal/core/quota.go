package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tnphung/weather-app/internal/logger"
	"github.com/tnphung/weather-app/internal/model"
)

const (
	DefaultQuotaLimit  = 5         // 窗口内最多调用次数
	DefaultQuotaWindow = time.Hour // 用量窗口
)

// KeyStore API Key 持久化
type KeyStore interface {
	GetAPIKey(ctx context.Context, key string) (model.APIKeyRecord, bool, error)
	SaveAPIKey(ctx context.Context, rec model.APIKeyRecord) error
	IncrementAPIKeyUsage(ctx context.Context, key string) error
	DeleteAPIKey(ctx context.Context, key string) error
}

// QuotaTracker API Key 配额跟踪
//
// 同一个 key 的检查与写回在 key 级锁内完成，不同 key 之间互不阻塞。
// 放行时占用一个名额，查询成功后由 RecordUse 计入用量，失败则 Release 归还，
// 因此已记录用量加上进行中的名额不会超过上限。
type QuotaTracker struct {
	store  KeyStore
	clock  Clock
	limit  int
	window time.Duration
	locks  *keyedMutex
	newKey func() (string, error)

	mu       sync.Mutex
	reserved map[string]int // 已放行、尚未计入用量的查询数
}

// NewQuotaTracker 创建配额跟踪器，limit/window 为 0 时使用默认值
func NewQuotaTracker(store KeyStore, clock Clock, limit int, window time.Duration) *QuotaTracker {
	if clock == nil {
		clock = SystemClock{}
	}
	if limit <= 0 {
		limit = DefaultQuotaLimit
	}
	if window <= 0 {
		window = DefaultQuotaWindow
	}
	return &QuotaTracker{
		store:  store,
		clock:  clock,
		limit:  limit,
		window: window,
		locks:  newKeyedMutex(),
		newKey: GenerateAPIKey,

		reserved: make(map[string]int),
	}
}

// Limit 窗口内调用上限
func (q *QuotaTracker) Limit() int { return q.limit }

// Window 窗口时长
func (q *QuotaTracker) Window() time.Duration { return q.window }

// Admit 判断 key 是否可以发起一次查询
//
// 返回 nil 表示放行并占用一个名额，调用方成功后调用 RecordUse，失败则调用 Release。
// 窗口已过期且未用满的 key 会重置窗口；已用满的 key 即使窗口过期也不重置，
// 直接拒绝并删除，只能重新签发。名额仅因进行中的查询而占满时拒绝但不删除。
func (q *QuotaTracker) Admit(ctx context.Context, key string) error {
	if key == "" {
		admissionsTotal.WithLabelValues("not_found").Inc()
		return NewError(KindKeyInvalid, MsgKeyInvalid, nil)
	}

	unlock := q.locks.Lock(key)
	defer unlock()

	rec, found, err := q.store.GetAPIKey(ctx, key)
	if err != nil {
		admissionsTotal.WithLabelValues("error").Inc()
		return internalError(err)
	}
	if !found {
		admissionsTotal.WithLabelValues("not_found").Inc()
		return NewError(KindKeyInvalid, MsgKeyInvalid, nil)
	}

	now := q.clock.Now()
	if rec.WindowAge(now) > q.window && rec.UsageCount < q.limit {
		rec = model.APIKeyRecord{Key: key, WindowStart: now}
		if err := q.store.SaveAPIKey(ctx, rec); err != nil {
			admissionsTotal.WithLabelValues("error").Inc()
			return internalError(err)
		}
		logger.Debug("api key window reset", "key", model.MaskKey(key))
	}

	if rec.WindowAge(now) < q.window && rec.UsageCount < q.limit {
		if !q.reserve(key, rec.UsageCount) {
			admissionsTotal.WithLabelValues("in_flight").Inc()
			return NewError(KindQuotaExceeded, MsgQuotaExceeded, nil)
		}
		admissionsTotal.WithLabelValues("allowed").Inc()
		return nil
	}

	if err := q.store.DeleteAPIKey(ctx, key); err != nil {
		admissionsTotal.WithLabelValues("error").Inc()
		return internalError(err)
	}
	q.drop(key)
	admissionsTotal.WithLabelValues("limit_reached").Inc()
	logger.Info("api key evicted", "key", model.MaskKey(key), "usage", rec.UsageCount)
	return NewError(KindQuotaExceeded, MsgQuotaExceeded, nil)
}

// RecordUse 把一次放行计入用量
func (q *QuotaTracker) RecordUse(ctx context.Context, key string) error {
	unlock := q.locks.Lock(key)
	defer unlock()

	q.release(key)
	err := q.store.IncrementAPIKeyUsage(ctx, key)
	switch {
	case errors.Is(err, model.ErrNotFound):
		// 查询期间 key 已被删除，无用量可记
		logger.Debug("api key gone before use was recorded", "key", model.MaskKey(key))
		return nil
	case err != nil:
		return internalError(err)
	}
	return nil
}

// Release 归还一次未完成查询占用的名额，用量不变
func (q *QuotaTracker) Release(key string) {
	unlock := q.locks.Lock(key)
	defer unlock()

	q.release(key)
}

// Evict 永久删除 key
func (q *QuotaTracker) Evict(ctx context.Context, key string) error {
	unlock := q.locks.Lock(key)
	defer unlock()

	if err := q.store.DeleteAPIKey(ctx, key); err != nil {
		return internalError(err)
	}
	q.drop(key)
	return nil
}

// Reserved 进行中的查询数
func (q *QuotaTracker) Reserved(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reserved[key]
}

// reserve 在 usage 加进行中的名额未达上限时占用一个，调用方持有 key 锁
func (q *QuotaTracker) reserve(key string, usage int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if usage+q.reserved[key] >= q.limit {
		return false
	}
	q.reserved[key]++
	return true
}

func (q *QuotaTracker) release(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch n := q.reserved[key]; {
	case n > 1:
		q.reserved[key] = n - 1
	case n == 1:
		delete(q.reserved, key)
	}
}

func (q *QuotaTracker) drop(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.reserved, key)
}

// Issue 签发一个新 key
func (q *QuotaTracker) Issue(ctx context.Context) (model.APIKeyRecord, error) {
	key, err := q.newKey()
	if err != nil {
		return model.APIKeyRecord{}, internalError(err)
	}
	rec := model.APIKeyRecord{Key: key, WindowStart: q.clock.Now()}
	if err := q.store.SaveAPIKey(ctx, rec); err != nil {
		return model.APIKeyRecord{}, internalError(err)
	}
	return rec, nil
}

// IssueN 批量签发
func (q *QuotaTracker) IssueN(ctx context.Context, n int) ([]model.APIKeyRecord, error) {
	keys := make([]model.APIKeyRecord, 0, n)
	for i := 0; i < n; i++ {
		rec, err := q.Issue(ctx)
		if err != nil {
			return nil, err
		}
		keys = append(keys, rec)
	}
	return keys, nil
}
