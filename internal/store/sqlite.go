package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tnphung/weather-app/internal/model"
)

// ErrNotFound 记录不存在，与 model.ErrNotFound 相同
var ErrNotFound = model.ErrNotFound

// Store 数据存储
type Store struct {
	db *sql.DB
}

// New 创建存储实例
func New(dbPath string) (*Store, error) {
	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// migrate 数据库迁移
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS api_keys (
		api_key TEXT PRIMARY KEY,
		window_start INTEGER NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS weather_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		city TEXT NOT NULL,
		country TEXT NOT NULL,
		description TEXT NOT NULL,
		last_refreshed INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS countries (
		name TEXT PRIMARY KEY COLLATE NOCASE,
		code TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lookup_logs (
		id TEXT PRIMARY KEY,
		request_id TEXT,
		timestamp INTEGER NOT NULL,
		api_key TEXT,
		query TEXT,
		city TEXT,
		country TEXT,
		outcome TEXT NOT NULL,
		cache_outcome TEXT,
		success INTEGER,
		latency_ms INTEGER,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reports_pair ON weather_reports(city COLLATE NOCASE, country COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON lookup_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_logs_outcome ON lookup_logs(outcome);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.seedCountries(defaultCountries)
}

// seedCountries 写入国家表，已存在的名称保持不变
func (s *Store) seedCountries(countries []model.Country) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO countries (name, code) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range countries {
		if _, err := stmt.Exec(c.Name, c.Code); err != nil {
			return fmt.Errorf("seed country %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// === API Keys ===

// GetAPIKey 获取密钥记录
func (s *Store) GetAPIKey(ctx context.Context, key string) (model.APIKeyRecord, bool, error) {
	var rec model.APIKeyRecord
	var windowStart int64
	err := s.db.QueryRowContext(ctx,
		"SELECT api_key, window_start, usage_count FROM api_keys WHERE api_key = ?", key,
	).Scan(&rec.Key, &windowStart, &rec.UsageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return model.APIKeyRecord{}, false, nil
	}
	if err != nil {
		return model.APIKeyRecord{}, false, fmt.Errorf("get api key: %w", err)
	}
	rec.WindowStart = fromMillis(windowStart)
	return rec, true, nil
}

// SaveAPIKey 保存密钥记录（存在则覆盖窗口与计数）
func (s *Store) SaveAPIKey(ctx context.Context, rec model.APIKeyRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (api_key, window_start, usage_count)
		VALUES (?, ?, ?)
		ON CONFLICT(api_key) DO UPDATE SET
			window_start = excluded.window_start,
			usage_count = excluded.usage_count
	`, rec.Key, toMillis(rec.WindowStart), rec.UsageCount)
	if err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	return nil
}

// IncrementAPIKeyUsage 用量 +1，在数据库侧完成避免丢失更新
func (s *Store) IncrementAPIKeyUsage(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET usage_count = usage_count + 1 WHERE api_key = ?", key)
	if err != nil {
		return fmt.Errorf("increment api key usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment api key usage: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAPIKey 删除密钥
func (s *Store) DeleteAPIKey(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM api_keys WHERE api_key = ?", key); err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}

// CountAPIKeys 当前有效密钥数
func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM api_keys").Scan(&n)
	return n, err
}

// === Weather Reports ===

// FindReports 按城市与国家查找缓存（忽略大小写）
func (s *Store) FindReports(ctx context.Context, city, country string) ([]model.CachedReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, city, country, description, last_refreshed
		FROM weather_reports
		WHERE city = ? COLLATE NOCASE AND country = ? COLLATE NOCASE
		ORDER BY id
	`, city, country)
	if err != nil {
		return nil, fmt.Errorf("find reports: %w", err)
	}
	defer rows.Close()

	var reports []model.CachedReport
	for rows.Next() {
		var r model.CachedReport
		var refreshed int64
		if err := rows.Scan(&r.ID, &r.City, &r.Country, &r.Description, &refreshed); err != nil {
			return nil, err
		}
		r.LastRefreshed = fromMillis(refreshed)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// InsertReport 新增缓存，回填 ID
func (s *Store) InsertReport(ctx context.Context, r *model.CachedReport) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO weather_reports (city, country, description, last_refreshed)
		VALUES (?, ?, ?, ?)
	`, r.City, r.Country, r.Description, toMillis(r.LastRefreshed))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	r.ID = id
	return nil
}

// UpdateReport 原地更新描述与刷新时间，城市与国家不变
func (s *Store) UpdateReport(ctx context.Context, r model.CachedReport) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE weather_reports SET description = ?, last_refreshed = ? WHERE id = ?",
		r.Description, toMillis(r.LastRefreshed), r.ID)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReports 批量删除
func (s *Store) DeleteReports(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM weather_reports WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("delete reports: %w", err)
	}
	return nil
}

// PurgeReports 清理早于 before 的缓存
func (s *Store) PurgeReports(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM weather_reports WHERE last_refreshed < ?", toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("purge reports: %w", err)
	}
	return res.RowsAffected()
}

// === Countries ===

// ListCountries 列出所有国家
func (s *Store) ListCountries(ctx context.Context) ([]model.Country, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, code FROM countries ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	defer rows.Close()

	var countries []model.Country
	for rows.Next() {
		var c model.Country
		if err := rows.Scan(&c.Name, &c.Code); err != nil {
			return nil, err
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}

// === Lookup Logs ===

// SaveLog 保存查询日志
func (s *Store) SaveLog(ctx context.Context, log *model.LookupLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lookup_logs (id, request_id, timestamp, api_key, query, city, country,
			outcome, cache_outcome, success, latency_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, log.ID, log.RequestID, toMillis(log.Timestamp), log.APIKey, log.Query, log.City, log.Country,
		log.Outcome, string(log.CacheOutcome), log.Success, log.LatencyMs, log.Error)
	return err
}

// QueryLogs 查询日志
func (s *Store) QueryLogs(ctx context.Context, query *model.LogQuery) ([]*model.LookupLog, error) {
	stmt := `SELECT id, COALESCE(request_id, ''), timestamp, COALESCE(api_key, ''), COALESCE(query, ''),
		COALESCE(city, ''), COALESCE(country, ''), outcome, COALESCE(cache_outcome, ''),
		success, latency_ms, COALESCE(error, '') FROM lookup_logs WHERE 1=1`
	args := []any{}

	if query.RequestID != "" {
		stmt += " AND request_id = ?"
		args = append(args, query.RequestID)
	}
	if query.Outcome != "" {
		stmt += " AND outcome = ?"
		args = append(args, query.Outcome)
	}
	if query.Success != nil {
		stmt += " AND success = ?"
		args = append(args, *query.Success)
	}
	if !query.StartTime.IsZero() {
		stmt += " AND timestamp >= ?"
		args = append(args, toMillis(query.StartTime))
	}
	if !query.EndTime.IsZero() {
		stmt += " AND timestamp <= ?"
		args = append(args, toMillis(query.EndTime))
	}

	stmt += " ORDER BY timestamp DESC"

	if query.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", query.Limit)
	} else {
		stmt += " LIMIT 100"
	}
	if query.Offset > 0 {
		stmt += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*model.LookupLog
	for rows.Next() {
		var log model.LookupLog
		var ts int64
		var cacheOutcome string
		if err := rows.Scan(&log.ID, &log.RequestID, &ts, &log.APIKey, &log.Query,
			&log.City, &log.Country, &log.Outcome, &cacheOutcome,
			&log.Success, &log.LatencyMs, &log.Error); err != nil {
			return nil, err
		}
		log.Timestamp = fromMillis(ts)
		log.CacheOutcome = model.CacheOutcome(cacheOutcome)
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

// GetDailyStats 获取每日统计
func (s *Store) GetDailyStats(ctx context.Context, days int) ([]*model.DailyStats, error) {
	since := time.Now().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			date(timestamp / 1000, 'unixepoch') as date,
			COUNT(*) as total_requests,
			ROUND(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END) * 100.0 / COUNT(*), 2) as success_rate,
			SUM(CASE WHEN cache_outcome = 'hit' THEN 1 ELSE 0 END) as cache_hits,
			SUM(CASE WHEN outcome = 'quota_exceeded' THEN 1 ELSE 0 END) as quota_denials,
			ROUND(AVG(latency_ms), 2) as avg_latency
		FROM lookup_logs
		WHERE timestamp >= ?
		GROUP BY date
		ORDER BY date DESC
	`, toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*model.DailyStats
	for rows.Next() {
		var st model.DailyStats
		if err := rows.Scan(&st.Date, &st.TotalRequests, &st.SuccessRate, &st.CacheHits, &st.QuotaDenials, &st.AvgLatency); err != nil {
			return nil, err
		}
		stats = append(stats, &st)
	}
	return stats, rows.Err()
}

// CleanOldLogs 清理过期日志
func (s *Store) CleanOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	before := time.Now().AddDate(0, 0, -retentionDays)
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM lookup_logs WHERE timestamp < ?", toMillis(before))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
