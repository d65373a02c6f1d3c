package model

import "time"

// APIKeyRecord API 密钥及其用量窗口
type APIKeyRecord struct {
	Key         string    `json:"api_key"`
	WindowStart time.Time `json:"window_start"`
	UsageCount  int       `json:"usage_count"`
}

// WindowAge 返回窗口已持续的时间
func (r APIKeyRecord) WindowAge(now time.Time) time.Duration {
	return now.Sub(r.WindowStart)
}

// IssuedKey 签发给调用方的密钥（接口响应）
type IssuedKey struct {
	Key       string `json:"api_key"`
	Timestamp int64  `json:"timestamp"` // 签发时间，毫秒
}

// ToIssued 转换为响应格式
func (r APIKeyRecord) ToIssued() IssuedKey {
	return IssuedKey{
		Key:       r.Key,
		Timestamp: r.WindowStart.UnixMilli(),
	}
}

// MaskKey 日志中只保留前几位
func MaskKey(key string) string {
	if len(key) <= 6 {
		return "***"
	}
	return key[:6] + "***"
}
