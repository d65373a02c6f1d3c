package core

import "time"

// Clock 时间来源，测试中可替换
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时间
type SystemClock struct{}

// Now 当前时间
func (SystemClock) Now() time.Time { return time.Now() }
