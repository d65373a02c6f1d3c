package core

import (
	"context"
	"strings"
	"sync"

	"github.com/tnphung/weather-app/internal/logger"
	"github.com/tnphung/weather-app/internal/model"
)

// CountryStore 国家表来源
type CountryStore interface {
	ListCountries(ctx context.Context) ([]model.Country, error)
}

// CountryTable 国家名称到代码的查找表
//
// 首次成功加载后只读；加载失败时下一次调用会重试。
type CountryTable struct {
	store     CountryStore
	mu        sync.RWMutex
	loaded    bool
	countries map[string]model.Country // 小写名称 -> 国家
}

// NewCountryTable 创建查找表，此时不访问存储
func NewCountryTable(store CountryStore) *CountryTable {
	return &CountryTable{store: store}
}

// Resolve 按名称查找国家（忽略大小写与多余空白）
func (t *CountryTable) Resolve(ctx context.Context, name string) (model.Country, error) {
	if err := t.ensureLoaded(ctx); err != nil {
		return model.Country{}, internalError(err)
	}

	key := strings.ToLower(strings.Join(strings.Fields(name), " "))
	t.mu.RLock()
	c, ok := t.countries[key]
	t.mu.RUnlock()
	if !ok {
		return model.Country{}, NewError(KindCountryNotFound, MsgCountryNotFound, nil)
	}
	return c, nil
}

// Len 已加载的国家数
func (t *CountryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.countries)
}

func (t *CountryTable) ensureLoaded(ctx context.Context) error {
	t.mu.RLock()
	loaded := t.loaded
	t.mu.RUnlock()
	if loaded {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded {
		return nil
	}

	list, err := t.store.ListCountries(ctx)
	if err != nil {
		return err
	}
	countries := make(map[string]model.Country, len(list))
	for _, c := range list {
		countries[strings.ToLower(c.Name)] = c
	}
	t.countries = countries
	t.loaded = true
	logger.Infof("Loaded %d countries", len(countries))
	return nil
}
