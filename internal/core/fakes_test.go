package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tnphung/weather-app/internal/model"
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memKeyStore 内存版 KeyStore
type memKeyStore struct {
	mu    sync.Mutex
	keys  map[string]model.APIKeyRecord
	saves int
	err   error
}

func newMemKeyStore() *memKeyStore {
	return &memKeyStore{keys: make(map[string]model.APIKeyRecord)}
}

func (s *memKeyStore) GetAPIKey(_ context.Context, key string) (model.APIKeyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.APIKeyRecord{}, false, s.err
	}
	rec, ok := s.keys[key]
	return rec, ok, nil
}

func (s *memKeyStore) SaveAPIKey(_ context.Context, rec model.APIKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.keys[rec.Key] = rec
	return nil
}

func (s *memKeyStore) IncrementAPIKeyUsage(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[key]
	if !ok {
		return model.ErrNotFound
	}
	rec.UsageCount++
	s.keys[key] = rec
	return nil
}

func (s *memKeyStore) DeleteAPIKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *memKeyStore) put(rec model.APIKeyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[rec.Key] = rec
}

func (s *memKeyStore) get(key string) (model.APIKeyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[key]
	return rec, ok
}

func (s *memKeyStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// memReportStore 内存版 ReportStore，允许重复行
type memReportStore struct {
	mu     sync.Mutex
	rows   []model.CachedReport
	nextID int64
}

func (s *memReportStore) FindReports(_ context.Context, city, country string) ([]model.CachedReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CachedReport
	for _, r := range s.rows {
		if strings.EqualFold(r.City, city) && strings.EqualFold(r.Country, country) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memReportStore) InsertReport(_ context.Context, r *model.CachedReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	s.rows = append(s.rows, *r)
	return nil
}

func (s *memReportStore) UpdateReport(_ context.Context, r model.CachedReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == r.ID {
			s.rows[i].Description = r.Description
			s.rows[i].LastRefreshed = r.LastRefreshed
			return nil
		}
	}
	return model.ErrNotFound
}

func (s *memReportStore) DeleteReports(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.rows[:0]
	for _, r := range s.rows {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return nil
}

func (s *memReportStore) add(city, country, desc string, refreshed time.Time) model.CachedReport {
	r := &model.CachedReport{City: city, Country: country, Description: desc, LastRefreshed: refreshed}
	s.InsertReport(context.Background(), r)
	return *r
}

func (s *memReportStore) all() []model.CachedReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CachedReport(nil), s.rows...)
}

// fakeSource 记录调用次数的 WeatherSource
type fakeSource struct {
	calls atomic.Int32
	desc  string
	err   error
	gate  chan struct{} // 非 nil 时阻塞到关闭
}

func (f *fakeSource) Fetch(ctx context.Context, city, countryCode string) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.desc, nil
}

// memCountryStore 内存版 CountryStore
type memCountryStore struct {
	countries []model.Country
	calls     atomic.Int32
	failFirst int32
}

func (s *memCountryStore) ListCountries(context.Context) ([]model.Country, error) {
	n := s.calls.Add(1)
	if n <= s.failFirst {
		return nil, errors.New("db unavailable")
	}
	return s.countries, nil
}

func testCountries() *memCountryStore {
	return &memCountryStore{countries: []model.Country{
		{Name: "Australia", Code: "AU"},
		{Name: "United States", Code: "US"},
		{Name: "Norway", Code: "NO"},
	}}
}

// memLogStore 内存版 LogStore
type memLogStore struct {
	mu   sync.Mutex
	logs []*model.LookupLog
}

func (s *memLogStore) SaveLog(_ context.Context, log *model.LookupLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *memLogStore) last() *model.LookupLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.logs) == 0 {
		return nil
	}
	return s.logs[len(s.logs)-1]
}
