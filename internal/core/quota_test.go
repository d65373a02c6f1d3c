package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tnphung/weather-app/internal/model"
)

func newTestTracker() (*QuotaTracker, *memKeyStore, *fakeClock) {
	store := newMemKeyStore()
	clock := newFakeClock()
	return NewQuotaTracker(store, clock, 5, time.Hour), store, clock
}

// --------------- Admit() tests ---------------

func TestAdmit_AllowsUnderLimitWithinWindow(t *testing.T) {
	for usage := 0; usage < 5; usage++ {
		q, store, clock := newTestTracker()
		start := clock.Now().Add(-30 * time.Minute)
		store.put(model.APIKeyRecord{Key: "k1", WindowStart: start, UsageCount: usage})

		if err := q.Admit(context.Background(), "k1"); err != nil {
			t.Fatalf("usage=%d: expected allowed, got %v", usage, err)
		}
		rec, ok := store.get("k1")
		if !ok || rec.UsageCount != usage || !rec.WindowStart.Equal(start) {
			t.Fatalf("usage=%d: admit must not change the record, got %+v", usage, rec)
		}
	}
}

func TestAdmit_DeniesAtLimitAndEvicts(t *testing.T) {
	for _, usage := range []int{5, 6, 100} {
		q, store, clock := newTestTracker()
		store.put(model.APIKeyRecord{Key: "k1", WindowStart: clock.Now().Add(-10 * time.Minute), UsageCount: usage})

		err := q.Admit(context.Background(), "k1")
		if !errors.Is(err, ErrQuotaExceeded) {
			t.Fatalf("usage=%d: expected QuotaExceeded, got %v", usage, err)
		}
		if _, ok := store.get("k1"); ok {
			t.Fatalf("usage=%d: expected key to be evicted", usage)
		}
	}
}

func TestAdmit_StaleUnderLimitResetsWindow(t *testing.T) {
	q, store, clock := newTestTracker()
	store.put(model.APIKeyRecord{Key: "k1", WindowStart: clock.Now().Add(-2 * time.Hour), UsageCount: 4})

	if err := q.Admit(context.Background(), "k1"); err != nil {
		t.Fatalf("expected stale key to be allowed, got %v", err)
	}
	rec, ok := store.get("k1")
	if !ok {
		t.Fatal("expected key to remain")
	}
	if rec.UsageCount != 0 {
		t.Errorf("expected usage reset to 0, got %d", rec.UsageCount)
	}
	if !rec.WindowStart.Equal(clock.Now()) {
		t.Errorf("expected window start %v, got %v", clock.Now(), rec.WindowStart)
	}
}

func TestAdmit_StaleAtLimitIsNotRefreshed(t *testing.T) {
	q, store, clock := newTestTracker()
	store.put(model.APIKeyRecord{Key: "k1", WindowStart: clock.Now().Add(-3 * time.Hour), UsageCount: 5})

	err := q.Admit(context.Background(), "k1")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected QuotaExceeded, got %v", err)
	}
	if _, ok := store.get("k1"); ok {
		t.Fatal("expected exhausted stale key to be evicted")
	}
	if store.saveCount() != 0 {
		t.Fatalf("exhausted key must not be rewritten, saw %d saves", store.saveCount())
	}
}

func TestAdmit_ExactWindowBoundaryDenies(t *testing.T) {
	q, store, clock := newTestTracker()
	store.put(model.APIKeyRecord{Key: "k1", WindowStart: clock.Now().Add(-time.Hour), UsageCount: 1})

	// 恰好满一小时：既不重置也不在窗口内
	err := q.Admit(context.Background(), "k1")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected QuotaExceeded at exact boundary, got %v", err)
	}
}

func TestAdmit_UnknownKey(t *testing.T) {
	q, _, _ := newTestTracker()

	for _, key := range []string{"", "missing"} {
		err := q.Admit(context.Background(), key)
		if !errors.Is(err, ErrKeyInvalid) {
			t.Fatalf("key %q: expected KeyInvalid, got %v", key, err)
		}
		if errors.Is(err, ErrQuotaExceeded) {
			t.Fatalf("key %q: KeyInvalid must be distinguishable from QuotaExceeded", key)
		}
	}
}

func TestAdmit_StoreErrorIsInternal(t *testing.T) {
	q, store, _ := newTestTracker()
	store.err = errors.New("disk gone")

	err := q.Admit(context.Background(), "k1")
	if KindOf(err) != KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestAdmit_ConcurrentRefreshHappensOnce(t *testing.T) {
	q, store, clock := newTestTracker()
	store.put(model.APIKeyRecord{Key: "k1", WindowStart: clock.Now().Add(-2 * time.Hour), UsageCount: 2})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- q.Admit(context.Background(), "k1")
		}()
	}
	wg.Wait()
	close(errs)

	allowed, denied := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			allowed++
		case errors.Is(err, ErrQuotaExceeded):
			denied++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if allowed != 5 || denied != 15 {
		t.Fatalf("expected 5 admitted and 15 denied, got %d and %d", allowed, denied)
	}
	if store.saveCount() != 1 {
		t.Fatalf("expected exactly one window reset, got %d", store.saveCount())
	}
	if _, ok := store.get("k1"); !ok {
		t.Fatal("key with only in-flight lookups must not be evicted")
	}
}

func TestAdmit_ReservesUntilRecordedOrReleased(t *testing.T) {
	q, store, clock := newTestTracker()
	store.put(model.APIKeyRecord{Key: "k1", WindowStart: clock.Now(), UsageCount: 4})
	ctx := context.Background()

	if err := q.Admit(ctx, "k1"); err != nil {
		t.Fatalf("expected last call to be admitted, got %v", err)
	}
	if err := q.Admit(ctx, "k1"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected second admission to be denied while the first is in flight, got %v", err)
	}
	if rec, ok := store.get("k1"); !ok || rec.UsageCount != 4 {
		t.Fatalf("denial by in-flight lookup must leave the key untouched, got %+v ok=%v", rec, ok)
	}

	// 失败的查询归还名额
	q.Release("k1")
	if q.Reserved("k1") != 0 {
		t.Fatalf("expected no reservation after release, got %d", q.Reserved("k1"))
	}
	if err := q.Admit(ctx, "k1"); err != nil {
		t.Fatalf("expected admission after release, got %v", err)
	}
	if err := q.RecordUse(ctx, "k1"); err != nil {
		t.Fatalf("RecordUse failed: %v", err)
	}
	if q.Reserved("k1") != 0 {
		t.Fatalf("expected reservation consumed by RecordUse, got %d", q.Reserved("k1"))
	}
	if rec, _ := store.get("k1"); rec.UsageCount != 5 {
		t.Fatalf("expected usage 5, got %d", rec.UsageCount)
	}

	if err := q.Admit(ctx, "k1"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected QuotaExceeded at limit, got %v", err)
	}
	if _, ok := store.get("k1"); ok {
		t.Fatal("expected exhausted key to be evicted")
	}
}

// --------------- RecordUse / Evict / Issue ---------------

func TestRecordUse_Increments(t *testing.T) {
	q, store, clock := newTestTracker()
	store.put(model.APIKeyRecord{Key: "k1", WindowStart: clock.Now()})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.RecordUse(context.Background(), "k1"); err != nil {
				t.Errorf("RecordUse failed: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, _ := store.get("k1")
	if rec.UsageCount != 10 {
		t.Fatalf("expected usage 10, got %d", rec.UsageCount)
	}
	if q.locks.size() != 0 {
		t.Fatalf("expected key locks to be released, %d remain", q.locks.size())
	}
}

func TestRecordUse_KeyEvictedMidLookup(t *testing.T) {
	q, store, clock := newTestTracker()
	store.put(model.APIKeyRecord{Key: "k1", WindowStart: clock.Now()})
	ctx := context.Background()

	if err := q.Admit(ctx, "k1"); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if err := q.Evict(ctx, "k1"); err != nil {
		t.Fatalf("Evict failed: %v", err)
	}
	if err := q.RecordUse(ctx, "k1"); err != nil {
		t.Fatalf("expected RecordUse on an evicted key to be a no-op, got %v", err)
	}
	if q.Reserved("k1") != 0 {
		t.Fatalf("expected no reservation left, got %d", q.Reserved("k1"))
	}
}

func TestEvict_RemovesKey(t *testing.T) {
	q, store, clock := newTestTracker()
	store.put(model.APIKeyRecord{Key: "k1", WindowStart: clock.Now()})

	if err := q.Evict(context.Background(), "k1"); err != nil {
		t.Fatalf("Evict failed: %v", err)
	}
	if err := q.Admit(context.Background(), "k1"); !errors.Is(err, ErrKeyInvalid) {
		t.Fatalf("expected KeyInvalid after evict, got %v", err)
	}
}

func TestIssueN_CreatesFreshUniqueKeys(t *testing.T) {
	q, store, clock := newTestTracker()

	keys, err := q.IssueN(context.Background(), 5)
	if err != nil {
		t.Fatalf("IssueN failed: %v", err)
	}
	if len(keys) != 5 {
		t.Fatalf("expected 5 keys, got %d", len(keys))
	}

	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" || seen[k.Key] {
			t.Fatalf("expected unique non-empty keys, got %q", k.Key)
		}
		seen[k.Key] = true
		rec, ok := store.get(k.Key)
		if !ok || rec.UsageCount != 0 || !rec.WindowStart.Equal(clock.Now()) {
			t.Fatalf("unexpected stored record: %+v", rec)
		}
		if err := q.Admit(context.Background(), k.Key); err != nil {
			t.Fatalf("fresh key should be admitted: %v", err)
		}
	}
}

func TestIssue_GeneratorErrorIsInternal(t *testing.T) {
	q, _, _ := newTestTracker()
	q.newKey = func() (string, error) { return "", errors.New("no entropy") }

	if _, err := q.Issue(context.Background()); KindOf(err) != KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}
