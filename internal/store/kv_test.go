package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:kv_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func TestPutGetRaw_Upsert(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetRaw(ctx, KeyAPIURL); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}
	if err := s.PutRaw(ctx, KeyAPIURL, `"https://one"`); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutRaw(ctx, KeyAPIURL, `"https://two"`); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	raw, ok, err := s.GetRaw(ctx, KeyAPIURL)
	if err != nil || !ok || raw != `"https://two"` {
		t.Fatalf("got %q ok=%v err=%v", raw, ok, err)
	}
}

func TestGetPutJSON(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in := []string{"a", "b"}
	if err := s.PutJSON(ctx, KeyUsers, in); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out []string
	ok, err := s.GetJSON(ctx, KeyUsers, &out)
	if err != nil || !ok || len(out) != 2 || out[1] != "b" {
		t.Fatalf("round trip: out=%v ok=%v err=%v", out, ok, err)
	}

	var missing []string
	ok, err = s.GetJSON(ctx, "nope", &missing)
	if err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
}

func TestSnapshot_RoundTripAndClear(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	at := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := s.WriteSnapshot(ctx, KeyMasterCache, KeyMasterTS, []int{1, 2, 3}, at); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out []int
	got, ok, err := s.ReadSnapshot(ctx, KeyMasterCache, KeyMasterTS, &out)
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if !got.Equal(at) {
		t.Fatalf("timestamp %v; want %v", got, at)
	}
	if len(out) != 3 {
		t.Fatalf("payload %v", out)
	}

	if err := s.ClearSnapshot(ctx, KeyMasterCache, KeyMasterTS); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := s.ReadSnapshot(ctx, KeyMasterCache, KeyMasterTS, &out); ok {
		t.Fatalf("snapshot should be gone")
	}
}

func TestReadSnapshot_MissingTimestampIsStaleNotMissing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.PutJSON(ctx, KeyQCCache, []int{9}); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out []int
	at, ok, err := s.ReadSnapshot(ctx, KeyQCCache, KeyQCTS, &out)
	if err != nil || !ok {
		t.Fatalf("snapshot with no ts must still load: ok=%v err=%v", ok, err)
	}
	if !at.IsZero() {
		t.Fatalf("missing ts should read as zero time, got %v", at)
	}
}

func TestMutate_SerializesReadModifyWrite(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.PutRaw(ctx, KeyEditHistory, `0`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Mutate(ctx, KeyEditHistory, func(raw string, ok bool) (string, bool, error) {
				var n int
				if ok {
					if err := json.Unmarshal([]byte(raw), &n); err != nil {
						return "", false, err
					}
				}
				b, _ := json.Marshal(n + 1)
				return string(b), true, nil
			})
			if err != nil {
				t.Errorf("mutate: %v", err)
			}
		}()
	}
	wg.Wait()

	var n int
	if ok, err := s.GetJSON(ctx, KeyEditHistory, &n); err != nil || !ok {
		t.Fatalf("read back: ok=%v err=%v", ok, err)
	}
	if n != workers {
		t.Fatalf("lost updates: n=%d want %d", n, workers)
	}
}

func TestMutate_DeleteBranch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_ = s.PutRaw(ctx, "tmp", `1`)
	err := s.Mutate(ctx, "tmp", func(raw string, ok bool) (string, bool, error) {
		return "", false, nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if _, ok, _ := s.GetRaw(ctx, "tmp"); ok {
		t.Fatalf("key should have been deleted")
	}
}

func TestSnapshotStats(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	count, at, err := s.SnapshotStats(ctx, KeyMasterCache, KeyMasterTS)
	if err != nil || count != 0 || at != nil {
		t.Fatalf("empty stats: %d %v %v", count, at, err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	_ = s.WriteSnapshot(ctx, KeyMasterCache, KeyMasterTS, []map[string]any{{"a": 1}, {"b": 2}}, now)
	count, at, err = s.SnapshotStats(ctx, KeyMasterCache, KeyMasterTS)
	if err != nil || count != 2 || at == nil || !at.Equal(now) {
		t.Fatalf("stats: %d %v %v", count, at, err)
	}
}
