package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type snapshot struct {
	Devices []string `json:"devices"`
	Total   int      `json:"total"`
}

// roundTrip verifies the put/get contract shared by all backends.
func roundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	_, ok, err := s.Get(ctx, "sensors", "harvest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected absent state for unwritten key")
	}

	want := snapshot{Devices: []string{"dev-1", "dev-2"}, Total: 2}
	if err := s.Put(ctx, "sensors", "harvest", want, ts); err != nil {
		t.Fatalf("put: %v", err)
	}

	st, ok, err := s.Get(ctx, "sensors", "harvest")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected state after put")
	}
	if !st.Timestamp.Equal(ts) {
		t.Fatalf("expected timestamp %v, got %v", ts, st.Timestamp)
	}

	got, err := Decode[snapshot](st)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != want.Total || len(got.Devices) != 2 || got.Devices[0] != "dev-1" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	// Keys in other pipelines stay independent.
	_, ok, err = s.Get(ctx, "other", "harvest")
	if err != nil || ok {
		t.Fatalf("expected absent state in other pipeline (ok=%v err=%v)", ok, err)
	}
}

func TestMemory_RoundTrip(t *testing.T) {
	roundTrip(t, NewMemory())
}

func TestFile_RoundTrip(t *testing.T) {
	f, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	roundTrip(t, f)
}

func TestMemory_Overwrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Put(ctx, "p", "s", 1, time.Now()); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.Put(ctx, "p", "s", 2, time.Now()); err != nil {
		t.Fatalf("put: %v", err)
	}

	st, ok, _ := m.Get(ctx, "p", "s")
	if !ok || st.Value != 2 {
		t.Fatalf("expected overwritten value 2, got %v", st.Value)
	}
	if m.Len() != 1 {
		t.Fatalf("expected single key, got %d", m.Len())
	}
}

func TestMemory_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Put(ctx, "p", "s", i, time.Now())
		}(i)
	}
	wg.Wait()

	_, ok, err := m.Get(ctx, "p", "s")
	if err != nil || !ok {
		t.Fatalf("expected state after concurrent writes (ok=%v err=%v)", ok, err)
	}
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f1, err := NewFile(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := f1.Put(ctx, "sensors", "group", map[string]int{"groups": 3}, time.Now()); err != nil {
		t.Fatalf("put: %v", err)
	}

	f2, err := NewFile(dir)
	if err != nil {
		t.Fatalf("reopen file store: %v", err)
	}
	st, ok, err := f2.Get(ctx, "sensors", "group")
	if err != nil || !ok {
		t.Fatalf("expected persisted state (ok=%v err=%v)", ok, err)
	}
	got, err := Decode[map[string]int](st)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["groups"] != 3 {
		t.Fatalf("expected groups=3, got %v", got)
	}
}

func TestFile_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := f.Put(context.Background(), "p", "s", "v", time.Now()); err != nil {
		t.Fatalf("put: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "p", "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestFile_KeyComponentsCannotEscapeBase(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	dir := filepath.Join(parent, "state")

	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := f.Put(ctx, "../escape", "../../evil", "v", time.Now()); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := os.Stat(filepath.Join(parent, "escape")); !os.IsNotExist(err) {
		t.Fatal("key component traversed outside the base directory")
	}
	_, ok, err := f.Get(ctx, "../escape", "../../evil")
	if err != nil || !ok {
		t.Fatalf("expected sanitized key to round-trip (ok=%v err=%v)", ok, err)
	}
}

func TestFile_ReservedStageIDGetsPortableName(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := NewFile(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := f.Put(ctx, "sensors", "pipeline:run_history", []string{"r1"}, time.Now()); err != nil {
		t.Fatalf("put: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "sensors", "*.json"))
	if len(matches) != 1 {
		t.Fatalf("expected one state file, got %v", matches)
	}
	if strings.ContainsAny(filepath.Base(matches[0]), ":\\/") {
		t.Fatalf("state file name not portable: %s", matches[0])
	}

	_, ok, err := f.Get(ctx, "sensors", "pipeline:run_history")
	if err != nil || !ok {
		t.Fatalf("expected reserved key to round-trip (ok=%v err=%v)", ok, err)
	}
}

func TestDecode_RawValue(t *testing.T) {
	got, err := Decode[int](StoredState{Value: 42})
	if err != nil || got != 42 {
		t.Fatalf("expected 42, got %v (err=%v)", got, err)
	}
}

func TestDecode_RawMessage(t *testing.T) {
	got, err := Decode[snapshot](StoredState{Value: json.RawMessage(`{"devices":["d"],"total":1}`)})
	if err != nil || got.Total != 1 {
		t.Fatalf("expected decoded snapshot, got %+v (err=%v)", got, err)
	}
}

func TestDecode_WrongType(t *testing.T) {
	if _, err := Decode[int](StoredState{Value: "nope"}); err == nil {
		t.Fatal("expected error for mismatched stored type")
	}
}
