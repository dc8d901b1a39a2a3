package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "state", "posted.json"), nil)
}

func TestLoadMissingFile(t *testing.T) {
	s := testStore(t)
	l := s.Load()
	if l == nil || len(l) != 0 {
		t.Errorf("expected empty non-nil ledger, got %v", l)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	s := testStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, body := range []string{"{not json", "[1,2,3]", "null", `{"a": "yesterday"}`} {
		if err := os.WriteFile(s.Path(), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		l := s.Load()
		if l == nil || len(l) != 0 {
			t.Errorf("Load(%q) = %v, want empty", body, l)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := testStore(t)
	want := Ledger{"https://a.com/1": 1700000000000, "https://b.com/2": 1700000005000}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := s.Load()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}

	// file contract: a JSON object of integer millis
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("ledger file is not a JSON object: %v", err)
	}
	if raw["https://a.com/1"].String() != "1700000000000" {
		t.Errorf("expected integer millis, got %s", raw["https://a.com/1"])
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := testStore(t)
	if err := s.Save(Ledger{"old": 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Ledger{"new": 2}); err != nil {
		t.Fatal(err)
	}
	got := s.Load()
	if _, ok := got["old"]; ok || got["new"] != 2 {
		t.Errorf("expected only new entry, got %v", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(s.Path()))
	if len(entries) != 1 {
		t.Errorf("expected temp files cleaned up, dir has %d entries", len(entries))
	}
}

func TestSaveFailureSurfaces(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(filepath.Join(blocker, "posted.json"), nil)
	if err := s.Save(Ledger{"a": 1}); err == nil {
		t.Error("expected save into a non-directory to fail")
	}
}

func TestPrune(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	window := 7 * 24 * time.Hour
	cutoff := now.Add(-window).UnixMilli()
	l := Ledger{
		"fresh":    now.Add(-time.Hour).UnixMilli(),
		"edge":     cutoff,
		"justIn":   cutoff + 1,
		"old":      now.Add(-8 * 24 * time.Hour).UnixMilli(),
		"epoch":    0,
		"upcoming": now.Add(time.Hour).UnixMilli(),
	}
	got := Prune(l, now, window)
	want := Ledger{
		"fresh":    l["fresh"],
		"justIn":   l["justIn"],
		"upcoming": l["upcoming"],
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Prune = %v, want %v", got, want)
	}
	if len(l) != 6 {
		t.Error("Prune must not modify its input")
	}
}

func TestPruneIdempotent(t *testing.T) {
	now := time.Now()
	window := 7 * 24 * time.Hour
	l := Ledger{}
	for i := 0; i < 20; i++ {
		l[string(rune('a'+i))] = now.Add(-time.Duration(i) * 12 * time.Hour).UnixMilli()
	}
	once := Prune(l, now, window)
	twice := Prune(once, now, window)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("prune not idempotent: %v vs %v", once, twice)
	}
}

func TestMarkHandled(t *testing.T) {
	l := Ledger{}
	t1 := time.UnixMilli(1000)
	t2 := time.UnixMilli(2000)
	if l.IsHandled("a") {
		t.Error("empty ledger should not contain a")
	}
	l.MarkHandled("a", t1)
	l.MarkHandled("a", t2)
	if len(l) != 1 || l["a"] != 2000 {
		t.Errorf("expected single entry updated to 2000, got %v", l)
	}
	if !l.IsHandled("a") {
		t.Error("expected a handled")
	}
}
