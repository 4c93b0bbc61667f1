package subscription

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *FileSubscriptionStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subscriptions.json")
	store, err := Load(path, 60, 60)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return store
}

func TestAddListRemove(t *testing.T) {
	store := newTestStore(t)

	if err := store.Add(1, 0, "foo", 60, false, false, nil, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	subs, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(subs) != 1 || subs[0].Account != "foo" {
		t.Fatalf("List() = %+v, want one subscription for foo", subs)
	}

	if err := store.Remove(1, "foo"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	subs, _ = store.List()
	if len(subs) != 0 {
		t.Fatalf("List() after Remove = %+v, want empty", subs)
	}
}

func TestAddRejectsBelowIntervalFloor(t *testing.T) {
	store := newTestStore(t)
	if err := store.Add(1, 0, "foo", 5, false, false, nil, nil); err == nil {
		t.Fatal("expected Add to reject an interval below the configured floor")
	}
}

func TestAddRejectsDuplicateAccount(t *testing.T) {
	store := newTestStore(t)
	if err := store.Add(1, 0, "foo", 60, false, false, nil, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(1, 0, "foo", 60, false, false, nil, nil); err == nil {
		t.Fatal("expected duplicate (channel, account) to be rejected")
	}
}

func TestWatermarkGetSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscriptions.json")
	store, err := Load(path, 60, 60)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.Add(1, 0, "foo", 60, false, false, nil, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, ok, _ := store.Get(1, "foo"); ok {
		t.Fatal("expected no watermark before any Set")
	}

	if err := store.Set(1, "foo", "p1"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := Load(path, 60, 60)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	id, ok, err := reopened.Get(1, "foo")
	if err != nil || !ok || id != "p1" {
		t.Fatalf("Get after reload = (%q, %v, %v), want (p1, true, nil)", id, ok, err)
	}
}

func TestLegacyIntervalMinutesUpconverts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscriptions.json")
	raw := `{"subscriptions": {"7": [{"account": "bar", "interval_minutes": 2}]}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store, err := Load(path, 60, 60)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	subs, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(subs) != 1 || subs[0].IntervalSeconds != 120 {
		t.Fatalf("List() = %+v, want interval_seconds=120", subs)
	}
}
