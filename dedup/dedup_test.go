package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/dhcgn/patent-reminders/model"
)

func record(app, path string, deadline time.Time) model.ReminderRecord {
	return model.ReminderRecord{ApplicationNo: app, FilePath: path, Deadline: deadline}
}

func TestFilter_SameKeyDifferentPaths(t *testing.T) {
	deadline := time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC)
	records := []model.ReminderRecord{
		record("202310123456.7", "old/a.eml", deadline),
		record("202310123456.7", "new/a.eml", deadline),
		record("202310123456.7", "new/b.eml", deadline.AddDate(0, 1, 0)),
		record("202310234567.8", "new/c.eml", deadline),
	}

	d := New()
	got := d.Filter(records)

	if len(got) != 3 {
		t.Fatalf("Filter() returned %d records, want 3", len(got))
	}
	if got[0].FilePath != "old/a.eml" {
		t.Errorf("first occurrence should win, got %s", got[0].FilePath)
	}

	snap := d.Snapshot()
	if snap.Unique != 3 || snap.Duplicates != 1 {
		t.Errorf("Snapshot() = %+v, want {Unique:3 Duplicates:1}", snap)
	}

	path, ok := d.FirstPath(records[1].Key())
	if !ok || path != "old/a.eml" {
		t.Errorf("FirstPath() = %q, %v", path, ok)
	}
}

func TestMark(t *testing.T) {
	d := New()
	key := model.DedupKey{ApplicationNo: "1", Deadline: "2025-01-01"}

	if d.Seen(key) {
		t.Fatal("unexpected key before Mark")
	}
	if !d.Mark(key, "a") {
		t.Fatal("first Mark should report a new key")
	}
	if d.Mark(key, "b") {
		t.Fatal("second Mark should report a duplicate")
	}
	if !d.Seen(key) {
		t.Fatal("key should be seen after Mark")
	}
}

func BenchmarkDeduplicator_Mark(b *testing.B) {
	d := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Mark(model.DedupKey{ApplicationNo: fmt.Sprintf("app-%d", i%1000), Deadline: "2025-01-01"}, "p")
	}
}
