// Package dedup collapses reminder records that describe the same deadline.
package dedup

import "github.com/dhcgn/patent-reminders/model"

type Tracker interface {
	Seen(key model.DedupKey) bool
	Mark(key model.DedupKey, path string) bool
	Snapshot() Snapshot
}

type Snapshot struct {
	Unique     int
	Duplicates int
}

// Deduplicator remembers the first source path of every key. It is owned by
// a single scan and is not safe for concurrent use.
type Deduplicator struct {
	first      map[model.DedupKey]string
	duplicates int
}

func New() *Deduplicator {
	return &Deduplicator{first: make(map[model.DedupKey]string)}
}

func (d *Deduplicator) Seen(key model.DedupKey) bool {
	_, ok := d.first[key]
	return ok
}

// Mark records key and reports whether it was new. Repeated keys are counted
// as duplicates.
func (d *Deduplicator) Mark(key model.DedupKey, path string) bool {
	if _, ok := d.first[key]; ok {
		d.duplicates++
		return false
	}
	d.first[key] = path
	return true
}

// FirstPath returns the path that first reported key.
func (d *Deduplicator) FirstPath(key model.DedupKey) (string, bool) {
	p, ok := d.first[key]
	return p, ok
}

func (d *Deduplicator) Snapshot() Snapshot {
	return Snapshot{Unique: len(d.first), Duplicates: d.duplicates}
}

// Filter keeps the first record of every key, preserving input order.
func (d *Deduplicator) Filter(records []model.ReminderRecord) []model.ReminderRecord {
	out := make([]model.ReminderRecord, 0, len(records))
	for _, r := range records {
		if d.Mark(r.Key(), r.FilePath) {
			out = append(out, r)
		}
	}
	return out
}

var _ Tracker = (*Deduplicator)(nil)
