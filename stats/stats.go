package stats

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

type Stage string

const (
	StageSource  Stage = "source"
	StageDecode  Stage = "decode"
	StageFilter  Stage = "filter"
	StageExtract Stage = "extract"
)

type EventType string

const (
	EventTypeScanned         EventType = "scanned"
	EventTypeDecodeError     EventType = "decode_error"
	EventTypeFiltered        EventType = "filtered"
	EventTypeReminder        EventType = "reminder"
	EventTypeCertificate     EventType = "certificate"
	EventTypeInvoice         EventType = "invoice"
	EventTypeNotice          EventType = "notice"
	EventTypeRejected        EventType = "rejected"
	EventTypeDuplicate       EventType = "duplicate"
	EventTypeAttachmentError EventType = "attachment_error"
	EventTypeError           EventType = "error"
)

type Event struct {
	Stage  Stage
	Type   EventType
	Path   string
	Err    error
	Detail string
}

// Observer receives scan events synchronously.
type Observer interface {
	Observe(Event)
}

// Observers fans an event out to several observers.
type Observers []Observer

func (o Observers) Observe(evt Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(evt)
		}
	}
}

type Summary struct {
	Scanned          int
	DecodeErrors     int
	Filtered         int
	Reminders        int
	Certificates     int
	Invoices         int
	Notices          int
	Rejected         int
	Duplicates       int
	AttachmentErrors int
	Errors           int
	LastError        error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"scanned", s.Scanned,
		"decodeErrors", s.DecodeErrors,
		"filtered", s.Filtered,
		"reminders", s.Reminders,
		"certificates", s.Certificates,
		"invoices", s.Invoices,
		"notices", s.Notices,
		"rejected", s.Rejected,
		"duplicates", s.Duplicates,
		"attachmentErrors", s.AttachmentErrors,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Observe(evt Event) {
	c.apply(evt)
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeDecodeError:
		c.summary.DecodeErrors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	case EventTypeFiltered:
		c.summary.Filtered++
	case EventTypeReminder:
		c.summary.Reminders++
	case EventTypeCertificate:
		c.summary.Certificates++
	case EventTypeInvoice:
		c.summary.Invoices++
	case EventTypeNotice:
		c.summary.Notices++
	case EventTypeRejected:
		c.summary.Rejected++
	case EventTypeDuplicate:
		c.summary.Duplicates++
	case EventTypeAttachmentError:
		c.summary.AttachmentErrors++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

// Pair is one entry of a frequency table.
type Pair struct {
	Key   string
	Value int
}

// Top returns the limit most frequent items of m. Ties are ordered by key.
func Top(m map[string]int, limit int) []Pair {
	pairs := make([]Pair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, Pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})

	if limit >= 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(w io.Writer, m map[string]int, limit int) {
	for i, p := range Top(m, limit) {
		fmt.Fprintf(w, "%d. %s (%d)\n", i+1, p.Key, p.Value)
	}
}
