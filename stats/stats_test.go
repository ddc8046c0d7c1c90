package stats

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	c := NewCollector()
	boom := errors.New("boom")

	Observers{c, nil}.Observe(Event{Type: EventTypeScanned})
	c.Observe(Event{Type: EventTypeScanned})
	c.Observe(Event{Type: EventTypeReminder})
	c.Observe(Event{Type: EventTypeDuplicate})
	c.Observe(Event{Type: EventTypeDecodeError, Err: boom})

	s := c.Snapshot()
	assert.Equal(t, 2, s.Scanned)
	assert.Equal(t, 1, s.Reminders)
	assert.Equal(t, 1, s.Duplicates)
	assert.Equal(t, 1, s.DecodeErrors)
	assert.Equal(t, boom, s.LastError)
	assert.Contains(t, s.LogAttrs(), "lastError")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Observe(Event{Type: EventTypeScanned})
	m.Observe(Event{Type: EventTypeScanned})
	m.ObserveScan(Summary{Reminders: 3}, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("scanned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LastRecords.WithLabelValues("reminders")))
}

func TestTop(t *testing.T) {
	m := map[string]int{"a": 1, "b": 3, "c": 3, "d": 2}

	top := Top(m, 3)
	assert.Equal(t, []Pair{{"b", 3}, {"c", 3}, {"d", 2}}, top)

	var buf bytes.Buffer
	PrettyPrintTop(&buf, m, 2)
	assert.Equal(t, "1. b (3)\n2. c (3)\n", buf.String())
}
