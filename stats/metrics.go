package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports scan events as Prometheus series.
//
// Metrics:
//   - patent_reminders_scan_events_total{type} - scan events by type
//   - patent_reminders_scans_total - completed scans
//   - patent_reminders_scan_duration_seconds - scan duration
//   - patent_reminders_last_scan_records{kind} - records produced by the last scan
type Metrics struct {
	EventsTotal  *prometheus.CounterVec
	ScansTotal   prometheus.Counter
	ScanDuration prometheus.Histogram
	LastRecords  *prometheus.GaugeVec
}

// NewMetrics registers the scan metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patent_reminders_scan_events_total",
				Help: "Total number of scan events by type",
			},
			[]string{"type"},
		),
		ScansTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "patent_reminders_scans_total",
			Help: "Total number of completed scans",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "patent_reminders_scan_duration_seconds",
			Help:    "Duration of a full scan in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastRecords: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "patent_reminders_last_scan_records",
				Help: "Records produced by the most recent scan",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) Observe(evt Event) {
	m.EventsTotal.WithLabelValues(string(evt.Type)).Inc()
}

// ObserveScan records a finished scan.
func (m *Metrics) ObserveScan(s Summary, d time.Duration) {
	m.ScansTotal.Inc()
	m.ScanDuration.Observe(d.Seconds())
	m.LastRecords.WithLabelValues("reminders").Set(float64(s.Reminders))
	m.LastRecords.WithLabelValues("certificates").Set(float64(s.Certificates))
	m.LastRecords.WithLabelValues("invoices").Set(float64(s.Invoices))
	m.LastRecords.WithLabelValues("notices").Set(float64(s.Notices))
}
