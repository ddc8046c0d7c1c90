// Package scan runs the extraction pipeline over a message source.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dhcgn/patent-reminders/classify"
	"github.com/dhcgn/patent-reminders/decode"
	"github.com/dhcgn/patent-reminders/dedup"
	"github.com/dhcgn/patent-reminders/extract"
	"github.com/dhcgn/patent-reminders/filter"
	"github.com/dhcgn/patent-reminders/model"
	"github.com/dhcgn/patent-reminders/normalize"
	"github.com/dhcgn/patent-reminders/source"
	"github.com/dhcgn/patent-reminders/stats"
)

// StatusReader answers whether a reminder was marked completed.
type StatusReader interface {
	IsCompleted(ctx context.Context, applicationNo, filePath string) (bool, error)
}

// Config wires a Pipeline. Saver, Classifier and Status are optional:
// without a Saver no certificates or invoices are produced, without a
// Classifier no notices, and without Status nothing counts as completed.
type Config struct {
	Source        source.Source
	Saver         extract.Saver
	Reminder      extract.ReminderOptions
	InvoiceMarker string
	Filter        *filter.Filter
	Classifier    *classify.Classifier
	Status        StatusReader
	Metrics       *stats.Metrics
	Logger        *slog.Logger
	Now           func() time.Time
}

// Options are per scan.
type Options struct {
	IncludeCompleted bool
	// Observer additionally receives every event of this scan.
	Observer stats.Observer
}

// Result holds the sorted records of one scan.
type Result struct {
	Reminders    []model.ReminderRecord
	Certificates []model.CertificateRecord
	Invoices     []model.InvoiceRecord
	Notices      []model.NoticeRecord
	Summary      stats.Summary
	Duration     time.Duration
}

// Pipeline is safe to share between scans; every Scan owns its dedup set.
type Pipeline struct {
	cfg        Config
	decoder    *decode.Decoder
	normalizer *normalize.Normalizer
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("message source is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Reminder.Now == nil {
		cfg.Reminder.Now = cfg.Now
	}
	return &Pipeline{
		cfg:        cfg,
		decoder:    decode.New(cfg.Logger),
		normalizer: normalize.New(),
	}, nil
}

func (p *Pipeline) Source() source.Source {
	return p.cfg.Source
}

// run is the state of a single scan.
type run struct {
	p            *Pipeline
	obs          stats.Observer
	tracker      dedup.Tracker
	reminders    *extract.ReminderExtractor
	certificates *extract.CertificateExtractor
	invoices     *extract.InvoiceExtractor
	res          Result
}

// Scan walks the source once. Failures are logged and counted, and a source
// that breaks mid-walk yields the records read so far; only context
// cancellation is returned as an error.
func (p *Pipeline) Scan(ctx context.Context, opts Options) (Result, error) {
	started := time.Now()
	collector := stats.NewCollector()
	obs := stats.Observers{collector, opts.Observer}
	if p.cfg.Metrics != nil {
		obs = append(obs, p.cfg.Metrics)
	}

	r := &run{
		p:         p,
		obs:       obs,
		tracker:   dedup.New(),
		reminders: extract.NewReminderExtractor(p.cfg.Reminder, p.cfg.Logger),
	}
	if p.cfg.Saver != nil {
		saver := &observedSaver{inner: p.cfg.Saver, obs: obs}
		r.certificates = extract.NewCertificateExtractor(saver, p.cfg.Logger)
		r.invoices = extract.NewInvoiceExtractor(p.cfg.InvoiceMarker, saver, p.cfg.Logger)
	}

	if err := p.cfg.Source.Walk(ctx, func(raw model.RawMessage) error {
		r.message(ctx, raw)
		return nil
	}); err != nil {
		if ctx.Err() != nil {
			p.log(slog.LevelWarn, "scan cancelled", "err", err)
			return Result{}, fmt.Errorf("walk source: %w", err)
		}
		p.log(slog.LevelError, "source walk failed, returning partial results", "err", err)
		obs.Observe(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeError, Err: err})
	}

	r.annotate(ctx, opts.IncludeCompleted)
	r.sort()

	if p.cfg.Classifier != nil {
		if n := p.cfg.Classifier.Sweep(p.cfg.Source.Stat); n > 0 {
			p.log(slog.LevelDebug, "classification cache swept", "removed", n)
		}
	}

	r.res.Summary = collector.Snapshot()
	r.res.Duration = time.Since(started)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ObserveScan(r.res.Summary, r.res.Duration)
	}
	p.log(slog.LevelInfo, "scan completed", append(r.res.Summary.LogAttrs(), "duration", r.res.Duration)...)
	return r.res, nil
}

func (r *run) message(ctx context.Context, raw model.RawMessage) {
	r.obs.Observe(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeScanned, Path: raw.Path})

	decoded, err := r.p.decoder.Decode(raw)
	if err != nil {
		r.p.log(slog.LevelWarn, "decode failed, skipping message", "path", raw.Path, "err", err)
		r.obs.Observe(stats.Event{Stage: stats.StageDecode, Type: stats.EventTypeDecodeError, Path: raw.Path, Err: err})
		return
	}

	msg := r.p.normalizer.Message(decoded)
	if f := r.p.cfg.Filter; f != nil && !f.Allows(msg) {
		r.obs.Observe(stats.Event{Stage: stats.StageFilter, Type: stats.EventTypeFiltered, Path: raw.Path})
		return
	}

	matched := false

	rec, err := r.reminders.Extract(msg)
	switch {
	case err == nil:
		matched = true
		if r.tracker.Mark(rec.Key(), rec.FilePath) {
			r.res.Reminders = append(r.res.Reminders, rec)
			r.obs.Observe(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeReminder, Path: raw.Path})
		} else {
			r.obs.Observe(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeDuplicate, Path: raw.Path, Detail: rec.ApplicationNo})
		}
	default:
		r.p.log(slog.LevelDebug, "not a reminder", "path", raw.Path, "reason", err)
	}

	if r.certificates != nil {
		cert, err := r.certificates.Extract(msg)
		if err == nil {
			matched = true
			r.res.Certificates = append(r.res.Certificates, cert)
			r.obs.Observe(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeCertificate, Path: raw.Path})
		} else if !isGateRejection(err) {
			r.p.log(slog.LevelWarn, "certificate extraction failed", "path", raw.Path, "err", err)
		}
	}

	if r.invoices != nil {
		inv, err := r.invoices.Extract(msg)
		if err == nil {
			matched = true
			r.res.Invoices = append(r.res.Invoices, inv)
			r.obs.Observe(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeInvoice, Path: raw.Path})
		} else if !isGateRejection(err) {
			r.p.log(slog.LevelWarn, "invoice extraction failed", "path", raw.Path, "err", err)
		}
	}

	if !matched && r.p.cfg.Classifier != nil {
		if n, ok := r.p.cfg.Classifier.Notice(ctx, msg); ok {
			matched = true
			r.res.Notices = append(r.res.Notices, n)
			r.obs.Observe(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeNotice, Path: raw.Path, Detail: n.Category})
		}
	}

	if !matched {
		r.obs.Observe(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeRejected, Path: raw.Path})
	}
}

// annotate sets completion flags and recomputes urgency at the scan clock.
func (r *run) annotate(ctx context.Context, includeCompleted bool) {
	now := r.p.cfg.Now()
	kept := r.res.Reminders[:0]
	for _, rec := range r.res.Reminders {
		if r.p.cfg.Status != nil {
			done, err := r.p.cfg.Status.IsCompleted(ctx, rec.ApplicationNo, rec.FilePath)
			if err != nil {
				r.p.log(slog.LevelWarn, "completion lookup failed", "application_no", rec.ApplicationNo, "path", rec.FilePath, "err", err)
			}
			rec.Completed = done
		}
		if rec.Completed && !includeCompleted {
			continue
		}
		rec.Evaluate(now)
		kept = append(kept, rec)
	}
	r.res.Reminders = kept
}

func (r *run) sort() {
	sort.SliceStable(r.res.Reminders, func(i, j int) bool {
		return r.res.Reminders[i].Deadline.Before(r.res.Reminders[j].Deadline)
	})
	sort.SliceStable(r.res.Certificates, func(i, j int) bool {
		return r.res.Certificates[i].SentAt.After(r.res.Certificates[j].SentAt)
	})
	sort.SliceStable(r.res.Invoices, func(i, j int) bool {
		return r.res.Invoices[i].SentAt.After(r.res.Invoices[j].SentAt)
	})
	sort.SliceStable(r.res.Notices, func(i, j int) bool {
		return r.res.Notices[i].SentAt.After(r.res.Notices[j].SentAt)
	})
}

func isGateRejection(err error) bool {
	return errors.Is(err, extract.ErrNotRelevant) || errors.Is(err, extract.ErrNoAttachment)
}

func (p *Pipeline) log(level slog.Level, msg string, args ...any) {
	if p.cfg.Logger != nil {
		p.cfg.Logger.Log(context.Background(), level, msg, args...)
	}
}

// observedSaver reports persistence failures as scan events.
type observedSaver struct {
	inner extract.Saver
	obs   stats.Observer
}

func (s *observedSaver) Save(name string, r io.Reader) (model.SavedAttachment, error) {
	saved, err := s.inner.Save(name, r)
	if err != nil {
		s.obs.Observe(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeAttachmentError, Detail: name, Err: err})
	}
	return saved, err
}
