package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/dhcgn/patent-reminders/model"
)

// DefaultInvoiceMarker is the subject marker of fee invoice messages.
const DefaultInvoiceMarker = "【发票】"

// BucketRule assigns an attachment to an invoice slot by filename.
type BucketRule struct {
	Slot     model.InvoiceSlot
	Prefixes []string
	Suffix   string
}

func (r BucketRule) matches(filename string) bool {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if r.Suffix != "" && strings.HasSuffix(strings.ToLower(base), r.Suffix) {
		return true
	}
	for _, p := range r.Prefixes {
		if strings.HasPrefix(base, p) {
			return true
		}
	}
	return false
}

// Bucket rules, first match wins.
var invoiceBuckets = []BucketRule{
	{Slot: model.SlotAgentXML, Suffix: ".xml"},
	{Slot: model.SlotAgentReceipt, Prefixes: []string{"代理"}},
	{Slot: model.SlotNotice, Prefixes: []string{"缴费通知", "通知"}},
	{Slot: model.SlotOfficialReceipt, Prefixes: []string{"收据", "电子票据"}},
}

var invoiceNumber = regexp.MustCompile(`发票号(?:码)?[：:]\s*([A-Za-z0-9\-]+)`)

// ClassifyAttachment returns the invoice slot for filename.
func ClassifyAttachment(filename string) (model.InvoiceSlot, bool) {
	for _, r := range invoiceBuckets {
		if r.matches(filename) {
			return r.Slot, true
		}
	}
	return "", false
}

// InvoiceExtractor recognizes fee invoice messages by their subject marker.
type InvoiceExtractor struct {
	marker string
	saver  Saver
	logger *slog.Logger
}

func NewInvoiceExtractor(marker string, saver Saver, logger *slog.Logger) *InvoiceExtractor {
	if marker == "" {
		marker = DefaultInvoiceMarker
	}
	return &InvoiceExtractor{marker: marker, saver: saver, logger: logger}
}

// Extract returns the invoice record for msg. Only the first attachment of
// each slot is kept.
func (e *InvoiceExtractor) Extract(msg model.NormalizedMessage) (model.InvoiceRecord, error) {
	if !strings.Contains(msg.Subject, e.marker) {
		return model.InvoiceRecord{}, ErrNotRelevant
	}

	rec := model.InvoiceRecord{
		Subject:  msg.Subject,
		Sender:   msg.Sender,
		Date:     msg.Date,
		SentAt:   msg.SentAt,
		FilePath: msg.Path,
	}

	bucketed := 0
	for _, a := range msg.Attachments {
		slot, ok := ClassifyAttachment(a.Filename)
		if !ok {
			continue
		}
		bucketed++
		field := rec.Slot(slot)
		if *field != nil {
			e.log(slog.LevelDebug, "invoice slot already filled", "path", msg.Path, "slot", slot, "attachment", a.Filename)
			continue
		}
		saved, err := e.saver.Save(a.Filename, a.Open())
		if err != nil {
			e.log(slog.LevelWarn, "saving invoice attachment failed", "path", msg.Path, "attachment", a.Filename, "err", err)
			continue
		}
		*field = &saved
		if rec.DisplayFilename == "" {
			rec.DisplayFilename = saved.OriginalName
		}
	}
	if bucketed == 0 {
		return model.InvoiceRecord{}, ErrNoAttachment
	}
	if rec.DisplayFilename == "" {
		return model.InvoiceRecord{}, fmt.Errorf("%s: all saves failed: %w", msg.Path, ErrNoAttachment)
	}

	if m := invoiceNumber.FindStringSubmatch(msg.Subject); m != nil {
		rec.InvoiceNo = m[1]
	}
	return rec, nil
}

func (e *InvoiceExtractor) log(level slog.Level, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Log(context.Background(), level, msg, args...)
	}
}
