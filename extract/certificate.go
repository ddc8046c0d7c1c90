package extract

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/dhcgn/patent-reminders/model"
)

// Keyword conjunctions; a message qualifies when every word of one set
// appears in its body.
var certificateKeywordSets = [][]string{
	{"专利证书"},
	{"证书", "授权"},
	{"授予专利权", "通知书"},
	{"证书", "领取"},
}

var certificateNameMarkers = []string{"证书", "certificate"}

var patentNoRules = []FieldRule{
	fieldRule("zl-labelled", `专利号[：:]?\s*(ZL\s?\d{8,13}\.?[\dXx])`, FieldApplicationNo),
	fieldRule("zl", `(ZL\d{12}\.[\dXx])`, FieldApplicationNo),
	fieldRule("application", `申请号[：:]?\s*(\d{8,13}\.?[\dXx])`, FieldApplicationNo),
}

var (
	patentNameLine    = regexp.MustCompile(`(?:发明名称|专利名称|实用新型名称|外观设计名称)[：:]\s*([^\n]+)`)
	patentNameQuoted  = regexp.MustCompile(`《([^》]+)》`)
	certificateSuffix = regexp.MustCompile(`(?i)(?:电子)?专利证书.*$`)
)

// CertificateExtractor recognizes patent certificate messages and saves
// their certificate PDFs.
type CertificateExtractor struct {
	saver  Saver
	logger *slog.Logger
}

func NewCertificateExtractor(saver Saver, logger *slog.Logger) *CertificateExtractor {
	return &CertificateExtractor{saver: saver, logger: logger}
}

// Extract returns the certificate record for msg. Attachments that fail to
// persist are logged and left out.
func (e *CertificateExtractor) Extract(msg model.NormalizedMessage) (model.CertificateRecord, error) {
	if !certificateRelevant(msg.Content) {
		return model.CertificateRecord{}, ErrNotRelevant
	}

	var selected []model.AttachmentRef
	for _, a := range msg.Attachments {
		if isPDF(a) && containsAny(strings.ToLower(a.Filename), certificateNameMarkers) {
			selected = append(selected, a)
		}
	}
	if len(selected) == 0 {
		return model.CertificateRecord{}, ErrNoAttachment
	}

	rec := model.CertificateRecord{
		Subject:  msg.Subject,
		Sender:   msg.Sender,
		Date:     msg.Date,
		SentAt:   msg.SentAt,
		FilePath: msg.Path,
	}
	for _, a := range selected {
		saved, err := e.saver.Save(a.Filename, a.Open())
		if err != nil {
			e.warn("saving certificate attachment failed", "path", msg.Path, "attachment", a.Filename, "err", err)
			continue
		}
		rec.Attachments = append(rec.Attachments, saved)
		rec.DownloadRefs = append(rec.DownloadRefs, "/download/"+saved.Ref)
	}
	if len(rec.Attachments) == 0 {
		return model.CertificateRecord{}, fmt.Errorf("%s: all saves failed: %w", msg.Path, ErrNoAttachment)
	}
	rec.DisplayFilename = rec.Attachments[0].OriginalName

	if v, _, ok := FirstField(patentNoRules, msg.Content); ok {
		rec.PatentNo = v[FieldApplicationNo]
	} else if v, _, ok := FirstField(patentNoRules, msg.Subject); ok {
		rec.PatentNo = v[FieldApplicationNo]
	}
	rec.PatentNo = strings.ReplaceAll(rec.PatentNo, " ", "")
	rec.PatentName = patentName(msg.Content, msg.Subject)
	return rec, nil
}

func certificateRelevant(content string) bool {
	for _, set := range certificateKeywordSets {
		if containsAll(content, set) {
			return true
		}
	}
	return false
}

func isPDF(a model.AttachmentRef) bool {
	if strings.EqualFold(a.ContentType, "application/pdf") {
		return true
	}
	return strings.EqualFold(path.Ext(a.Filename), ".pdf")
}

// patentName tries a labelled body line, then a 《quoted》 name in the body
// or subject, then the subject text before a certificate marker.
func patentName(content, subject string) string {
	if m := patentNameLine.FindStringSubmatch(content); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}
	for _, text := range []string{content, subject} {
		if m := patentNameQuoted.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	name := strings.Trim(certificateSuffix.ReplaceAllString(subject, ""), titleTrim)
	if _, ok := plausibleTitle(name); ok {
		return name
	}
	return ""
}

func (e *CertificateExtractor) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
