package model

import "time"

// Urgency classifies how close a reminder deadline is.
type Urgency string

const (
	UrgencyOverdue Urgency = "overdue"
	UrgencyUrgent  Urgency = "urgent"
	UrgencyNormal  Urgency = "normal"
)

// UrgentWindowDays is the inclusive number of days before a deadline that
// still counts as urgent.
const UrgentWindowDays = 7

const deadlineTextLayout = "2006年01月02日"

// DaysUntil returns the number of whole calendar days from now to deadline.
// Both values are reduced to their calendar date first.
func DaysUntil(deadline, now time.Time) int {
	d := time.Date(deadline.Year(), deadline.Month(), deadline.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(today).Hours() / 24)
}

// UrgencyFor derives the urgency level for the given number of days left.
func UrgencyFor(daysLeft int) Urgency {
	switch {
	case daysLeft < 0:
		return UrgencyOverdue
	case daysLeft <= UrgentWindowDays:
		return UrgencyUrgent
	default:
		return UrgencyNormal
	}
}

// DedupKey identifies a unique reminder event.
type DedupKey struct {
	ApplicationNo string
	Deadline      string
}

// ReminderRecord is a prosecution deadline extracted from a reminder message.
type ReminderRecord struct {
	ApplicationNo   string    `json:"application_no"`
	ClientRef       string    `json:"client_no"`
	InternalRef     string    `json:"our_no"`
	Deadline        time.Time `json:"-"`
	DeadlineText    string    `json:"deadline_str"`
	DeadlineISO     string    `json:"deadline_iso"`
	DaysLeft        int       `json:"days_left"`
	Urgency         Urgency   `json:"urgency_level"`
	Subject         string    `json:"subject"`
	OriginalSubject string    `json:"original_subject"`
	Content         string    `json:"content"`
	FilePath        string    `json:"file_path"`
	Sender          string    `json:"from"`
	Date            string    `json:"date"`
	Completed       bool      `json:"completed"`
}

// Key returns the dedup key of the record.
func (r ReminderRecord) Key() DedupKey {
	return DedupKey{ApplicationNo: r.ApplicationNo, Deadline: r.Deadline.Format(time.DateOnly)}
}

// Evaluate recomputes the time dependent fields relative to now.
func (r *ReminderRecord) Evaluate(now time.Time) {
	r.DaysLeft = DaysUntil(r.Deadline, now)
	r.Urgency = UrgencyFor(r.DaysLeft)
	r.DeadlineText = r.Deadline.Format(deadlineTextLayout)
	r.DeadlineISO = r.Deadline.Format("2006-01-02T15:04:05")
}

// SavedAttachment is an attachment persisted to the storage area.
type SavedAttachment struct {
	OriginalName string `json:"original_name"`
	StoredPath   string `json:"stored_path"`
	Ref          string `json:"download_ref"`
}

// CertificateRecord describes a patent certificate message and its saved PDFs.
type CertificateRecord struct {
	PatentNo        string            `json:"patent_no"`
	PatentName      string            `json:"patent_name"`
	Subject         string            `json:"subject"`
	Sender          string            `json:"from"`
	Date            string            `json:"date"`
	SentAt          time.Time         `json:"-"`
	FilePath        string            `json:"file_path"`
	Attachments     []SavedAttachment `json:"attachments"`
	DownloadRefs    []string          `json:"download_urls"`
	DisplayFilename string            `json:"filename"`
}

// InvoiceSlot names one of the four invoice attachment buckets.
type InvoiceSlot string

const (
	SlotOfficialReceipt InvoiceSlot = "official_receipt"
	SlotNotice          InvoiceSlot = "notice"
	SlotAgentReceipt    InvoiceSlot = "agent_receipt"
	SlotAgentXML        InvoiceSlot = "agent_xml"
)

// InvoiceRecord describes a fee invoice message.
type InvoiceRecord struct {
	InvoiceNo       string           `json:"invoice_no"`
	OfficialReceipt *SavedAttachment `json:"official_receipt,omitempty"`
	Notice          *SavedAttachment `json:"notice,omitempty"`
	AgentReceipt    *SavedAttachment `json:"agent_receipt,omitempty"`
	AgentXML        *SavedAttachment `json:"agent_xml,omitempty"`
	Subject         string           `json:"subject"`
	Sender          string           `json:"from"`
	Date            string           `json:"date"`
	SentAt          time.Time        `json:"-"`
	FilePath        string           `json:"file_path"`
	DisplayFilename string           `json:"filename"`
}

// Slot returns a pointer to the field holding the given bucket.
func (r *InvoiceRecord) Slot(slot InvoiceSlot) **SavedAttachment {
	switch slot {
	case SlotOfficialReceipt:
		return &r.OfficialReceipt
	case SlotNotice:
		return &r.Notice
	case SlotAgentReceipt:
		return &r.AgentReceipt
	case SlotAgentXML:
		return &r.AgentXML
	}
	return nil
}

// NoticeRecord is a categorized notice message.
type NoticeRecord struct {
	Category string    `json:"category"`
	Subject  string    `json:"subject"`
	Sender   string    `json:"from"`
	Date     string    `json:"date"`
	SentAt   time.Time `json:"-"`
	FilePath string    `json:"file_path"`
	Excerpt  string    `json:"content"`
}
