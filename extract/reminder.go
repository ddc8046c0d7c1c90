package extract

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dhcgn/patent-reminders/model"
)

// DefaultSenderDomain is the agency domain reminders are accepted from.
const DefaultSenderDomain = "sptl.com.cn"

// ReminderOptions configures a ReminderExtractor.
type ReminderOptions struct {
	// SenderDomain must appear in the sender address. Empty disables the gate.
	SenderDomain string
	// RefineTitle promotes a patent title found in the body to the subject.
	RefineTitle bool
	// Now is the evaluation clock; time.Now when nil.
	Now func() time.Time
}

// DefaultReminderOptions returns the options used by the CLI defaults.
func DefaultReminderOptions() ReminderOptions {
	return ReminderOptions{SenderDomain: DefaultSenderDomain, RefineTitle: true}
}

// ReminderExtractor decides whether a message is a prosecution deadline
// reminder and builds its record.
type ReminderExtractor struct {
	opts    ReminderOptions
	refiner TitleRefiner
	logger  *slog.Logger
}

func NewReminderExtractor(opts ReminderOptions, logger *slog.Logger) *ReminderExtractor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.SenderDomain = strings.ToLower(strings.TrimSpace(opts.SenderDomain))
	return &ReminderExtractor{opts: opts, logger: logger}
}

// Extract returns the reminder carried by msg. The error wraps one of
// ErrSenderRejected, ErrNotRelevant, ErrNoApplicationNumber or ErrNoDeadline
// when msg is not a usable reminder.
func (e *ReminderExtractor) Extract(msg model.NormalizedMessage) (model.ReminderRecord, error) {
	if !e.SenderAllowed(msg.Sender) {
		return model.ReminderRecord{}, fmt.Errorf("%s: %w", msg.Sender, ErrSenderRejected)
	}
	if !Relevant(msg.Content) {
		return model.ReminderRecord{}, ErrNotRelevant
	}

	rec := model.ReminderRecord{
		Subject:         msg.Subject,
		OriginalSubject: msg.Subject,
		FilePath:        msg.Path,
		Sender:          msg.Sender,
		Date:            msg.Date,
	}

	values, rule, ok := FirstField(subjectApplicationRules, msg.Subject)
	if !ok {
		values, rule, ok = FirstField(bodyApplicationRules, msg.Content)
	}
	if !ok || strings.Trim(values[FieldApplicationNo], ".") == "" {
		return model.ReminderRecord{}, ErrNoApplicationNumber
	}
	rec.ApplicationNo = strings.Trim(values[FieldApplicationNo], ".")
	rec.ClientRef = values[FieldClientRef]
	rec.InternalRef = values[FieldInternalRef]
	e.debug("application number matched", "path", msg.Path, "rule", rule, "application_no", rec.ApplicationNo)

	if rec.InternalRef == "" {
		if v, _, ok := FirstField(internalRefRules, msg.Content); ok {
			rec.InternalRef = v[FieldInternalRef]
		}
	}
	if rec.ClientRef == "" {
		if v, _, ok := FirstField(clientRefRules, msg.Content); ok {
			rec.ClientRef = v[FieldClientRef]
		}
	}

	deadline, rule, ok := FirstDate(deadlineRules, msg.Content)
	if !ok {
		return model.ReminderRecord{}, fmt.Errorf("%s: %w", rec.ApplicationNo, ErrNoDeadline)
	}
	rec.Deadline = deadline
	e.debug("deadline matched", "path", msg.Path, "rule", rule, "deadline", deadline.Format(time.DateOnly))

	content := msg.Content
	if e.opts.RefineTitle {
		rec.Subject, content = e.refiner.Apply(rec.Subject, content)
	}
	rec.Content = Excerpt(content)
	rec.Evaluate(e.opts.Now())
	return rec, nil
}

// SenderAllowed applies the agency domain gate.
func (e *ReminderExtractor) SenderAllowed(sender string) bool {
	if e.opts.SenderDomain == "" {
		return true
	}
	return strings.Contains(strings.ToLower(sender), e.opts.SenderDomain)
}

// Relevant reports whether content carries a deadline statement or, failing
// that, any of the reminder keywords.
func Relevant(content string) bool {
	for _, re := range reminderStatements {
		if re.MatchString(content) {
			return true
		}
	}
	return containsAny(content, reminderKeywords)
}

func (e *ReminderExtractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
