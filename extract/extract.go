// Package extract turns normalized messages into reminder, certificate and
// invoice records using ordered rule cascades.
package extract

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dhcgn/patent-reminders/model"
)

// Classification outcomes. None of them is a failure of the scan; they only
// explain why a message produced no record.
var (
	ErrSenderRejected      = errors.New("sender outside the agency domain")
	ErrNotRelevant         = errors.New("message does not match any gate")
	ErrNoApplicationNumber = errors.New("no application number found")
	ErrNoDeadline          = errors.New("no valid deadline found")
	ErrNoAttachment        = errors.New("no qualifying attachment")
)

// Saver persists an attachment payload and describes where it went.
type Saver interface {
	Save(name string, r io.Reader) (model.SavedAttachment, error)
}

const (
	excerptLimit  = 500
	excerptMarker = "..."
)

// Excerpt cuts text to at most excerptLimit characters and marks the cut.
func Excerpt(text string) string {
	if utf8.RuneCountInString(text) <= excerptLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:excerptLimit]) + excerptMarker
}

func containsAll(text string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(text, n) {
			return false
		}
	}
	return true
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
