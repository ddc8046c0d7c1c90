// Package source enumerates raw messages for a scan.
package source

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dhcgn/patent-reminders/model"
)

// Source yields raw messages one at a time. Returning an error from fn stops
// the walk with that error.
type Source interface {
	Walk(ctx context.Context, fn func(model.RawMessage) error) error
	// Stat reports the current modification time of a path produced by Walk.
	Stat(path string) (time.Time, error)
	Count(ctx context.Context) (int, error)
}

// Extensions lists the recognized message file extensions.
var Extensions = []string{".eml", ".msg", ".mbox"}

const mboxExt = ".mbox"

// memberSep separates a mailbox file path from the message index.
const memberSep = "#"

func recognized(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// MemberPath names message idx of a mailbox file.
func MemberPath(file string, idx int) string {
	return file + memberSep + strconv.Itoa(idx)
}

// FilePath strips a mailbox member suffix from path.
func FilePath(path string) string {
	i := strings.LastIndex(path, memberSep)
	if i < 0 || !strings.EqualFold(filepath.Ext(path[:i]), mboxExt) {
		return path
	}
	if _, err := strconv.Atoi(path[i+1:]); err != nil {
		return path
	}
	return path[:i]
}
