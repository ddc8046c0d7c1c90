package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dhcgn/patent-reminders/model"
)

// Fixtures serves a fixed list of messages from memory.
type Fixtures struct {
	messages []model.RawMessage
}

func NewFixtures(messages ...model.RawMessage) *Fixtures {
	return &Fixtures{messages: messages}
}

// Add appends a message.
func (f *Fixtures) Add(msg model.RawMessage) {
	f.messages = append(f.messages, msg)
}

// Remove drops every message with the given path.
func (f *Fixtures) Remove(path string) {
	kept := f.messages[:0]
	for _, m := range f.messages {
		if m.Path != path {
			kept = append(kept, m)
		}
	}
	f.messages = kept
}

func (f *Fixtures) Walk(ctx context.Context, fn func(model.RawMessage) error) error {
	for _, m := range f.messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fixtures) Stat(path string) (time.Time, error) {
	for _, m := range f.messages {
		if m.Path == path {
			return m.ModTime, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: %w", path, os.ErrNotExist)
}

func (f *Fixtures) Count(context.Context) (int, error) {
	return len(f.messages), nil
}
