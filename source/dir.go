package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/patent-reminders/model"
)

// Dir walks a directory tree. Unreadable files are logged and skipped.
type Dir struct {
	root   string
	logger *slog.Logger
}

func NewDir(root string, logger *slog.Logger) (*Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("mail directory is empty")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open mail directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mail directory %s is not a directory", root)
	}
	return &Dir{root: root, logger: logger}, nil
}

func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) Walk(ctx context.Context, fn func(model.RawMessage) error) error {
	return d.visit(ctx, func(path string, info fs.FileInfo) error {
		if isMbox(path) {
			return d.walkMbox(ctx, path, info.ModTime(), fn)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			d.warn("cannot read message file", "path", path, "err", err)
			return nil
		}
		return fn(model.RawMessage{Path: path, Data: data, ModTime: info.ModTime()})
	})
}

// visit calls fn for every recognized file under the root.
func (d *Dir) visit(ctx context.Context, fn func(path string, info fs.FileInfo) error) error {
	return filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.warn("cannot read path", "path", path, "err", err)
			if entry != nil && entry.IsDir() && path != d.root {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !recognized(entry.Name()) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			d.warn("cannot stat file", "path", path, "err", err)
			return nil
		}
		return fn(path, info)
	})
}

func (d *Dir) walkMbox(ctx context.Context, path string, modTime time.Time, fn func(model.RawMessage) error) error {
	file, err := os.Open(path)
	if err != nil {
		d.warn("cannot open mailbox", "path", path, "err", err)
		return nil
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgReader, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			d.warn("mailbox stream error", "path", path, "index", idx, "err", err)
			return nil
		}

		data, err := io.ReadAll(msgReader)
		if err != nil {
			d.warn("mailbox message truncated", "path", path, "index", idx, "err", err)
			continue
		}
		if err := fn(model.RawMessage{Path: MemberPath(path, idx), Data: data, ModTime: modTime}); err != nil {
			return err
		}
	}
}

// Stat maps mailbox members to their file.
func (d *Dir) Stat(path string) (time.Time, error) {
	info, err := os.Stat(FilePath(path))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Count sizes a walk. Message files are counted by name and mailboxes are
// streamed for message boundaries; no message is kept in memory.
func (d *Dir) Count(ctx context.Context) (int, error) {
	count := 0
	err := d.visit(ctx, func(path string, _ fs.FileInfo) error {
		if !isMbox(path) {
			count++
			return nil
		}
		n, err := d.countMbox(ctx, path)
		count += n
		return err
	})
	return count, err
}

func (d *Dir) countMbox(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, nil
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		msgReader, err := reader.NextMessage()
		if err != nil {
			return n, nil
		}
		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			continue
		}
		n++
	}
}

func isMbox(path string) bool {
	return strings.EqualFold(filepath.Ext(path), mboxExt)
}

func (d *Dir) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
