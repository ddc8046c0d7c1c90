// Package classify sorts notice messages into categories by keyword, with
// an optional external classifier behind a modification-time keyed cache.
package classify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dhcgn/patent-reminders/extract"
	"github.com/dhcgn/patent-reminders/model"
)

// OtherCategory is returned when no keyword matches.
const OtherCategory = "其他通知"

// Category is a label and the keywords that select it.
type Category struct {
	Name     string
	Keywords []string
}

var DefaultCategories = []Category{
	{Name: "软件著作权登记", Keywords: []string{"软件著作权", "计算机软件", "软著"}},
	{Name: "费用通知", Keywords: []string{"缴费", "年费", "费用"}},
	{Name: "审查通知", Keywords: []string{"审查意见", "补正", "驳回"}},
	{Name: "授权通知", Keywords: []string{"授权", "登记手续"}},
}

// DefaultNoticeKeywords select which messages count as notices at all.
var DefaultNoticeKeywords = []string{"软件著作权", "计算机软件", "登记证书", "通知书"}

// Backend is an external classifier.
type Backend interface {
	Classify(ctx context.Context, subject, content string, labels []string) (string, error)
}

// Classifier categorizes notices. It owns its cache; a nil backend means
// keyword classification only.
type Classifier struct {
	categories []Category
	keywords   []string
	backend    Backend
	cache      *Cache
	logger     *slog.Logger
}

type Option func(*Classifier)

func WithCategories(categories []Category) Option {
	return func(c *Classifier) { c.categories = categories }
}

// WithNoticeKeywords replaces the notice gate keywords.
func WithNoticeKeywords(keywords []string) Option {
	return func(c *Classifier) {
		if len(keywords) > 0 {
			c.keywords = keywords
		}
	}
}

func WithBackend(b Backend) Option {
	return func(c *Classifier) { c.backend = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

func New(opts ...Option) *Classifier {
	c := &Classifier{
		categories: DefaultCategories,
		keywords:   DefaultNoticeKeywords,
		cache:      NewCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Classifier) Cache() *Cache {
	return c.cache
}

// IsNotice reports whether msg mentions any notice keyword in its subject or
// content.
func (c *Classifier) IsNotice(msg model.NormalizedMessage) bool {
	for _, k := range c.keywords {
		if strings.Contains(msg.Subject, k) || strings.Contains(msg.Content, k) {
			return true
		}
	}
	return false
}

// Keyword returns the first category with a keyword in text.
func (c *Classifier) Keyword(text string) string {
	for _, cat := range c.categories {
		for _, k := range cat.Keywords {
			if strings.Contains(text, k) {
				return cat.Name
			}
		}
	}
	return OtherCategory
}

// Classify returns the category of msg. Cached labels are reused while the
// source modification time is unchanged. Backend failures fall back to the
// keyword label, which is cached as well.
func (c *Classifier) Classify(ctx context.Context, msg model.NormalizedMessage) string {
	if label, ok := c.cache.Get(msg.Path, msg.ModTime); ok {
		return label
	}

	label := ""
	if c.backend != nil {
		got, err := c.backend.Classify(ctx, msg.Subject, msg.Content, c.labels())
		if err != nil {
			c.warn("external classifier failed, using keywords", "path", msg.Path, "err", err)
		} else {
			label = got
		}
	}
	if label == "" {
		label = c.Keyword(msg.Subject + "\n" + msg.Content)
	}

	c.cache.Put(msg.Path, msg.ModTime, label)
	return label
}

// Notice builds the notice record for msg, or reports false when msg is not
// a notice.
func (c *Classifier) Notice(ctx context.Context, msg model.NormalizedMessage) (model.NoticeRecord, bool) {
	if !c.IsNotice(msg) {
		return model.NoticeRecord{}, false
	}
	return model.NoticeRecord{
		Category: c.Classify(ctx, msg),
		Subject:  msg.Subject,
		Sender:   msg.Sender,
		Date:     msg.Date,
		SentAt:   msg.SentAt,
		FilePath: msg.Path,
		Excerpt:  extract.Excerpt(msg.Content),
	}, true
}

// Sweep invalidates cache entries for changed or removed sources.
func (c *Classifier) Sweep(stat StatFunc) int {
	return c.cache.Sweep(stat)
}

func (c *Classifier) labels() []string {
	labels := make([]string, 0, len(c.categories)+1)
	for _, cat := range c.categories {
		labels = append(labels, cat.Name)
	}
	return append(labels, OtherCategory)
}

func (c *Classifier) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
