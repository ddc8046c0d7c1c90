// Package normalize converts decoded message bodies into plain display text
// suitable for pattern matching.
package normalize

import (
	"bytes"
	"io"
	"mime/quotedprintable"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/dhcgn/patent-reminders/charset"
	"github.com/dhcgn/patent-reminders/model"
)

var (
	qpEscape = regexp.MustCompile(`=[0-9A-Fa-f]{2}`)

	// Blocks removed together with their content, in this order.
	dropBlocks = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`),
		regexp.MustCompile(`(?is)<link\b[^>]*>`),
		regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`),
		regexp.MustCompile(`(?s)[.#][A-Za-z_][\w\-]*[^{}<>\n]*\{[^{}]*\}`),
		regexp.MustCompile(`(?s)<!--.*?-->`),
		regexp.MustCompile(`(?is)<head\b[^>]*>.*?</head\s*>`),
	}

	blockTag   = regexp.MustCompile(`(?i)</?(?:br|p|div|h[1-6]|li|tr|td|th)\b[^>]*>`)
	anyTag     = regexp.MustCompile(`<[^>]*>`)
	horizontal = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// Normalizer implements the HTML and quoted-printable clean-up steps.
type Normalizer struct {
	resolver *charset.Resolver
}

func New() *Normalizer {
	return &Normalizer{resolver: charset.Default}
}

// Message returns msg together with its normalized content. The plain body
// wins; the HTML body is only used when the plain body is blank.
func (n *Normalizer) Message(msg model.DecodedMessage) model.NormalizedMessage {
	content := n.Plain(msg.PlainBody)
	if content == "" {
		content = n.HTML(msg.HTMLBody)
	}
	return model.NormalizedMessage{DecodedMessage: msg, Content: content}
}

// Plain repairs quoted-printable leftovers in a plain body and tidies whitespace.
func (n *Normalizer) Plain(text string) string {
	return tidy(n.RepairQuotedPrintable(text))
}

// HTML converts an HTML body into display text.
func (n *Normalizer) HTML(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	text = n.RepairQuotedPrintable(text)
	for _, re := range dropBlocks {
		text = re.ReplaceAllString(text, "")
	}
	// One unescape pass, before tag removal: markup it yields is stripped and
	// a doubly escaped reference stays escaped text.
	text = html.UnescapeString(text)
	text = blockTag.ReplaceAllString(text, "\n")
	text = anyTag.ReplaceAllString(text, "")
	return tidy(text)
}

// RepairQuotedPrintable decodes text that still carries quoted-printable
// escapes. When decoding fails the input is returned unchanged.
func (n *Normalizer) RepairQuotedPrintable(text string) string {
	if !qpEscape.MatchString(text) {
		return text
	}
	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(text)))
	if err != nil || len(decoded) == 0 {
		return text
	}
	if bytes.Equal(decoded, []byte(text)) {
		return text
	}
	return n.resolver.Resolve(decoded, "").Text
}

func tidy(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontal.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
