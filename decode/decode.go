// Package decode parses raw RFC 822 messages into model.DecodedMessage values.
package decode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/dhcgn/patent-reminders/charset"
	"github.com/dhcgn/patent-reminders/model"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrMalformed    = errors.New("message cannot be parsed")
)

// maxDepth bounds nested multipart recursion.
const maxDepth = 16

// Decoder turns raw message bytes into a DecodedMessage.
type Decoder struct {
	resolver *charset.Resolver
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Decoder {
	return &Decoder{resolver: charset.Default, logger: logger}
}

// Decode parses raw. Errors wrap ErrEmptyMessage or ErrMalformed; anything
// that can be salvaged from a partially broken message is kept.
func (d *Decoder) Decode(raw model.RawMessage) (model.DecodedMessage, error) {
	if len(bytes.TrimSpace(raw.Data)) == 0 {
		return model.DecodedMessage{}, fmt.Errorf("%s: %w", raw.Path, ErrEmptyMessage)
	}

	br := bufio.NewReader(bytes.NewReader(raw.Data))
	fields, err := textproto.ReadHeader(br)
	if err != nil {
		return model.DecodedMessage{}, fmt.Errorf("%s: %w: %v", raw.Path, ErrMalformed, err)
	}
	if fields.Len() == 0 {
		return model.DecodedMessage{}, fmt.Errorf("%s: %w: no header fields", raw.Path, ErrMalformed)
	}

	header := mail.Header{Header: message.Header{Header: fields}}
	msg := model.DecodedMessage{
		Path:    raw.Path,
		ModTime: raw.ModTime,
		Subject: d.resolver.DecodeHeader(header.Get("Subject")),
		Sender:  d.resolver.DecodeHeader(header.Get("From")),
		Date:    strings.TrimSpace(header.Get("Date")),
	}
	if sentAt, err := header.Date(); err == nil {
		msg.SentAt = sentAt
	}

	var plain, html strings.Builder
	if err := d.walk(header.Header, br, &msg, &plain, &html, 0); err != nil {
		d.log("message partially decoded", "path", raw.Path, "err", err)
	}
	msg.PlainBody = plain.String()
	msg.HTMLBody = html.String()
	return msg, nil
}

// walk splits multipart bodies itself so that every leaf passes through
// message.New with only its transfer encoding undone. Attachments keep their
// bytes; body text is resolved against the declared charset here.
func (d *Decoder) walk(h message.Header, body io.Reader, msg *model.DecodedMessage, plain, html *strings.Builder, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("multipart nesting deeper than %d", maxDepth)
	}

	mediaType, params, _ := h.ContentType()
	mediaType = strings.ToLower(mediaType)
	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("%s without boundary", mediaType)
		}
		mr := textproto.NewMultipartReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("next part: %w", err)
			}
			if err := d.walk(message.Header{Header: part.Header}, part, msg, plain, html, depth+1); err != nil {
				return err
			}
		}
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}
	declared := params["charset"]

	e, err := message.New(withoutCharset(h), body)
	if err != nil {
		d.log("part transfer encoding not decoded", "path", msg.Path, "type", mediaType, "err", err)
	}

	disposition, dispParams, _ := h.ContentDisposition()
	filename := dispParams["filename"]
	if filename == "" {
		filename = params["name"]
	}
	filename = d.resolver.DecodeHeader(filename)

	data, err := io.ReadAll(e.Body)
	if err != nil {
		d.log("part body truncated", "path", msg.Path, "type", mediaType, "err", err)
	}

	if isAttachment(disposition, mediaType, filename) {
		msg.Attachments = append(msg.Attachments, model.NewAttachmentRef(filename, mediaType, data))
		return nil
	}

	switch mediaType {
	case "text/plain":
		plain.WriteString(d.resolver.Resolve(data, declared).Text)
	case "text/html":
		html.WriteString(d.resolver.Resolve(data, declared).Text)
	}
	return nil
}

// withoutCharset returns a copy of h whose Content-Type carries no charset
// parameter, which keeps message.New from converting the body.
func withoutCharset(h message.Header) message.Header {
	mediaType, params, err := h.ContentType()
	if err != nil || params["charset"] == "" {
		return h
	}
	h = h.Copy()
	delete(params, "charset")
	h.SetContentType(mediaType, params)
	return h
}

// isAttachment treats explicit attachment dispositions as attachments, and
// also named non-text parts that carry no disposition at all.
func isAttachment(disposition, mediaType, filename string) bool {
	switch strings.ToLower(disposition) {
	case "attachment":
		return true
	case "inline":
		return false
	}
	return filename != "" && !strings.HasPrefix(mediaType, "text/")
}

func (d *Decoder) log(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
