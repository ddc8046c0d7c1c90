package source

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// Attachment is an attachment of a composed message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Draft describes a message to compose.
type Draft struct {
	From        string
	Subject     string
	Date        time.Time
	Text        string
	HTML        string
	Attachments []Attachment
}

// Compose renders d as RFC 822 bytes. A text-only draft becomes a single
// part message, anything else multipart/mixed.
func Compose(d Draft) ([]byte, error) {
	var h mail.Header
	if d.Date.IsZero() {
		d.Date = time.Now()
	}
	h.SetDate(d.Date)
	h.SetSubject(d.Subject)
	if d.From != "" {
		addr, err := mail.ParseAddress(d.From)
		if err != nil {
			return nil, fmt.Errorf("parse sender %q: %w", d.From, err)
		}
		h.SetAddressList("From", []*mail.Address{addr})
	}

	var buf bytes.Buffer
	if d.HTML == "" && len(d.Attachments) == 0 {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("create message: %w", err)
		}
		if _, err := io.WriteString(w, d.Text); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline: %w", err)
	}
	if d.Text != "" || d.HTML == "" {
		if err := writeInline(tw, "text/plain", d.Text); err != nil {
			return nil, err
		}
	}
	if d.HTML != "" {
		if err := writeInline(tw, "text/html", d.HTML); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}

	for _, a := range d.Attachments {
		var ah mail.AttachmentHeader
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ah.SetContentType(contentType, nil)
		ah.SetFilename(a.Filename)
		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("create attachment %q: %w", a.Filename, err)
		}
		if _, err := w.Write(a.Data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeInline(tw *mail.InlineWriter, contentType, body string) error {
	var ih mail.InlineHeader
	ih.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(ih)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	return w.Close()
}

// MustCompose is Compose for fixtures known to be valid.
func MustCompose(d Draft) []byte {
	raw, err := Compose(d)
	if err != nil {
		panic(err)
	}
	return raw
}
