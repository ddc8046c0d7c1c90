package model

import (
	"bytes"
	"io"
	"time"
)

// RawMessage is a single message file as read from a source, before decoding.
type RawMessage struct {
	Path    string
	Data    []byte
	ModTime time.Time
}

// AttachmentRef describes one attachment part. The payload stays in memory
// until an extractor decides to persist it.
type AttachmentRef struct {
	Filename    string
	ContentType string
	payload     []byte
}

// NewAttachmentRef wraps an attachment payload.
func NewAttachmentRef(filename, contentType string, payload []byte) AttachmentRef {
	return AttachmentRef{Filename: filename, ContentType: contentType, payload: payload}
}

// Open returns a reader over the attachment payload.
func (a AttachmentRef) Open() io.Reader {
	return bytes.NewReader(a.payload)
}

func (a AttachmentRef) Size() int {
	return len(a.payload)
}

// DecodedMessage is the structured form of a message after MIME decoding.
type DecodedMessage struct {
	Path        string
	ModTime     time.Time
	Subject     string
	Sender      string
	Date        string
	SentAt      time.Time
	PlainBody   string
	HTMLBody    string
	Attachments []AttachmentRef
}

// NormalizedMessage pairs a decoded message with its markup-free content.
type NormalizedMessage struct {
	DecodedMessage
	Content string
}
