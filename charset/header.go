package charset

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	encodedWord = regexp.MustCompile(`=\?([^?\s]+)\?([BbQq])\?([^?\s]*)\?=`)
	foldedLine  = regexp.MustCompile(`\r?\n[ \t]+`)
)

// Word is one segment of a header value. Encoded words carry the charset
// they declared; plain segments carry their raw bytes and no charset.
type Word struct {
	Payload []byte
	Charset string
	Encoded bool
}

// SplitHeader breaks a raw header value into plain and RFC 2047 encoded
// segments. Adjacent encoded words with the same charset are merged so that
// multi-byte characters split across words decode correctly.
func SplitHeader(value string) []Word {
	value = foldedLine.ReplaceAllString(value, " ")

	var words []Word
	last := 0
	prevEncoded := false
	for _, m := range encodedWord.FindAllStringSubmatchIndex(value, -1) {
		between := value[last:m[0]]
		if !(prevEncoded && strings.TrimSpace(between) == "") && between != "" {
			words = append(words, Word{Payload: []byte(between)})
		}
		last = m[1]

		label := value[m[2]:m[3]]
		if i := strings.IndexByte(label, '*'); i >= 0 {
			label = label[:i]
		}
		payload, err := decodeWordPayload(value[m[4]:m[5]], value[m[6]:m[7]])
		if err != nil {
			words = append(words, Word{Payload: []byte(value[m[0]:m[1]])})
			prevEncoded = false
			continue
		}

		if n := len(words); n > 0 && words[n-1].Encoded && strings.EqualFold(words[n-1].Charset, label) {
			words[n-1].Payload = append(words[n-1].Payload, payload...)
		} else {
			words = append(words, Word{Payload: payload, Charset: label, Encoded: true})
		}
		prevEncoded = true
	}
	if last < len(value) {
		words = append(words, Word{Payload: []byte(value[last:])})
	}
	return words
}

// DecodeHeader decodes a raw header value with the Default resolver.
func DecodeHeader(value string) string {
	return Default.DecodeHeader(value)
}

// DecodeHeader decodes every segment of a header value. Encoded words use
// their declared charset first; raw 8-bit segments go through the full
// cascade including detection.
func (r *Resolver) DecodeHeader(value string) string {
	var b strings.Builder
	for _, w := range SplitHeader(value) {
		switch {
		case w.Encoded:
			b.WriteString(r.Resolve(w.Payload, w.Charset).Text)
		case utf8.Valid(w.Payload):
			b.Write(w.Payload)
		default:
			b.WriteString(r.Resolve(w.Payload, "").Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func decodeWordPayload(enc, text string) ([]byte, error) {
	switch enc {
	case "B", "b":
		if out, err := base64.StdEncoding.DecodeString(text); err == nil {
			return out, nil
		}
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "="))
	case "Q", "q":
		return decodeQ(text)
	}
	return nil, fmt.Errorf("unknown word encoding %q", enc)
}

func decodeQ(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '_':
			out = append(out, ' ')
		case '=':
			if i+2 >= len(s) {
				return nil, fmt.Errorf("truncated escape at %d", i)
			}
			b, err := hex.DecodeString(s[i+1 : i+3])
			if err != nil {
				return nil, fmt.Errorf("bad escape at %d: %w", i, err)
			}
			out = append(out, b[0])
			i += 2
		default:
			out = append(out, c)
		}
	}
	return out, nil
}
