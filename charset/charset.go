// Package charset turns byte payloads of unknown or mislabelled encoding into
// UTF-8 text.
package charset

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"github.com/gogs/chardet"
	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Strategy records which step of the cascade produced a result.
type Strategy string

const (
	StrategyDeclared Strategy = "declared"
	StrategyCascade  Strategy = "cascade"
	StrategyDetected Strategy = "detected"
	StrategyFallback Strategy = "fallback"
)

// DefaultMinConfidence is the detector confidence (0-100) that must be
// exceeded before a detected charset is tried.
const DefaultMinConfidence = 70

// Candidate is one entry of the fixed cascade. A nil Encoding means UTF-8.
type Candidate struct {
	Name     string
	Encoding encoding.Encoding
}

// DefaultCandidates is the fixed cascade tried after the declared charset.
var DefaultCandidates = []Candidate{
	{Name: "utf-8"},
	{Name: "gbk", Encoding: simplifiedchinese.GBK},
	{Name: "gb18030", Encoding: simplifiedchinese.GB18030},
	{Name: "big5", Encoding: traditionalchinese.Big5},
	{Name: "iso-8859-1", Encoding: charmap.ISO8859_1},
}

// Detector guesses the charset of a payload. Confidence is on a 0-100 scale.
type Detector interface {
	Detect(payload []byte) (name string, confidence int, ok bool)
}

// Result is the outcome of Resolve.
type Result struct {
	Text     string
	Charset  string
	Strategy Strategy
}

// Resolver decodes payloads through the declared charset, a fixed cascade,
// statistical detection and finally permissive UTF-8.
type Resolver struct {
	candidates    []Candidate
	detector      Detector
	minConfidence int
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithCandidates replaces the fixed cascade.
func WithCandidates(c []Candidate) Option {
	return func(r *Resolver) { r.candidates = c }
}

// WithDetector replaces the statistical detector. A nil detector disables detection.
func WithDetector(d Detector) Option {
	return func(r *Resolver) { r.detector = d }
}

// WithMinConfidence sets the detector confidence threshold.
func WithMinConfidence(c int) Option {
	return func(r *Resolver) { r.minConfidence = c }
}

// NewResolver builds a Resolver with the default cascade and chardet detection.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		candidates:    DefaultCandidates,
		detector:      chardetDetector{d: chardet.NewTextDetector()},
		minConfidence: DefaultMinConfidence,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default is the resolver used by the package level helpers and the
// go-message charset hook.
var Default = NewResolver()

func init() {
	message.CharsetReader = Default.Reader
}

// Decode resolves payload with the Default resolver and returns the text.
func Decode(payload []byte, declared string) string {
	return Default.Resolve(payload, declared).Text
}

// Resolve decodes payload. It never fails: when no strict decode succeeds the
// payload is decoded as UTF-8 with invalid bytes replaced.
func (r *Resolver) Resolve(payload []byte, declared string) Result {
	if len(payload) == 0 {
		return Result{Charset: "utf-8", Strategy: StrategyCascade}
	}

	if declared = strings.TrimSpace(declared); declared != "" {
		if enc, name, ok := lookup(declared); ok {
			if text, ok := decodeStrict(enc, payload); ok {
				return Result{Text: text, Charset: name, Strategy: StrategyDeclared}
			}
		}
	}

	for _, c := range r.candidates {
		if text, ok := decodeStrict(c.Encoding, payload); ok {
			return Result{Text: text, Charset: c.Name, Strategy: StrategyCascade}
		}
	}

	if r.detector != nil {
		if guess, confidence, ok := r.detector.Detect(payload); ok && confidence > r.minConfidence {
			if enc, name, ok := lookup(guess); ok {
				if text, ok := decodeStrict(enc, payload); ok {
					return Result{Text: text, Charset: name, Strategy: StrategyDetected}
				}
			}
		}
	}

	return Result{
		Text:     strings.ToValidUTF8(string(payload), string(utf8.RuneError)),
		Charset:  "utf-8",
		Strategy: StrategyFallback,
	}
}

// Reader adapts Resolve to go-message's CharsetReader hook. Transfer decoding
// errors surface as a truncated payload rather than an unknown charset.
func (r *Resolver) Reader(label string, input io.Reader) (io.Reader, error) {
	payload, _ := io.ReadAll(input)
	return strings.NewReader(r.Resolve(payload, label).Text), nil
}

func lookup(label string) (encoding.Encoding, string, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	switch label {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return nil, "utf-8", true
	case "gb-18030":
		label = "gb18030"
	}
	enc, name := htmlcharset.Lookup(label)
	if enc == nil {
		return nil, "", false
	}
	return enc, name, true
}

var replacementBytes = []byte(string(utf8.RuneError))

func decodeStrict(enc encoding.Encoding, payload []byte) (string, bool) {
	if enc == nil {
		if !utf8.Valid(payload) {
			return "", false
		}
		return string(payload), true
	}

	out, err := enc.NewDecoder().Bytes(payload)
	if err != nil {
		return "", false
	}
	if bytes.Contains(out, replacementBytes) && !bytes.Contains(payload, replacementBytes) {
		return "", false
	}
	if containsC1(out) {
		return "", false
	}
	return string(out), true
}

// containsC1 reports C1 control characters, which only show up when a
// single-byte charset is applied to bytes it does not fit.
func containsC1(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r >= 0x80 && r <= 0x9f {
			return true
		}
		b = b[size:]
	}
	return false
}

type chardetDetector struct {
	d *chardet.Detector
}

func (c chardetDetector) Detect(payload []byte) (string, int, bool) {
	res, err := c.d.DetectBest(payload)
	if err != nil || res == nil {
		return "", 0, false
	}
	return res.Charset, res.Confidence, true
}
