package charset

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gbkZhongWen = []byte{0xd6, 0xd0, 0xce, 0xc4} // 中文

type fixedDetector struct {
	name       string
	confidence int
}

func (f fixedDetector) Detect([]byte) (string, int, bool) {
	return f.name, f.confidence, true
}

func TestResolve(t *testing.T) {
	utf8Only := []Candidate{{Name: "utf-8"}}

	tests := []struct {
		name         string
		resolver     *Resolver
		payload      []byte
		declared     string
		wantText     string
		wantCharset  string
		wantStrategy Strategy
	}{
		{
			name:         "utf-8 without declaration",
			resolver:     NewResolver(),
			payload:      []byte("答复期限"),
			wantText:     "答复期限",
			wantCharset:  "utf-8",
			wantStrategy: StrategyCascade,
		},
		{
			name:         "gbk found by cascade",
			resolver:     NewResolver(),
			payload:      gbkZhongWen,
			wantText:     "中文",
			wantCharset:  "gbk",
			wantStrategy: StrategyCascade,
		},
		{
			name:         "declared gbk",
			resolver:     NewResolver(),
			payload:      gbkZhongWen,
			declared:     "GB2312",
			wantText:     "中文",
			wantCharset:  "gbk",
			wantStrategy: StrategyDeclared,
		},
		{
			name:         "wrong declaration falls through",
			resolver:     NewResolver(),
			payload:      gbkZhongWen,
			declared:     "utf-8",
			wantText:     "中文",
			wantCharset:  "gbk",
			wantStrategy: StrategyCascade,
		},
		{
			name:         "unknown label ignored",
			resolver:     NewResolver(),
			payload:      []byte("plain"),
			declared:     "x-made-up",
			wantText:     "plain",
			wantCharset:  "utf-8",
			wantStrategy: StrategyCascade,
		},
		{
			name:         "latin-1 accepted",
			resolver:     NewResolver(WithCandidates([]Candidate{{Name: "utf-8"}, DefaultCandidates[4]}), WithDetector(nil)),
			payload:      []byte("caf\xe9"),
			wantText:     "café",
			wantCharset:  "iso-8859-1",
			wantStrategy: StrategyCascade,
		},
		{
			name:         "detector above threshold",
			resolver:     NewResolver(WithCandidates(utf8Only), WithDetector(fixedDetector{name: "GB18030", confidence: 90})),
			payload:      gbkZhongWen,
			wantText:     "中文",
			wantCharset:  "gb18030",
			wantStrategy: StrategyDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.resolver.Resolve(tt.payload, tt.declared)
			assert.Equal(t, tt.wantText, res.Text)
			assert.Equal(t, tt.wantCharset, res.Charset)
			assert.Equal(t, tt.wantStrategy, res.Strategy)
		})
	}
}

func TestResolveFallback(t *testing.T) {
	t.Run("detector at threshold is ignored", func(t *testing.T) {
		r := NewResolver(WithCandidates([]Candidate{{Name: "utf-8"}}), WithDetector(fixedDetector{name: "gbk", confidence: DefaultMinConfidence}))
		res := r.Resolve(gbkZhongWen, "")
		assert.Equal(t, StrategyFallback, res.Strategy)
		assert.True(t, utf8.ValidString(res.Text))
		assert.Contains(t, res.Text, string(utf8.RuneError))
	})

	t.Run("c1 controls reject single byte charsets", func(t *testing.T) {
		r := NewResolver(WithCandidates([]Candidate{{Name: "utf-8"}, DefaultCandidates[4]}), WithDetector(nil))
		res := r.Resolve([]byte{'a', 0x85, 'b'}, "")
		assert.Equal(t, StrategyFallback, res.Strategy)
		assert.Equal(t, "a�b", res.Text)
	})

	t.Run("empty payload", func(t *testing.T) {
		res := NewResolver().Resolve(nil, "gbk")
		assert.Empty(t, res.Text)
	})
}

func TestReaderHook(t *testing.T) {
	r, err := Default.Reader("gbk", strings.NewReader(string(gbkZhongWen)))
	require.NoError(t, err)

	buf := new(strings.Builder)
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, "中文", buf.String())
}
