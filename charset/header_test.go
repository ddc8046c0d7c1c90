package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeader(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "plain ascii", value: "Hello", want: "Hello"},
		{name: "gbk base64", value: "=?GBK?B?1tDOxA==?=", want: "中文"},
		{name: "utf-8 quoted", value: "=?UTF-8?Q?=E4=B8=AD=E6=96=87?=", want: "中文"},
		{name: "q underscore", value: "=?utf-8?q?a_b?=", want: "a b"},
		{name: "adjacent words drop whitespace", value: "=?UTF-8?B?5Lit?= =?UTF-8?B?5paH?=", want: "中文"},
		{name: "character split across words", value: "=?UTF-8?B?5Lg=?=\r\n =?UTF-8?B?reaWhw==?=", want: "中文"},
		{name: "mixed plain and encoded", value: "Re: =?UTF-8?B?5Lit5paH?= test", want: "Re: 中文 test"},
		{name: "raw gbk bytes", value: string(gbkZhongWen), want: "中文"},
		{name: "broken escape kept literal", value: "=?UTF-8?Q?=ZZ?=", want: "=?UTF-8?Q?=ZZ?="},
		{name: "language suffix", value: "=?UTF-8*zh?B?5Lit5paH?=", want: "中文"},
		{name: "address", value: "=?UTF-8?B?5Lit5paH?= <info@sptl.com.cn>", want: "中文 <info@sptl.com.cn>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeHeader(tt.value))
		})
	}
}

func TestSplitHeader(t *testing.T) {
	words := SplitHeader("Re: =?GBK?B?1tDOxA==?= =?UTF-8?B?5Lit?=")
	require.Len(t, words, 3)

	assert.False(t, words[0].Encoded)
	assert.Equal(t, "Re: ", string(words[0].Payload))

	assert.True(t, words[1].Encoded)
	assert.Equal(t, "GBK", words[1].Charset)
	assert.Equal(t, gbkZhongWen, words[1].Payload)

	assert.True(t, words[2].Encoded)
	assert.Equal(t, "UTF-8", words[2].Charset)
}
