package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dhcgn/patent-reminders/model"
)

func TestHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "paragraphs", in: "<p>A</p><p>B</p>", want: "A\n\nB"},
		{name: "line breaks", in: "A<br>B<br/>C", want: "A\nB\nC"},
		{name: "style block", in: "<style>.x{color:red}</style>正文", want: "正文"},
		{name: "script block", in: "<script type=\"text/javascript\">alert('x')</script>正文", want: "正文"},
		{name: "head block", in: "<html><head><title>t</title></head><body>正文</body></html>", want: "正文"},
		{name: "comment", in: "前<!-- hidden -->后", want: "前后"},
		{name: "link tag", in: "<link rel=\"stylesheet\" href=\"a.css\">正文", want: "正文"},
		{name: "bare css rule", in: ".title { color: red; }\n正文", want: "正文"},
		{name: "named entities", in: "a&nbsp;&amp;&nbsp;b &lt;x&gt;", want: "a & b"},
		{name: "numeric entity", in: "&#20013;&#x6587;", want: "中文"},
		{name: "escaped markup is stripped", in: "正文&lt;b&gt;加粗&lt;/b&gt;", want: "正文加粗"},
		{
			name: "double escaped markup stays text",
			in:   "<p>&amp;lt;script&amp;gt;alert(1)&amp;lt;/script&amp;gt;</p>",
			want: "&lt;script&gt;alert(1)&lt;/script&gt;",
		},
		{name: "quoted printable leftovers", in: "<div>=E7=AD=94=E5=A4=8D</div>", want: "答复"},
		{name: "blank", in: "  \n ", want: ""},
	}

	n := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.HTML(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "<")
			assert.NotContains(t, got, ">")
		})
	}
}

func TestPlain(t *testing.T) {
	n := New()

	assert.Equal(t, "a b\n\nc", n.Plain("  a \t b \r\n\r\n\r\n\r\n c  "))
	assert.Equal(t, "中文", n.Plain("=E4=B8=AD=E6=96=87"))
	assert.Equal(t, "price = 10", n.Plain("price = 10"))
}

func TestRepairQuotedPrintable(t *testing.T) {
	n := New()

	assert.Equal(t, "中文", n.RepairQuotedPrintable("=D6=D0=CE=C4"))
	assert.Equal(t, "no escapes", n.RepairQuotedPrintable("no escapes"))
}

func TestMessagePrefersPlain(t *testing.T) {
	n := New()

	msg := n.Message(model.DecodedMessage{PlainBody: "plain text", HTMLBody: "<p>html</p>"})
	assert.Equal(t, "plain text", msg.Content)

	msg = n.Message(model.DecodedMessage{PlainBody: " \r\n ", HTMLBody: "<p>html</p>"})
	assert.Equal(t, "html", msg.Content)

	msg = n.Message(model.DecodedMessage{Subject: "s"})
	assert.Empty(t, msg.Content)
	assert.Equal(t, "s", msg.Subject)
}
