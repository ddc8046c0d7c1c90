package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	labelledTitle  = regexp.MustCompile(`(?m)^\s*(?:申请名称|发明名称|专利名称|实用新型名称|外观设计名称)[：:]\s*(.+?)\s*$`)
	titleBeforeRef = regexp.MustCompile(`(?m)^\s*([^\n]+?)\s*[（(]?\s*(?:贵方编号|我方编号)`)
	prefixedTitle  = regexp.MustCompile(`((?:一种|基于)[^\n，。；;,、：:]{2,60})`)

	titleTrim = "：:，,。；;、（）()《》\"'“”「」 \t"
)

// Fragments that show up near references but are never titles.
var titleStopWords = []string{
	"尊敬的", "您好", "此致", "敬礼", "申请号", "编号", "期限", "通知书", "提醒函", "http",
}

const (
	titleMinRunes = 4
	titleMaxRunes = 80
)

// TitleRefiner looks for a patent title in reminder content. The result is
// a display hint only.
type TitleRefiner struct{}

// Find returns the first plausible title found by the heuristics, in order:
// a labelled name line, text right before a reference marker, then phrases
// opening with a common title prefix.
func (TitleRefiner) Find(content string) (string, bool) {
	for _, m := range labelledTitle.FindAllStringSubmatch(content, -1) {
		if title, ok := plausibleTitle(m[1]); ok {
			return title, true
		}
	}
	for _, m := range titleBeforeRef.FindAllStringSubmatch(content, -1) {
		if title, ok := plausibleTitle(m[1]); ok {
			return title, true
		}
	}
	for _, m := range prefixedTitle.FindAllStringSubmatch(content, -1) {
		if title, ok := plausibleTitle(m[1]); ok {
			return title, true
		}
	}
	return "", false
}

// Apply promotes a found title to the subject and removes its first
// occurrence from content. Without a title both are returned unchanged.
func (t TitleRefiner) Apply(subject, content string) (string, string) {
	title, ok := t.Find(content)
	if !ok {
		return subject, content
	}
	return title, strings.TrimSpace(strings.Replace(content, title, "", 1))
}

func plausibleTitle(s string) (string, bool) {
	s = strings.Trim(strings.TrimSpace(s), titleTrim)
	n := utf8.RuneCountInString(s)
	if n < titleMinRunes || n > titleMaxRunes {
		return "", false
	}
	if containsAny(s, titleStopWords) {
		return "", false
	}
	hasWord := false
	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.IsLetter(r) {
			hasWord = true
			break
		}
	}
	if !hasWord {
		return "", false
	}
	return s, true
}
