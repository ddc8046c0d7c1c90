package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Field names a record field a capture group feeds.
type Field int

const (
	FieldSkip Field = iota
	FieldApplicationNo
	FieldClientRef
	FieldInternalRef
)

// FieldRule is one entry of a field cascade: a pattern and the field each of
// its capture groups maps to, in group order.
type FieldRule struct {
	Name    string
	Pattern *regexp.Regexp
	Groups  []Field
}

func fieldRule(name, pattern string, groups ...Field) FieldRule {
	return FieldRule{Name: name, Pattern: regexp.MustCompile(pattern), Groups: groups}
}

// Match applies the rule to text. Captured values are trimmed; a group
// mapped to FieldSkip is ignored.
func (r FieldRule) Match(text string) (map[Field]string, bool) {
	m := r.Pattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	values := make(map[Field]string, len(r.Groups))
	for i, field := range r.Groups {
		if field == FieldSkip || i+1 >= len(m) {
			continue
		}
		values[field] = strings.TrimSpace(m[i+1])
	}
	return values, true
}

// FirstField runs rules in order and returns the values of the first match.
func FirstField(rules []FieldRule, text string) (map[Field]string, string, bool) {
	for _, r := range rules {
		if values, ok := r.Match(text); ok {
			return values, r.Name, true
		}
	}
	return nil, "", false
}

// DateRule is one entry of a date cascade. The pattern captures year, month
// and day in that order.
type DateRule struct {
	Name    string
	Pattern *regexp.Regexp
}

func dateRule(name, pattern string) DateRule {
	return DateRule{Name: name, Pattern: regexp.MustCompile(pattern)}
}

// Match returns the calendar date encoded by the first match of the rule.
// Triples that do not form a real date report false.
func (r DateRule) Match(text string) (time.Time, bool) {
	m := r.Pattern.FindStringSubmatch(text)
	if len(m) < 4 {
		return time.Time{}, false
	}
	return calendarDate(m[1], m[2], m[3])
}

// FirstDate runs rules in order. A rule whose match is not a valid date is
// skipped and the cascade continues.
func FirstDate(rules []DateRule, text string) (time.Time, string, bool) {
	for _, r := range rules {
		if d, ok := r.Match(text); ok {
			return d, r.Name, true
		}
	}
	return time.Time{}, "", false
}

func calendarDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, so 2025-02-30 comes back as March.
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// refChars matches reference numbers such as ABC-2023-001 or P.1234.
const refChars = `[\p{L}\p{N}_\-\.]`

// Subject side application number cascade. The first three rules also carry
// the client and internal references.
var subjectApplicationRules = []FieldRule{
	fieldRule("reminder-full",
		`【提醒函】\s*CN\s*申请号[：:]\s*([^;；]+?)\s*[;；]\s*贵方编号[：:]\s*([^;；]*?)\s*[;；]\s*我方编号[：:]\s*([^;；\s]+)`,
		FieldApplicationNo, FieldClientRef, FieldInternalRef),
	fieldRule("reminder-internal-only",
		`【提醒函】\s*CN\s*申请号[：:]\s*([^;；]+?)\s*[;；]\s*我方编号[：:]\s*([^;；\s]+)`,
		FieldApplicationNo, FieldInternalRef),
	fieldRule("reminder-application-only",
		`【提醒函】\s*CN\s*申请号[：:]\s*([^;；,，\s]+)`,
		FieldApplicationNo),
	fieldRule("labelled", `申请号[为：:]\s*(\d[\d\.]*)`, FieldApplicationNo),
	fieldRule("cn-prefixed", `CN\s*(\d+\.\d+)`, FieldApplicationNo),
	fieldRule("patent-application", `专利申请.*?(\d[\d\.]*)`, FieldApplicationNo),
}

var bodyApplicationRules = []FieldRule{
	fieldRule("labelled", `申请号[为：:]\s*(\d[\d\.]*)`, FieldApplicationNo),
	fieldRule("national", `国家申请号[：:]\s*(\d[\d\.]*)`, FieldApplicationNo),
}

var internalRefRules = []FieldRule{
	fieldRule("labelled", `我方编号[：:]\s*(`+refChars+`+)`, FieldInternalRef),
	fieldRule("any-token", `我方编号：(\S+)`, FieldInternalRef),
}

var clientRefRules = []FieldRule{
	fieldRule("labelled", `贵方编号[：:]\s*(`+refChars+`*)`, FieldClientRef),
	fieldRule("client-no", `客户编号[：:]\s*(`+refChars+`*)`, FieldClientRef),
}

const ymd = `(\d{4})年(\d{1,2})月(\d{1,2})日`

// Reply deadline cascade. Order is significant: specific statements first,
// then generic dates near 期限 or 答复, then explicit cut-off dates.
var deadlineRules = []DateRule{
	dateRule("notice-deadline", `答复该通知书的期限是\s*`+ymd),
	dateRule("reply-deadline", `答复期限(?:为|是)?[：:]?\s*`+ymd),
	dateRule("deadline", `期限(?:为|是)?[：:]?\s*`+ymd),
	dateRule("date-before-deadline", ymd+`.*?期限`),
	dateRule("date-before-reply", ymd+`.*?答复`),
	dateRule("cutoff-date", `截止日期[：:]?\s*`+ymd),
	dateRule("cutoff-date-iso", `截止日期[：:]?\s*(\d{4})-(\d{1,2})-(\d{1,2})`),
	dateRule("cutoff", `截止[：:]?\s*`+ymd),
	dateRule("cutoff-iso", `截止[：:]?\s*(\d{4})-(\d{1,2})-(\d{1,2})`),
}

const ymdPlain = `\d{4}年\d{1,2}月\d{1,2}日`

// Deadline bearing statements that mark a message as a reminder.
var reminderStatements = []*regexp.Regexp{
	regexp.MustCompile(`请留意该通知书的答复期限为[：:]?\s*` + ymdPlain),
	regexp.MustCompile(`(?s)请参见我方于` + ymdPlain + `.*?答复该通知书的期限是\s*` + ymdPlain),
	regexp.MustCompile(`答复该通知书的期限是\s*` + ymdPlain),
}

// Looser relevance keywords, used when no statement matches.
var reminderKeywords = []string{"申请号", "专利", "贵方编号", "我方编号"}
