package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarDate(t *testing.T) {
	tests := []struct {
		y, m, d string
		ok      bool
	}{
		{"2025", "09", "29", true},
		{"2024", "2", "29", true},
		{"2025", "2", "29", false},
		{"2025", "13", "01", false},
		{"2025", "0", "10", false},
		{"2025", "4", "31", false},
		{"2025", "12", "0", false},
	}
	for _, tt := range tests {
		got, ok := calendarDate(tt.y, tt.m, tt.d)
		assert.Equal(t, tt.ok, ok, "%s-%s-%s", tt.y, tt.m, tt.d)
		if ok {
			assert.Equal(t, tt.y, got.Format("2006"))
		}
	}
}

func TestFirstDateSkipsInvalidTriples(t *testing.T) {
	rules := []DateRule{
		dateRule("first", `A(\d{4})-(\d{1,2})-(\d{1,2})`),
		dateRule("second", `B(\d{4})-(\d{1,2})-(\d{1,2})`),
	}

	d, name, ok := FirstDate(rules, "A2025-02-30 B2025-03-01")
	require.True(t, ok)
	assert.Equal(t, "second", name)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), d)

	_, _, ok = FirstDate(rules, "A2025-13-01")
	assert.False(t, ok)
}

func TestDeadlineRuleOrder(t *testing.T) {
	// Both a labelled deadline and a generic date near 期限 are present; the
	// labelled statement wins.
	text := "2024年12月01日发出的通知书期限较短。答复该通知书的期限是2025年01月05日。"

	d, name, ok := FirstDate(deadlineRules, text)
	require.True(t, ok)
	assert.Equal(t, "notice-deadline", name)
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), d)
}

func TestSubjectApplicationRules(t *testing.T) {
	tests := []struct {
		subject  string
		rule     string
		app      string
		client   string
		internal string
	}{
		{
			subject:  "【提醒函】CN 申请号：202310123456.7;贵方编号：ABC-001;我方编号：XYZ-001",
			rule:     "reminder-full",
			app:      "202310123456.7",
			client:   "ABC-001",
			internal: "XYZ-001",
		},
		{
			subject: "【提醒函】CN 申请号：202310123456.7;贵方编号：;我方编号：XYZ-001",
			rule:    "reminder-full", app: "202310123456.7", internal: "XYZ-001",
		},
		{
			subject: "【提醒函】CN申请号：202310123456.7；我方编号：XYZ-001",
			rule:    "reminder-internal-only", app: "202310123456.7", internal: "XYZ-001",
		},
		{subject: "申请号为 202310123456.7 的提醒", rule: "labelled", app: "202310123456.7"},
		{subject: "Re: CN 202310123456.7", rule: "cn-prefixed", app: "202310123456.7"},
		{subject: "专利申请 2023101234567 提醒", rule: "patent-application", app: "2023101234567"},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			values, rule, ok := FirstField(subjectApplicationRules, tt.subject)
			require.True(t, ok)
			assert.Equal(t, tt.rule, rule)
			assert.Equal(t, tt.app, values[FieldApplicationNo])
			assert.Equal(t, tt.client, values[FieldClientRef])
			assert.Equal(t, tt.internal, values[FieldInternalRef])
		})
	}
}
