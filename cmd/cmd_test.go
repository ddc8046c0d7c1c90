package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/patent-reminders/filter"
	"github.com/dhcgn/patent-reminders/model"
	"github.com/dhcgn/patent-reminders/scan"
)

func TestSenderDomain(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"info@SPTL.com.cn", "sptl.com.cn"},
		{"专利代理 <info@sptl.com.cn>", "sptl.com.cn"},
		{"\"Agency\" <a@example.org>", "example.org"},
		{"no address", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, senderDomain(tt.from), tt.from)
	}
}

func TestCounterAndCSVReports(t *testing.T) {
	c := newCounter()
	sent := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	c.add(model.DecodedMessage{Sender: "a@sptl.com.cn", Subject: "one", SentAt: sent})
	c.add(model.DecodedMessage{Sender: "a@sptl.com.cn", Subject: "two", SentAt: sent})
	c.add(model.DecodedMessage{Sender: "b@example.org", Subject: "one"})

	assert.Equal(t, 2, c["From"]["a@sptl.com.cn"])
	assert.Equal(t, 2, c["Sender-Domain"]["sptl.com.cn"])
	assert.Equal(t, 2, c["Subject"]["one"])
	assert.Equal(t, 2, c["Year"]["2024"])

	dir := t.TempDir()
	require.NoError(t, saveCSVReports(c, dimensions, dir, 1))

	data, err := os.ReadFile(filepath.Join(dir, "report_sender_domain.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Value,Count\nsptl.com.cn,2\n", string(data))
}

func TestPrintFilterHits(t *testing.T) {
	var buf bytes.Buffer
	printFilterHits(&buf, []filter.Hit{
		{Kind: "exclude-header", Pattern: "spam", Count: 2},
		{Kind: "exclude-body", Pattern: "unsubscribe"},
	})
	assert.Equal(t, "  ✓ [exclude-header] spam: 2 hits\n  ✗ [exclude-body] unsubscribe: 0 hits\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	res := scan.Result{
		Reminders: []model.ReminderRecord{{ApplicationNo: "202310123456.7", DeadlineText: "2025年09月29日"}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, res, "all"))
	var all map[string][]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &all))
	assert.Len(t, all, 4)
	assert.Equal(t, "202310123456.7", all["reminders"][0]["application_no"])
	assert.Empty(t, all["notices"])

	buf.Reset()
	require.NoError(t, writeJSON(&buf, res, "invoices"))
	assert.JSONEq(t, `{"invoices":[]}`, buf.String())
}

func TestRows(t *testing.T) {
	rows := reminderRows([]model.ReminderRecord{{ApplicationNo: "1", DaysLeft: 3, Urgency: model.UrgencyNormal, Completed: true}})
	require.Len(t, rows, 2)
	assert.Equal(t, "3", rows[1][4])
	assert.Equal(t, "yes", rows[1][6])

	inv := invoiceRows([]model.InvoiceRecord{{InvoiceNo: "INV", AgentXML: &model.SavedAttachment{OriginalName: "fee.xml"}}})
	assert.Equal(t, []string{"INV", "-", "-", "-", "fee.xml", ""}, inv[1])
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "short", shorten("short", 10))
	assert.Equal(t, "一种数据...", shorten("一种数据同步方法及装置", 7))
}
