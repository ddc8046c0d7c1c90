package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dhcgn/patent-reminders/model"
	"github.com/dhcgn/patent-reminders/progress"
	"github.com/dhcgn/patent-reminders/scan"
	"github.com/dhcgn/patent-reminders/store"
)

var (
	scanKind string
	scanJSON bool
)

var kinds = []string{"reminders", "certificates", "invoices", "notices"}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the mail directory and list reminders, certificates, invoices and notices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanKind != "all" && !slices.Contains(kinds, scanKind) {
			return fmt.Errorf("invalid --kind %q: want all or one of %s", scanKind, strings.Join(kinds, ", "))
		}

		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		status, err := store.Open(e.cfg.StatusDB, e.logger)
		if err != nil {
			return err
		}
		defer status.Close()

		p, _, _, err := e.pipeline(status, nil)
		if err != nil {
			return err
		}

		level := e.cfg.LogLevel
		if scanJSON {
			level = ""
		}
		total, err := p.Source().Count(cmd.Context())
		if err != nil {
			return fmt.Errorf("count messages: %w", err)
		}
		bar := progress.New(total, level)

		e.logger.Debug("starting scan", "mailDir", e.cfg.MailDir, "messages", total)
		res, err := p.Scan(cmd.Context(), scan.Options{IncludeCompleted: e.cfg.IncludeCompleted, Observer: bar})
		bar.Stop()
		if err != nil {
			return err
		}

		if scanJSON {
			return writeJSON(os.Stdout, res, scanKind)
		}
		if err := renderResult(res, scanKind); err != nil {
			return err
		}
		if level == "info" {
			progress.PrintSummary(res.Summary, res.Duration)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanKind, "kind", "all", "Record kind to show: all, reminders, certificates, invoices, notices")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print records as JSON instead of tables")
	rootCmd.AddCommand(scanCmd)
}

// writeJSON prints the selected record lists keyed by kind.
func writeJSON(w io.Writer, res scan.Result, kind string) error {
	out := map[string]any{}
	for _, k := range kinds {
		if kind != "all" && kind != k {
			continue
		}
		switch k {
		case "reminders":
			out[k] = nonNil(res.Reminders)
		case "certificates":
			out[k] = nonNil(res.Certificates)
		case "invoices":
			out[k] = nonNil(res.Invoices)
		case "notices":
			out[k] = nonNil(res.Notices)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func renderResult(res scan.Result, kind string) error {
	sections := []struct {
		kind  string
		title string
		rows  [][]string
	}{
		{"reminders", "Examination reminders", reminderRows(res.Reminders)},
		{"certificates", "Patent certificates", certificateRows(res.Certificates)},
		{"invoices", "Fee invoices", invoiceRows(res.Invoices)},
		{"notices", "Notices", noticeRows(res.Notices)},
	}
	for _, s := range sections {
		if kind != "all" && kind != s.kind {
			continue
		}
		pterm.DefaultSection.Println(fmt.Sprintf("%s (%d)", s.title, len(s.rows)-1))
		if len(s.rows) == 1 {
			pterm.Info.Println("none")
			continue
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(s.rows).Render(); err != nil {
			return err
		}
	}
	return nil
}

func reminderRows(recs []model.ReminderRecord) [][]string {
	rows := [][]string{{"Application", "Client ref", "Our ref", "Deadline", "Days", "Urgency", "Done", "Subject"}}
	for _, r := range recs {
		rows = append(rows, []string{
			r.ApplicationNo, r.ClientRef, r.InternalRef, r.DeadlineText,
			strconv.Itoa(r.DaysLeft), urgencyLabel(r.Urgency), yesNo(r.Completed), shorten(r.Subject, 40),
		})
	}
	return rows
}

func certificateRows(recs []model.CertificateRecord) [][]string {
	rows := [][]string{{"Patent", "Name", "Date", "Files"}}
	for _, r := range recs {
		names := make([]string, 0, len(r.Attachments))
		for _, a := range r.Attachments {
			names = append(names, a.OriginalName)
		}
		rows = append(rows, []string{r.PatentNo, shorten(r.PatentName, 30), r.Date, strings.Join(names, ", ")})
	}
	return rows
}

func invoiceRows(recs []model.InvoiceRecord) [][]string {
	rows := [][]string{{"Invoice", "Official receipt", "Notice", "Agent receipt", "Agent XML", "Date"}}
	name := func(a *model.SavedAttachment) string {
		if a == nil {
			return "-"
		}
		return a.OriginalName
	}
	for _, r := range recs {
		rows = append(rows, []string{r.InvoiceNo, name(r.OfficialReceipt), name(r.Notice), name(r.AgentReceipt), name(r.AgentXML), r.Date})
	}
	return rows
}

func noticeRows(recs []model.NoticeRecord) [][]string {
	rows := [][]string{{"Category", "Subject", "Date"}}
	for _, r := range recs {
		rows = append(rows, []string{r.Category, shorten(r.Subject, 50), r.Date})
	}
	return rows
}

func urgencyLabel(u model.Urgency) string {
	switch u {
	case model.UrgencyOverdue:
		return pterm.Red(string(u))
	case model.UrgencyUrgent:
		return pterm.Yellow(string(u))
	}
	return string(u)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
