package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/spf13/cobra"

	"github.com/dhcgn/patent-reminders/decode"
	"github.com/dhcgn/patent-reminders/filter"
	"github.com/dhcgn/patent-reminders/model"
	"github.com/dhcgn/patent-reminders/normalize"
	"github.com/dhcgn/patent-reminders/source"
	"github.com/dhcgn/patent-reminders/stats"
)

var (
	reportDir string
	topN      int
)

// Tracked dimensions of mail-stats.
var dimensions = []string{"From", "Sender-Domain", "Subject", "Year"}

var mailStatsCmd = &cobra.Command{
	Use:   "mail-stats [mail dir]",
	Short: "Analyse the mail directory and show statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		mailDir := e.cfg.MailDir
		if len(args) == 1 {
			mailDir = args[0]
		}
		if mailDir == "" {
			return fmt.Errorf("mail directory required as argument or --mail-dir")
		}
		src, err := source.NewDir(mailDir, e.logger)
		if err != nil {
			return err
		}
		f, err := e.filter()
		if err != nil {
			return err
		}

		fmt.Println("Analyzing mail directory:", mailDir)

		counts := newCounter()
		decoder := decode.New(e.logger)
		normalizer := normalize.New()

		messageCount, skippedCount, failedCount := 0, 0, 0
		printStats := func() {
			// ANSI escape code to clear screen and move cursor to top-left
			fmt.Print("\033[H\033[2J")
			total := messageCount + skippedCount
			var filterPercent float64
			if total > 0 {
				filterPercent = float64(skippedCount) / float64(total) * 100
			}
			fmt.Printf("Processed %d messages (skipped %d by filters, %.2f%%, %d undecodable)...\n\n", messageCount, skippedCount, filterPercent, failedCount)

			if f.Active() {
				fmt.Println("Filters:")
				printFilterHits(os.Stdout, f.Hits())
				fmt.Println()
				fmt.Println("---")
				fmt.Println()
			}

			for _, d := range dimensions {
				fmt.Printf("Top %d %s:\n", topN, d)
				stats.PrettyPrintTop(os.Stdout, counts[d], topN)
				fmt.Println()
			}
		}

		err = src.Walk(cmd.Context(), func(raw model.RawMessage) error {
			decoded, err := decoder.Decode(raw)
			if err != nil {
				failedCount++
				return nil
			}
			msg := normalizer.Message(decoded)
			if !f.Allows(msg) {
				skippedCount++
				return nil
			}

			messageCount++
			counts.add(msg.DecodedMessage)

			if messageCount%250 == 0 {
				printStats()
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("error reading mail directory: %w", err)
		}

		// Final print
		printStats()

		if err := saveCSVReports(counts, dimensions, reportDir, 1000); err != nil {
			return fmt.Errorf("error saving CSV reports: %w", err)
		}

		fmt.Printf("\nReports saved to directory: %s\n", reportDir)
		return nil
	},
}

func init() {
	mailStatsCmd.Flags().StringVarP(&reportDir, "output", "o", ".", "Output directory for CSV reports")
	mailStatsCmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")
	rootCmd.AddCommand(mailStatsCmd)
}

type counter map[string]map[string]int

func newCounter() counter {
	c := counter{}
	for _, d := range dimensions {
		c[d] = map[string]int{}
	}
	return c
}

func (c counter) add(msg model.DecodedMessage) {
	if msg.Sender != "" {
		c["From"][msg.Sender]++
		if domain := senderDomain(msg.Sender); domain != "" {
			c["Sender-Domain"][domain]++
		}
	}
	if msg.Subject != "" {
		c["Subject"][msg.Subject]++
	}
	if !msg.SentAt.IsZero() {
		c["Year"][strconv.Itoa(msg.SentAt.Year())]++
	}
}

// senderDomain returns the lower-cased domain of a From value.
func senderDomain(from string) string {
	addr := from
	if parsed, err := mail.ParseAddress(from); err == nil {
		addr = parsed.Address
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(addr[at+1:], "<> "))
}

func saveCSVReports(c counter, dims []string, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, d := range dims {
		filePath := filepath.Join(dir, fmt.Sprintf("report_%s.csv", normalizeHeaderName(d)))
		file, err := os.Create(filePath)
		if err != nil {
			return err
		}

		writer := csv.NewWriter(file)
		if err := writer.Write([]string{"Value", "Count"}); err != nil {
			file.Close()
			return err
		}
		for _, p := range stats.Top(c[d], limit) {
			if err := writer.Write([]string{p.Key, strconv.Itoa(p.Value)}); err != nil {
				file.Close()
				return err
			}
		}

		writer.Flush()
		file.Close()

		if err := writer.Error(); err != nil {
			return err
		}
	}

	return nil
}

func normalizeHeaderName(header string) string {
	name := strings.ToLower(header)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}

func printFilterHits(w io.Writer, hits []filter.Hit) {
	for _, h := range hits {
		if h.Count > 0 {
			fmt.Fprintf(w, "  ✓ [%s] %s: %d hits\n", h.Kind, h.Pattern, h.Count)
		} else {
			fmt.Fprintf(w, "  ✗ [%s] %s: 0 hits\n", h.Kind, h.Pattern)
		}
	}
}
