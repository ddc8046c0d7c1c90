package progress

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/dhcgn/patent-reminders/stats"
)

// Bar shows scan progress on the terminal. It implements stats.Observer.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	mu      sync.Mutex
	enabled bool
}

// New creates a new progress bar if logLevel is "info".
func New(total int, logLevel string) *Bar {
	enabled := logLevel == "info" && total > 0

	bar := &Bar{
		total:   total,
		enabled: enabled,
	}

	if enabled {
		pterm.Info.Printf("Messages to scan: %d\n", total)
		pterm.Println()

		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Scanning messages").
			Start()
		bar.pb = pb
	}

	return bar
}

// Observe advances the bar on every scanned message.
func (b *Bar) Observe(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeScanned:
		b.pb.Increment()
		if evt.Path != "" {
			name := filepath.Base(evt.Path)
			if r := []rune(name); len(r) > 40 {
				name = string(r[:37]) + "..."
			}
			b.pb.UpdateTitle("Scanning: " + name)
		}
	case stats.EventTypeDecodeError, stats.EventTypeError, stats.EventTypeAttachmentError:
		if evt.Err != nil {
			pterm.Warning.Printf("%s: %v\n", evt.Path, evt.Err)
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}

	b.pb.Stop()
	pterm.Success.Println("Scan complete!")
}

// PrintSummary renders the scan summary.
func PrintSummary(summary stats.Summary, duration time.Duration) {
	pterm.Println()
	pterm.DefaultSection.Println("Summary Statistics")
	pterm.Info.Printf("Duration: %v\n", duration.Round(time.Millisecond))
	pterm.Info.Printf("Scanned: %d\n", summary.Scanned)
	pterm.Info.Printf("Reminders: %d\n", summary.Reminders)
	pterm.Info.Printf("Certificates: %d\n", summary.Certificates)
	pterm.Info.Printf("Invoices: %d\n", summary.Invoices)
	pterm.Info.Printf("Notices: %d\n", summary.Notices)
	pterm.Info.Printf("Duplicates (skipped): %d\n", summary.Duplicates)
	pterm.Info.Printf("Filtered: %d\n", summary.Filtered)
	pterm.Info.Printf("Decode errors: %d\n", summary.DecodeErrors)
	pterm.Info.Printf("Attachment errors: %d\n", summary.AttachmentErrors)
	if summary.LastError != nil {
		pterm.Error.Printf("Last error: %v\n", summary.LastError)
	}
}
