package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay renders a single-line download status for one
// conversation's artifacts. In verbose mode it prints one line per
// artifact instead.
type ProgressDisplay struct {
	mu            sync.Mutex
	conversation  string
	total         int
	downloaded    int
	skipped       int
	errors        int
	currentFile   string
	startTime     time.Time
	bytesReceived int64
	verbose       bool
}

// NewProgressDisplay creates a progress display for total artifacts
func NewProgressDisplay(conversation string, total int, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		conversation: conversation,
		total:        total,
		startTime:    time.Now(),
		verbose:      verbose,
	}
}

// StartDownload marks the start of a new download
func (p *ProgressDisplay) StartDownload(filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.currentFile = filename

	if !p.verbose {
		p.printProgress()
	}
}

// CompleteDownload marks a download as complete
func (p *ProgressDisplay) CompleteDownload(kind, filename string, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.downloaded++
	p.bytesReceived += size

	if p.verbose {
		if !quiet {
			fmt.Printf("%s %s/%s %s %s\n", Green("[+]"), kind, filename,
				Dim("•"), p.formatBytes(size))
		}
	} else {
		p.printProgress()
	}
}

// SkipDownload marks an artifact already on disk
func (p *ProgressDisplay) SkipDownload(filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipped++

	if p.verbose {
		if !quiet {
			fmt.Printf("%s %s %s\n", Yellow("[=]"), filename, Dim("already downloaded"))
		}
	} else {
		p.printProgress()
	}
}

// FailDownload marks a download as failed
func (p *ProgressDisplay) FailDownload(filename string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errors++

	if p.verbose {
		fmt.Printf("%s %s %s %v\n", Red("[-]"), filename, Dim("•"), err)
	} else {
		p.printProgress()
	}
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	if quiet || p.total == 0 {
		return
	}

	processed := p.downloaded + p.skipped + p.errors
	progress := float64(processed) / float64(p.total)
	barWidth := 20
	filled := int(progress * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	elapsed := time.Since(p.startTime)
	rate := float64(processed) / elapsed.Minutes()

	line := fmt.Sprintf("\r%s [%s] %d/%d • %.1f/min • %s • %s",
		Cyan(p.conversation),
		bar,
		processed,
		p.total,
		rate,
		p.formatBytes(p.bytesReceived),
		p.calculateETA(),
	)

	if p.currentFile != "" {
		line += fmt.Sprintf(" • %s", p.currentFile)
	}

	if p.errors > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.errors)))
	}

	fmt.Printf("\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete prints the closing summary for the conversation
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if quiet {
		return
	}

	elapsed := time.Since(p.startTime)

	fmt.Printf("\n%s Downloaded %d artifacts for '%s'\n",
		Green("[+]"),
		p.downloaded,
		p.conversation,
	)

	fmt.Printf("  %s %s in %s\n",
		Dim("•"),
		p.formatBytes(p.bytesReceived),
		p.formatDuration(elapsed),
	)

	if p.skipped > 0 {
		fmt.Printf("  %s %d already on disk\n", Dim("•"), p.skipped)
	}

	if p.errors > 0 {
		fmt.Printf("  %s %d downloads failed\n", Dim("•"), p.errors)
	}
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA() string {
	processed := p.downloaded + p.skipped + p.errors
	if processed == 0 {
		return "calculating..."
	}

	remaining := p.total - processed
	elapsed := time.Since(p.startTime)
	rate := float64(processed) / elapsed.Seconds()

	if rate == 0 {
		return "calculating..."
	}

	etaSeconds := float64(remaining) / rate
	eta := time.Duration(etaSeconds) * time.Second

	return p.formatDuration(eta)
}

// formatDuration formats a duration in a human-readable way
func (p *ProgressDisplay) formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatBytes formats bytes in a human-readable way
func (p *ProgressDisplay) formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
