package ui

import (
	"fmt"
	"time"
)

// DumpTracker reports batch dump progress, one conversation at a time.
// A nil tracker is valid and silent, so callers can wire it
// unconditionally.
type DumpTracker struct {
	total     int
	started   int
	dumped    int
	skipped   int
	failed    int
	startTime time.Time
}

// NewDumpTracker creates a tracker for a batch of total conversations
func NewDumpTracker(total int) *DumpTracker {
	return &DumpTracker{
		total:     total,
		startTime: time.Now(),
	}
}

// StartConversation announces the next conversation being dumped
func (dt *DumpTracker) StartConversation(name, id string) {
	if dt == nil {
		return
	}
	dt.started++
	if quiet {
		return
	}
	fmt.Printf("%s Dumping '%s' (%s) [%d/%d]\n",
		Cyan("[+]"), name, id, dt.started, dt.total)
}

// ConversationDumped records a persisted conversation
func (dt *DumpTracker) ConversationDumped(name string, records int) {
	if dt == nil {
		return
	}
	dt.dumped++
	if quiet {
		return
	}
	fmt.Printf("%s Dumped '%s': %d records\n", Green("[+]"), name, records)
}

// ConversationSkipped records a conversation the resumed run already had
func (dt *DumpTracker) ConversationSkipped(name string) {
	if dt == nil {
		return
	}
	dt.skipped++
	if quiet {
		return
	}
	fmt.Printf("%s Skipping '%s': already dumped in this run\n", Yellow("[+]"), name)
}

// ConversationFailed records a failed conversation. Failures print even
// in quiet mode.
func (dt *DumpTracker) ConversationFailed(name string, err error) {
	if dt == nil {
		return
	}
	dt.failed++
	fmt.Printf("%s Failed '%s': %v\n", Red("[-]"), name, err)
}

// GetElapsedTime returns the elapsed time since tracking started
func (dt *DumpTracker) GetElapsedTime() time.Duration {
	if dt == nil {
		return 0
	}
	return time.Since(dt.startTime)
}

// PrintSummary prints the batch totals with elapsed time
func (dt *DumpTracker) PrintSummary() {
	if dt == nil || quiet {
		return
	}
	elapsed := dt.GetElapsedTime().Round(time.Second)
	fmt.Printf("%s %d dumped, %d skipped, %d failed in %s\n",
		Cyan("[+]"), dt.dumped, dt.skipped, dt.failed, elapsed)
}
