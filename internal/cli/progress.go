package cli

import (
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// ProgressReporter renders a live item counter during an extraction run.
// The item total is not known ahead of time, so it renders as a spinner
// with a running count.
type ProgressReporter struct {
	bar     *progressbar.ProgressBar
	mu      sync.Mutex
	matched int
	total   int
}

// NewProgressReporter creates a progress reporter writing to writer, or
// stdout when nil.
func NewProgressReporter(writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = os.Stdout
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Matching items...[reset]"),
		progressbar.OptionSpinnerType(14),
	)
	return &ProgressReporter{bar: bar}
}

// ItemProcessed records one completed item.
func (p *ProgressReporter) ItemProcessed(_ string, matched bool) {
	p.mu.Lock()
	p.total++
	if matched {
		p.matched++
	}
	p.mu.Unlock()
	_ = p.bar.Add(1)
}

// Counts returns how many items completed and how many of them matched.
func (p *ProgressReporter) Counts() (total, matched int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total, p.matched
}

// Finish clears the spinner line.
func (p *ProgressReporter) Finish() {
	_ = p.bar.Finish()
}
