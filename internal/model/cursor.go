package model

import "time"

// RunCursor marks how far into the current ordered item list a supplier run
// has progressed. Scoped per supplier per run.
type RunCursor struct {
	UpdatedAt          time.Time
	Supplier           string
	RunID              string
	LastProcessedIndex int
}

// Clamp resets the cursor to the start when the underlying item list has
// shrunk below the recorded position, which happens after a cache
// regeneration. Returns true if a reset occurred.
func (c *RunCursor) Clamp(listLen int) bool {
	if c.LastProcessedIndex > listLen {
		c.LastProcessedIndex = 0
		return true
	}
	return false
}
