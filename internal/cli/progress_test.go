package cli

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressReporterCounts(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressReporter(&buf)

	reporter.ItemProcessed("example", true)
	reporter.ItemProcessed("example", false)
	reporter.ItemProcessed("other", true)
	reporter.Finish()

	total, matched := reporter.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, matched)
}

func TestProgressReporterConcurrentUpdates(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressReporter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reporter.ItemProcessed("example", true)
		}()
	}
	wg.Wait()

	total, matched := reporter.Counts()
	assert.Equal(t, 50, total)
	assert.Equal(t, 50, matched)
}
