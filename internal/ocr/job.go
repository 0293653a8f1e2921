package ocr

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// FileResult records the outcome for one image.
type FileResult struct {
	Filename   string
	ResultPath string // relative to the results directory, empty on failure
	Repaired   bool   // payload needed structural repair
	Duration   time.Duration
	Err        error
}

// Job tracks the progress of one directory transcription run. Counter reads
// are safe from any goroutine while the runner works.
type Job struct {
	ID        string
	StartedAt time.Time

	processed atomic.Int64
	total     atomic.Int64
	done      atomic.Bool

	mu      sync.Mutex
	results []FileResult
}

func newJob(total int) *Job {
	j := &Job{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}
	j.total.Store(int64(total))
	return j
}

// Progress reports the counters and a completion percentage.
func (j *Job) Progress() (processed, total, percent int) {
	processed = int(j.processed.Load())
	total = int(j.total.Load())
	if total > 0 {
		percent = processed * 100 / total
	}
	return processed, total, percent
}

// Done reports whether the run has finished, successfully or not.
func (j *Job) Done() bool {
	return j.done.Load()
}

// Results returns a copy of the per-file outcomes recorded so far.
func (j *Job) Results() []FileResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]FileResult, len(j.results))
	copy(out, j.results)
	return out
}

// SuccessCount returns the number of images transcribed without error.
func (j *Job) SuccessCount() int {
	count := 0
	for _, r := range j.Results() {
		if r.Err == nil {
			count++
		}
	}
	return count
}

func (j *Job) record(result FileResult) {
	j.mu.Lock()
	j.results = append(j.results, result)
	j.mu.Unlock()
	j.processed.Add(1)
}
