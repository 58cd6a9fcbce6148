package batch

import "time"

// Stats accumulates per-run counters. Counters are zeroed at the start of
// every run, including resumed runs; they describe this run, not the file.
type Stats struct {
	Attempted int // rows where a lookup was attempted (cache or provider)
	Succeeded int
	Failed    int
	Skipped   int // rows with no usable address
	CacheHits int

	StartedAt time.Time
	Elapsed   time.Duration
}

// Processed returns the number of rows this run has fully handled.
func (s *Stats) Processed() int {
	return s.Succeeded + s.Failed + s.Skipped
}

// Rate returns processed rows per second.
func (s *Stats) Rate() float64 {
	elapsed := s.Elapsed
	if elapsed == 0 {
		elapsed = time.Since(s.StartedAt)
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(s.Processed()) / elapsed.Seconds()
}
