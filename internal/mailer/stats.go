package mailer

import (
	"sync"
	"time"
)

// stats tracks delivery counters shared by all requests.
// Guarded by a mutex; every completed instrumented send attempt lands in
// exactly one of the two counters.
type stats struct {
	mu          sync.Mutex
	totalSent   int64
	totalFailed int64
	lastSent    *time.Time
}

// StatsSnapshot is a point-in-time copy of the delivery counters.
// Counters reset to zero on process restart.
type StatsSnapshot struct {
	TotalSent   int64      `json:"total_sent"`
	TotalFailed int64      `json:"total_failed"`
	LastSent    *time.Time `json:"last_sent"`
}

func (s *stats) recordSuccess(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalSent++
	s.lastSent = &at
}

func (s *stats) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalFailed++
}

func (s *stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		TotalSent:   s.totalSent,
		TotalFailed: s.totalFailed,
	}
	if s.lastSent != nil {
		t := *s.lastSent
		snap.LastSent = &t
	}
	return snap
}
