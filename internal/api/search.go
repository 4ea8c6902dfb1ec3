package api

import (
	"context"
	"sync"
	"time"

	"github.com/pmartins/studychat/internal/rest"
)

// DefaultSearchDebounce is the trailing-edge delay applied to directory
// queries so keystroke bursts collapse into one backend call.
const DefaultSearchDebounce = 300 * time.Millisecond

// UserSearcher queries the user directory.
type UserSearcher interface {
	SearchUsers(ctx context.Context, query string) ([]rest.UserSummary, error)
}

// Searcher debounces directory queries. Only the latest query in a burst
// reaches the backend, and only its results are delivered; superseded
// queries are dropped silently.
type Searcher struct {
	remote UserSearcher
	delay  time.Duration

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewSearcher creates a debounced searcher. A non-positive delay falls back
// to DefaultSearchDebounce.
func NewSearcher(remote UserSearcher, delay time.Duration) *Searcher {
	if delay <= 0 {
		delay = DefaultSearchDebounce
	}
	return &Searcher{remote: remote, delay: delay}
}

// Query schedules a directory search. deliver runs on a background goroutine
// after the debounce window closes, unless a newer Query or Cancel
// supersedes this one first.
func (s *Searcher) Query(ctx context.Context, query string, deliver func(results []rest.UserSummary, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		s.run(ctx, gen, query, deliver)
	})
}

// Cancel drops any pending query and invalidates in-flight results.
func (s *Searcher) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Searcher) run(ctx context.Context, gen uint64, query string, deliver func([]rest.UserSummary, error)) {
	if !s.current(gen) {
		return
	}
	results, err := s.remote.SearchUsers(ctx, query)
	// Re-check after the round trip: a newer query may have landed while
	// this one was in flight.
	if !s.current(gen) {
		return
	}
	deliver(results, err)
}

func (s *Searcher) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}
