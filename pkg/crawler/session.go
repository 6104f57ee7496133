package crawler

import (
	"time"

	"igcrawler/pkg/feed"
)

// session is the state of one Collect call. It is owned by the round loop
// and never shared, so it carries no lock.
type session struct {
	runID  string
	target int
	mode   feed.Mode
	budget time.Duration

	items []feed.Item
	seen  map[string]struct{}

	interval time.Duration
	elapsed  time.Duration
	rounds   int
}

func newSession(runID string, target int, mode feed.Mode, budget, interval time.Duration) *session {
	return &session{
		runID:    runID,
		target:   target,
		mode:     mode,
		budget:   budget,
		seen:     make(map[string]struct{}, target),
		interval: interval,
	}
}

func (s *session) has(key string) bool {
	_, ok := s.seen[key]
	return ok
}

// accept records item unless its key was seen before
func (s *session) accept(item feed.Item) bool {
	if item.Key == "" || s.has(item.Key) {
		return false
	}
	s.seen[item.Key] = struct{}{}
	s.items = append(s.items, item)
	return true
}

func (s *session) done() bool {
	return len(s.items) >= s.target
}

// remaining is the wait budget not yet spent
func (s *session) remaining() time.Duration {
	if s.elapsed >= s.budget {
		return 0
	}
	return s.budget - s.elapsed
}

func (s *session) result(reason StopReason) *Result {
	items := s.items
	if len(items) > s.target {
		items = items[:s.target]
	}
	out := make([]feed.Item, len(items))
	copy(out, items)
	if s.mode == feed.FullDetail {
		feed.SortByTimestamp(out)
	}
	return &Result{
		Items:       out,
		Complete:    len(out) >= s.target,
		Reason:      reason,
		Rounds:      s.rounds,
		ElapsedWait: s.elapsed,
		RunID:       s.runID,
	}
}
