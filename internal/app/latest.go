package app

import (
	"sync"

	"github.com/relabs-tech/motion_sensors/internal/format"
	"github.com/relabs-tech/motion_sensors/internal/motion"
)

// ReadingView is a reading with its display text.
type ReadingView struct {
	Reading motion.Reading `json:"reading"`
	Text    [3]string      `json:"text"`
}

// LatestStore keeps the most recent reading of each category.
type LatestStore struct {
	mu       sync.RWMutex
	readings map[motion.Category]motion.Reading
}

func NewLatestStore() *LatestStore {
	return &LatestStore{readings: make(map[motion.Category]motion.Reading)}
}

// Deliver implements session.Sink.
func (s *LatestStore) Deliver(r motion.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[r.Category] = r
}

// Get returns the latest reading for c.
func (s *LatestStore) Get(c motion.Category) (motion.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.readings[c]
	return r, ok
}

// Clear forgets the readings of cats.
func (s *LatestStore) Clear(cats ...motion.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cats {
		delete(s.readings, c)
	}
}

// Views returns the latest reading of every category accepted by keep,
// formatted with p. A nil keep accepts all.
func (s *LatestStore) Views(p format.Precision, keep func(motion.Category) bool) map[motion.Category]ReadingView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[motion.Category]ReadingView, len(s.readings))
	for c, r := range s.readings {
		if keep != nil && !keep(c) {
			continue
		}
		out[c] = ReadingView{Reading: r, Text: format.Axes(r, p.For(c))}
	}
	return out
}
