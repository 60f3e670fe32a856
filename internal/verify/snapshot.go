package verify

import (
	"context"
	"sync"
	"time"

	"github.com/openfield/gatepass/internal/domain"
)

// Snapshot is a device-local copy of the attendee directory, downloaded in
// bulk while online. Refreshes replace the whole set; there is no
// incremental protocol.
type Snapshot struct {
	mu       sync.RWMutex
	entries  map[int64]domain.Attendee
	loadedAt time.Time
}

func NewSnapshot(attendees []domain.Attendee) *Snapshot {
	s := &Snapshot{}
	s.Replace(attendees)
	return s
}

// Replace swaps in a freshly downloaded attendee set wholesale.
func (s *Snapshot) Replace(attendees []domain.Attendee) {
	entries := make(map[int64]domain.Attendee, len(attendees))
	for _, a := range attendees {
		entries[a.ID] = a
	}

	s.mu.Lock()
	s.entries = entries
	s.loadedAt = time.Now()
	s.mu.Unlock()
}

// Lookup implements Directory. Never fails: a snapshot lookup is a map read.
func (s *Snapshot) Lookup(_ context.Context, entryID int64) (*domain.Attendee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.entries[entryID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Snapshot) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

var _ Directory = (*Snapshot)(nil)
