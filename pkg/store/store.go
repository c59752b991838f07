// Package store holds the canonical in-memory message collection for the
// single active project. All writes funnel through Replace/Update, which
// carry the staleness guard: a mutation computed for a project that is no
// longer active is rejected wholesale, never partially applied.
package store

import (
	"sync"

	"taskchat/pkg/models"
)

type MessageStore struct {
	mu        sync.Mutex
	project   string
	messages  []models.Message
	watchers  map[uint64]chan struct{}
	nextWatch uint64
}

func New() *MessageStore {
	return &MessageStore{watchers: make(map[uint64]chan struct{})}
}

// Reset clears the store and makes project the active conversation. Any
// in-flight fetch for the previous project will be rejected when it tries
// to apply.
func (s *MessageStore) Reset(project string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = project
	s.messages = nil
	s.notifyLocked()
}

// Project returns the currently active project id ("" when none).
func (s *MessageStore) Project() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// Snapshot returns a copy of the current ordered view.
func (s *MessageStore) Snapshot() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Replace swaps in msgs as the new contents. It returns false, leaving the
// store untouched, when project is no longer the active project.
func (s *MessageStore) Replace(project string, msgs []models.Message) bool {
	return s.Update(project, func([]models.Message) []models.Message { return msgs })
}

// Update applies fn to the current contents and installs the result, all
// under one lock acquisition. fn receives a copy of the live contents at
// apply time (not at issue time), so interleaved mutations are never lost.
// Returns false without calling fn when project is not active.
func (s *MessageStore) Update(project string, fn func(prev []models.Message) []models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if project != s.project {
		return false
	}
	prev := make([]models.Message, len(s.messages))
	copy(prev, s.messages)
	s.messages = fn(prev)
	s.notifyLocked()
	return true
}

// Watch returns a channel that receives a coalesced signal after every
// applied mutation, plus a stop func that unregisters the watcher.
// Receivers re-read via Snapshot.
func (s *MessageStore) Watch() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextWatch
	s.nextWatch++
	ch := make(chan struct{}, 1)
	s.watchers[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *MessageStore) notifyLocked() {
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
