package services

import (
	"sync"
	"time"

	"tally/internal/core"
)

// Snapshot is the reconciled ledger state produced by one cycle.
type Snapshot struct {
	Seq      uint64
	TakenAt  time.Time
	Expenses []core.Transaction
	Incomes  []core.Transaction
	Budgets  []core.Budget
	Rules    []core.RecurringRule
	Settings core.NotificationSettings
	Balance  core.Balance
	Events   []core.AlertEvent // raised by the cycle that produced the snapshot
}

// Failure is the non-fatal notice recorded when a cycle persists nothing.
type Failure struct {
	Seq uint64
	At  time.Time
	Err error
}

// StateStore holds the latest committed snapshot and fans it out to
// subscribers. Views read from here instead of loading the store themselves.
type StateStore struct {
	mu      sync.RWMutex
	latest  *Snapshot
	failure *Failure
	subs    map[int]chan *Snapshot
	nextSub int
}

func NewStateStore() *StateStore {
	return &StateStore{subs: map[int]chan *Snapshot{}}
}

// Publish stores snap unless a snapshot with a higher or equal sequence was
// already published. It reports whether snap was accepted. Subscribers that
// are not keeping up miss intermediate snapshots and always see the newest.
func (s *StateStore) Publish(snap *Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap == nil || (s.latest != nil && snap.Seq <= s.latest.Seq) {
		return false
	}
	s.latest = snap
	if s.failure != nil && s.failure.Seq < snap.Seq {
		s.failure = nil
	}
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale queued snapshot and offer the new one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	return true
}

// Latest returns the last published snapshot, or nil before the first cycle.
func (s *StateStore) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Subscribe returns a channel receiving each published snapshot and a
// function that cancels the subscription and closes the channel.
func (s *StateStore) Subscribe() (<-chan *Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan *Snapshot, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// RecordFailure keeps the latest failure notice. Older notices are ignored.
func (s *StateStore) RecordFailure(f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil && f.Seq < s.failure.Seq {
		return
	}
	s.failure = &f
}

// LastFailure returns the failure notice newer than the latest snapshot, if
// any.
func (s *StateStore) LastFailure() *Failure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure
}
