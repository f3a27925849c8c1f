// Package store owns all subscription records. Every read or write goes
// through the Store so concurrent registration steps and poll snapshots
// never observe a half-written record.
package store

import "sync"

// State is the registration dialogue step a subscription is in.
type State int

const (
	// StateNone marks a cleared record (after /stop).
	StateNone State = iota
	StateAwaitingOrigin
	StateAwaitingDestination
	StateAwaitingDate
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateAwaitingOrigin:
		return "awaiting_origin"
	case StateAwaitingDestination:
		return "awaiting_destination"
	case StateAwaitingDate:
		return "awaiting_date"
	case StateSubscribed:
		return "subscribed"
	default:
		return "none"
	}
}

// Subscription is one user's registered search plus its dialogue progress.
// Origin, Destination and TravelDate fill in that order as State advances;
// TravelDate stays in Jalali display form.
type Subscription struct {
	ChatID      int64
	State       State
	Origin      string
	Destination string
	TravelDate  string
	Active      bool
}

// Complete reports whether the record is eligible for polling.
func (s Subscription) Complete() bool {
	return s.Active && s.State == StateSubscribed
}

type Store struct {
	mu   sync.RWMutex
	subs map[int64]Subscription
}

func New() *Store {
	return &Store{subs: map[int64]Subscription{}}
}

// Begin creates a fresh record for the chat, overwriting any previous
// registration in full.
func (s *Store) Begin(chatID int64) {
	s.mu.Lock()
	s.subs[chatID] = Subscription{
		ChatID: chatID,
		State:  StateAwaitingOrigin,
		Active: true,
	}
	s.mu.Unlock()
}

// Get returns a copy of the record for the chat.
func (s *Store) Get(chatID int64) (Subscription, bool) {
	s.mu.RLock()
	sub, ok := s.subs[chatID]
	s.mu.RUnlock()
	return sub, ok
}

// Update applies fn to the record under the store lock. It reports false
// when no record exists for the chat.
func (s *Store) Update(chatID int64, fn func(*Subscription)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[chatID]
	if !ok {
		return false
	}
	fn(&sub)
	s.subs[chatID] = sub
	return true
}

// Deactivate soft-deletes the record: inactive, fields reset, state
// cleared. A record is created if none exists so a later text from this
// chat stays inert.
func (s *Store) Deactivate(chatID int64) {
	s.mu.Lock()
	s.subs[chatID] = Subscription{ChatID: chatID, State: StateNone, Active: false}
	s.mu.Unlock()
}

// Snapshot returns copies of every active, fully specified subscription.
// Mutations after the snapshot do not affect the returned slice.
func (s *Store) Snapshot() []Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.Complete() {
			out = append(out, sub)
		}
	}
	return out
}

// Count returns the total number of records, including inactive ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
