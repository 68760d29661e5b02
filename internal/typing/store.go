package typing

import "time"

// Entry is one user typing in one scope.
type Entry struct {
	UserID      string
	DisplayName string
	StartedAt   time.Time
	// OccurredAt is the sender's timestamp, zero when the transport had none.
	OccurredAt time.Time
}

type scopeState struct {
	order   []string
	entries map[string]Entry
}

// Store maps scopes to their typing users in the order they started.
// It is not safe for concurrent use; Tracker guards it.
type Store struct {
	scopes map[ScopeKey]*scopeState
}

func NewStore() *Store {
	return &Store{scopes: make(map[ScopeKey]*scopeState)}
}

// Upsert inserts e at the end of the scope's order, or refreshes the
// existing entry in place. It reports whether a new entry was created.
func (s *Store) Upsert(scope ScopeKey, e Entry) bool {
	st, ok := s.scopes[scope]
	if !ok {
		st = &scopeState{entries: make(map[string]Entry)}
		s.scopes[scope] = st
	}

	if _, exists := st.entries[e.UserID]; exists {
		st.entries[e.UserID] = e
		return false
	}

	st.entries[e.UserID] = e
	st.order = append(st.order, e.UserID)
	return true
}

// Remove deletes the user's entry. Removing an absent entry is a no-op.
func (s *Store) Remove(scope ScopeKey, userID string) bool {
	st, ok := s.scopes[scope]
	if !ok {
		return false
	}
	if _, exists := st.entries[userID]; !exists {
		return false
	}

	delete(st.entries, userID)
	for i, id := range st.order {
		if id == userID {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}

	if len(st.order) == 0 {
		delete(s.scopes, scope)
	}
	return true
}

// Get returns the user's entry in scope, if any.
func (s *Store) Get(scope ScopeKey, userID string) (Entry, bool) {
	st, ok := s.scopes[scope]
	if !ok {
		return Entry{}, false
	}
	e, ok := st.entries[userID]
	return e, ok
}

// Ordered returns a copy of the scope's entries, oldest first.
func (s *Store) Ordered(scope ScopeKey) []Entry {
	st, ok := s.scopes[scope]
	if !ok {
		return []Entry{}
	}
	out := make([]Entry, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, st.entries[id])
	}
	return out
}

// DisplayNames returns the scope's display names, oldest first.
func (s *Store) DisplayNames(scope ScopeKey) []string {
	entries := s.Ordered(scope)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.DisplayName
	}
	return names
}

// Scopes returns the keys of every non-empty scope, in no particular order.
func (s *Store) Scopes() []ScopeKey {
	keys := make([]ScopeKey, 0, len(s.scopes))
	for k := range s.scopes {
		keys = append(keys, k)
	}
	return keys
}

// Reset drops every scope.
func (s *Store) Reset() {
	s.scopes = make(map[ScopeKey]*scopeState)
}
