package store

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryRuleSetStore implements RuleSetStore using an in-memory map.
// Thread-safe; intended for development and tests.
type InMemoryRuleSetStore struct {
	rulesets map[string]*RuleSet
	mu       sync.RWMutex
}

// NewInMemoryRuleSetStore creates an empty in-memory ruleset store.
func NewInMemoryRuleSetStore() *InMemoryRuleSetStore {
	return &InMemoryRuleSetStore{
		rulesets: make(map[string]*RuleSet),
	}
}

// Add stores a new ruleset, setting its timestamps.
func (s *InMemoryRuleSetStore) Add(rs *RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rulesets[rs.ID]; exists {
		return fmt.Errorf("ruleset %s: %w", rs.ID, ErrDuplicateID)
	}

	now := time.Now()
	rs.CreatedAt = now
	rs.UpdatedAt = now
	s.rulesets[rs.ID] = rs
	return nil
}

// Get retrieves a ruleset by ID.
func (s *InMemoryRuleSetStore) Get(id string) (*RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, exists := s.rulesets[id]
	if !exists {
		return nil, fmt.Errorf("ruleset %s: %w", id, ErrNotFound)
	}
	return rs, nil
}

// ListActive returns all active rulesets ordered by creation time.
func (s *InMemoryRuleSetStore) ListActive() ([]*RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*RuleSet
	for _, rs := range s.rulesets {
		if rs.Active {
			active = append(active, rs)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

// Update replaces an existing ruleset, preserving CreatedAt.
func (s *InMemoryRuleSetStore) Update(rs *RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rulesets[rs.ID]
	if !exists {
		return fmt.Errorf("ruleset %s: %w", rs.ID, ErrNotFound)
	}

	rs.CreatedAt = existing.CreatedAt
	rs.UpdatedAt = time.Now()
	s.rulesets[rs.ID] = rs
	return nil
}

// Delete removes a ruleset.
func (s *InMemoryRuleSetStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rulesets[id]; !exists {
		return fmt.Errorf("ruleset %s: %w", id, ErrNotFound)
	}

	delete(s.rulesets, id)
	return nil
}

// InMemoryRunStore implements RunStore using an in-memory map.
type InMemoryRunStore struct {
	runs map[string]*Run
	mu   sync.RWMutex
}

// NewInMemoryRunStore creates an empty in-memory run store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs: make(map[string]*Run),
	}
}

// Save stores a completed run, setting its timestamp.
func (s *InMemoryRunStore) Save(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s: %w", run.ID, ErrDuplicateID)
	}

	run.CreatedAt = time.Now()
	s.runs[run.ID] = run
	return nil
}

// Get retrieves a run by ID.
func (s *InMemoryRunStore) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, nil
}

// ListByRuleSet returns a ruleset's runs, newest first.
func (s *InMemoryRunStore) ListByRuleSet(rulesetID string) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*Run
	for _, run := range s.runs {
		if run.RuleSetID == rulesetID {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}
