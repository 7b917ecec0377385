// Package store persists named rule documents and validation runs, and
// caches parsed rule sets so hot documents are not reparsed per request.
package store

import (
	"errors"
	"time"

	"github.com/liamcoop/modelcheck/rules"
)

// ErrNotFound is returned when a ruleset or run does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is returned when adding a ruleset whose ID already exists.
var ErrDuplicateID = errors.New("duplicate id")

// RuleSet is a stored rule document: the raw XML plus bookkeeping. The
// document is kept verbatim so a stored ruleset always reparses exactly as
// it was uploaded.
type RuleSet struct {
	ID        string
	Name      string
	XML       string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RuleSetStore manages rule document persistence and retrieval.
type RuleSetStore interface {
	// Add a new ruleset
	Add(rs *RuleSet) error

	// Get a ruleset by ID
	Get(id string) (*RuleSet, error)

	// List all active rulesets
	ListActive() ([]*RuleSet, error)

	// Update an existing ruleset
	Update(rs *RuleSet) error

	// Delete a ruleset
	Delete(id string) error
}

// Run is one persisted validation run: the ordered results of evaluating a
// stored ruleset against a record set, written once and never mutated.
type Run struct {
	ID        string
	RuleSetID string
	Results   []rules.CheckResult
	CreatedAt time.Time
}

// RunStore persists validation runs for downstream consumption.
type RunStore interface {
	// Save a completed run
	Save(run *Run) error

	// Get a run by ID
	Get(id string) (*Run, error)

	// ListByRuleSet returns all runs for a ruleset, newest first
	ListByRuleSet(rulesetID string) ([]*Run, error)
}
