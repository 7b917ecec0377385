package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRuleSetStore implements RuleSetStore backed by PostgreSQL.
type PostgresRuleSetStore struct {
	db *sql.DB
}

// NewPostgresRuleSetStore creates a PostgreSQL-backed ruleset store.
func NewPostgresRuleSetStore(db *sql.DB) *PostgresRuleSetStore {
	return &PostgresRuleSetStore{db: db}
}

// Add inserts a new ruleset.
func (s *PostgresRuleSetStore) Add(rs *RuleSet) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM rulesets WHERE id = $1)
	`, rs.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check ruleset existence: %w", err)
	}
	if exists {
		return fmt.Errorf("ruleset %s: %w", rs.ID, ErrDuplicateID)
	}

	now := time.Now()
	rs.CreatedAt = now
	rs.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO rulesets (id, name, xml, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rs.ID, rs.Name, rs.XML, rs.Active, rs.CreatedAt, rs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ruleset: %w", err)
	}

	return nil
}

// Get retrieves a ruleset by ID.
func (s *PostgresRuleSetStore) Get(id string) (*RuleSet, error) {
	var rs RuleSet
	err := s.db.QueryRow(`
		SELECT id, name, xml, active, created_at, updated_at
		FROM rulesets
		WHERE id = $1
	`, id).Scan(&rs.ID, &rs.Name, &rs.XML, &rs.Active, &rs.CreatedAt, &rs.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ruleset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ruleset: %w", err)
	}

	return &rs, nil
}

// ListActive returns all active rulesets ordered by creation time.
func (s *PostgresRuleSetStore) ListActive() ([]*RuleSet, error) {
	rows, err := s.db.Query(`
		SELECT id, name, xml, active, created_at, updated_at
		FROM rulesets
		WHERE active = true
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rulesets: %w", err)
	}
	defer rows.Close()

	var rulesets []*RuleSet
	for rows.Next() {
		var rs RuleSet
		if err := rows.Scan(&rs.ID, &rs.Name, &rs.XML, &rs.Active,
			&rs.CreatedAt, &rs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ruleset: %w", err)
		}
		rulesets = append(rulesets, &rs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rulesets: %w", err)
	}

	return rulesets, nil
}

// Update modifies an existing ruleset.
func (s *PostgresRuleSetStore) Update(rs *RuleSet) error {
	rs.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE rulesets
		SET name = $1, xml = $2, active = $3, updated_at = $4
		WHERE id = $5
	`, rs.Name, rs.XML, rs.Active, rs.UpdatedAt, rs.ID)
	if err != nil {
		return fmt.Errorf("failed to update ruleset: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ruleset %s: %w", rs.ID, ErrNotFound)
	}

	return nil
}

// Delete removes a ruleset and its runs.
func (s *PostgresRuleSetStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM rulesets
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ruleset: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ruleset %s: %w", id, ErrNotFound)
	}

	return nil
}

// PostgresRunStore implements RunStore backed by PostgreSQL. Results are
// stored as a JSONB array so their order survives round-tripping.
type PostgresRunStore struct {
	db *sql.DB
}

// NewPostgresRunStore creates a PostgreSQL-backed run store.
func NewPostgresRunStore(db *sql.DB) *PostgresRunStore {
	return &PostgresRunStore{db: db}
}

// Save inserts a completed run.
func (s *PostgresRunStore) Save(run *Run) error {
	payload, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	run.CreatedAt = time.Now()

	_, err = s.db.Exec(`
		INSERT INTO runs (id, ruleset_id, results, created_at)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.RuleSetID, payload, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID.
func (s *PostgresRunStore) Get(id string) (*Run, error) {
	var run Run
	var payload []byte
	err := s.db.QueryRow(`
		SELECT id, ruleset_id, results, created_at
		FROM runs
		WHERE id = $1
	`, id).Scan(&run.ID, &run.RuleSetID, &payload, &run.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if err := json.Unmarshal(payload, &run.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}

	return &run, nil
}

// ListByRuleSet returns a ruleset's runs, newest first.
func (s *PostgresRunStore) ListByRuleSet(rulesetID string) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT id, ruleset_id, results, created_at
		FROM runs
		WHERE ruleset_id = $1
		ORDER BY created_at DESC
	`, rulesetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var payload []byte
		if err := rows.Scan(&run.ID, &run.RuleSetID, &payload, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal(payload, &run.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}
