//go:build integration
// +build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/lib/pq"

	"github.com/liamcoop/modelcheck/rules"
	"github.com/liamcoop/modelcheck/store"
)

// setupTestDB starts a PostgreSQL container, applies the initial schema
// and returns an open connection plus a cleanup func.
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "modelcheck_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=modelcheck_test sslmode=disable", host, port.Port())

	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_initial_schema.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to apply migration: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	}
	return db, cleanup
}

func TestPostgresRuleSetStoreCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	s := store.NewPostgresRuleSetStore(db)

	rs := &store.RuleSet{
		ID:     uuid.NewString(),
		Name:   "energy checks",
		XML:    `<Requirements><Check CheckName="WindowPerformanceCheck" CheckType="CountOnly"><Filter Property="IsWindow" Value="10"/></Check></Requirements>`,
		Active: true,
	}
	if err := s.Add(rs); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := s.Add(rs); !errors.Is(err, store.ErrDuplicateID) {
		t.Errorf("duplicate Add() = %v, want ErrDuplicateID", err)
	}

	got, err := s.Get(rs.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != rs.Name || got.XML != rs.XML || !got.Active {
		t.Errorf("retrieved ruleset = %+v", got)
	}

	// A stored document must reparse exactly as uploaded.
	parsed, err := rules.ParseRuleSet([]byte(got.XML))
	if err != nil {
		t.Fatalf("stored XML failed to parse: %v", err)
	}
	if len(parsed.Rules(rules.CategoryPerformance)) != 1 {
		t.Error("stored XML lost its checks")
	}

	got.Name = "renamed"
	got.Active = false
	if err := s.Update(got); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	active, err := s.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("ListActive() = %d rulesets, want 0 after deactivation", len(active))
	}

	if err := s.Delete(rs.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := s.Get(rs.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after Delete() = %v, want ErrNotFound", err)
	}
}

func TestPostgresRunStoreRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	rulesets := store.NewPostgresRuleSetStore(db)
	runs := store.NewPostgresRunStore(db)

	rs := &store.RuleSet{ID: uuid.NewString(), Name: "checks", XML: `<Requirements/>`, Active: true}
	if err := rulesets.Add(rs); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	count := 12
	run := &store.Run{
		ID:        uuid.NewString(),
		RuleSetID: rs.ID,
		Results: []rules.CheckResult{
			{Name: "WindowPerformanceCheck", Status: rules.StatusFailed, Message: "too many windows", Result: &count},
			{Name: "LevelLocationCheck", Status: rules.StatusPassed},
		},
	}
	if err := runs.Save(run); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := runs.Get(run.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if len(got.Results) != 2 {
		t.Fatalf("Results = %d, want 2", len(got.Results))
	}
	if got.Results[0].Name != "WindowPerformanceCheck" {
		t.Errorf("result order not preserved: %+v", got.Results)
	}
	if got.Results[0].Result == nil || *got.Results[0].Result != 12 {
		t.Errorf("count did not survive the JSONB round trip: %+v", got.Results[0])
	}

	byRuleset, err := runs.ListByRuleSet(rs.ID)
	if err != nil {
		t.Fatalf("ListByRuleSet() failed: %v", err)
	}
	if len(byRuleset) != 1 {
		t.Errorf("got %d runs, want 1", len(byRuleset))
	}
}
