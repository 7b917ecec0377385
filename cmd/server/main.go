package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/liamcoop/modelcheck/internal/logger"
	"github.com/liamcoop/modelcheck/rules"
	"github.com/liamcoop/modelcheck/store"
)

// Server exposes the validation core over HTTP. The core itself stays
// pure; fetching rulesets, logging results and persisting runs all happen
// here at the boundary.
type Server struct {
	db       *sql.DB // nil when running on in-memory stores
	engine   *rules.Engine
	rulesets store.RuleSetStore
	runs     store.RunStore
	cache    store.RuleSetCache
	router   *chi.Mux
}

// NewServer wires the engine, stores and routes. With an empty databaseURL
// the server runs entirely on in-memory stores.
func NewServer(databaseURL string) (*Server, error) {
	engine, err := rules.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	s := &Server{
		engine: engine,
		cache:  store.NewMemoryRuleSetCache(store.DefaultCacheConfig()),
	}

	if databaseURL == "" {
		s.rulesets = store.NewInMemoryRuleSetStore()
		s.runs = store.NewInMemoryRunStore()
	} else {
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		s.db = db
		s.rulesets = store.NewPostgresRuleSetStore(db)
		s.runs = store.NewPostgresRunStore(db)
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	// One-shot validation of inline rules and records
	r.Post("/api/v1/validate", s.handleValidate)

	r.Route("/api/v1/rulesets", func(r chi.Router) {
		r.Get("/", s.handleListRuleSets)
		r.Post("/", s.handleCreateRuleSet)

		r.Route("/{rulesetId}", func(r chi.Router) {
			r.Get("/", s.handleGetRuleSet)
			r.Put("/", s.handleUpdateRuleSet)
			r.Delete("/", s.handleDeleteRuleSet)

			r.Post("/validate", s.handleRunValidation)
			r.Get("/runs", s.handleListRuns)
		})
	})

	r.Get("/api/v1/runs/{runId}", s.handleGetRun)

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"totalRuns":    logger.TotalRuns.Load(),
		"checksPassed": logger.TotalPassedChecks.Load(),
		"checksFailed": logger.TotalFailedChecks.Load(),
	})
}

// Inline validation: rules XML and records in the request body, nothing
// persisted.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.RulesXML == "" {
		respondError(w, http.StatusBadRequest, "rulesXml is required", nil)
		return
	}

	results, err := s.engine.Run([]byte(req.RulesXML), toRecords(req.Records))
	if err != nil {
		respondError(w, http.StatusBadRequest, "rule file could not be parsed", err)
		return
	}

	logResults(results)
	respondJSON(w, http.StatusOK, validateResponse{Results: results})
}

func (s *Server) handleCreateRuleSet(w http.ResponseWriter, r *http.Request) {
	var req rulesetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" || req.XML == "" {
		respondError(w, http.StatusBadRequest, "name and xml are required", nil)
		return
	}

	// Reject documents that would fail every future validation call.
	if _, err := rules.ParseRuleSet([]byte(req.XML)); err != nil {
		respondError(w, http.StatusBadRequest, "rule file could not be parsed", err)
		return
	}

	rs := &store.RuleSet{
		ID:   uuid.NewString(),
		Name: req.Name,
		XML:  req.XML,
	}
	if req.Active != nil {
		rs.Active = *req.Active
	}
	if err := s.rulesets.Add(rs); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store ruleset", err)
		return
	}

	respondJSON(w, http.StatusCreated, rulesetResponse{
		ID:        rs.ID,
		Name:      rs.Name,
		Active:    rs.Active,
		CreatedAt: rs.CreatedAt,
		UpdatedAt: rs.UpdatedAt,
	})
}

func (s *Server) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	rulesets, err := s.rulesets.ListActive()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rulesets", err)
		return
	}

	out := make([]rulesetResponse, 0, len(rulesets))
	for _, rs := range rulesets {
		out = append(out, rulesetResponse{
			ID:        rs.ID,
			Name:      rs.Name,
			Active:    rs.Active,
			CreatedAt: rs.CreatedAt,
			UpdatedAt: rs.UpdatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"rulesets": out})
}

func (s *Server) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	rs, err := s.rulesets.Get(chi.URLParam(r, "rulesetId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "ruleset not found", err)
		return
	}

	respondJSON(w, http.StatusOK, rulesetResponse{
		ID:        rs.ID,
		Name:      rs.Name,
		XML:       rs.XML,
		Active:    rs.Active,
		CreatedAt: rs.CreatedAt,
		UpdatedAt: rs.UpdatedAt,
	})
}

func (s *Server) handleUpdateRuleSet(w http.ResponseWriter, r *http.Request) {
	rulesetID := chi.URLParam(r, "rulesetId")

	var req rulesetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.XML != "" {
		if _, err := rules.ParseRuleSet([]byte(req.XML)); err != nil {
			respondError(w, http.StatusBadRequest, "rule file could not be parsed", err)
			return
		}
	}

	rs, err := s.rulesets.Get(rulesetID)
	if err != nil {
		respondError(w, http.StatusNotFound, "ruleset not found", err)
		return
	}

	if req.Name != "" {
		rs.Name = req.Name
	}
	if req.XML != "" {
		rs.XML = req.XML
	}
	if req.Active != nil {
		rs.Active = *req.Active
	}

	if err := s.rulesets.Update(rs); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update ruleset", err)
		return
	}

	// The stored document changed; the old parse is stale.
	s.cache.Invalidate(rulesetID)

	respondJSON(w, http.StatusOK, rulesetResponse{
		ID:        rs.ID,
		Name:      rs.Name,
		Active:    rs.Active,
		CreatedAt: rs.CreatedAt,
		UpdatedAt: rs.UpdatedAt,
	})
}

func (s *Server) handleDeleteRuleSet(w http.ResponseWriter, r *http.Request) {
	rulesetID := chi.URLParam(r, "rulesetId")

	if err := s.rulesets.Delete(rulesetID); err != nil {
		respondError(w, http.StatusNotFound, "ruleset not found", err)
		return
	}
	s.cache.Invalidate(rulesetID)

	w.WriteHeader(http.StatusNoContent)
}

// Validation against a stored ruleset: cache-first parse, run the core,
// log every result, persist the run.
func (s *Server) handleRunValidation(w http.ResponseWriter, r *http.Request) {
	rulesetID := chi.URLParam(r, "rulesetId")

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Records == nil {
		respondError(w, http.StatusBadRequest, "records are required", nil)
		return
	}

	parsed := s.cache.Get(rulesetID)
	if parsed == nil {
		rs, err := s.rulesets.Get(rulesetID)
		if err != nil {
			respondError(w, http.StatusNotFound, "ruleset not found", err)
			return
		}
		parsed, err = rules.ParseRuleSet([]byte(rs.XML))
		if err != nil {
			// Stored documents are parse-checked on write, so this
			// means the document was corrupted after the fact.
			respondError(w, http.StatusInternalServerError, "stored rule file could not be parsed", err)
			return
		}
		s.cache.Set(rulesetID, parsed)
	}

	startTime := time.Now()
	results := s.engine.RunRuleSet(parsed, toRecords(req.Records))
	evaluationTime := time.Since(startTime)

	logResults(results)
	logger.TotalRuns.Add(1)

	run := &store.Run{
		ID:        uuid.NewString(),
		RuleSetID: rulesetID,
		Results:   results,
	}
	if err := s.runs.Save(run); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to persist run", err)
		return
	}

	respondJSON(w, http.StatusOK, runResponse{
		RunID:             run.ID,
		RuleSetID:         rulesetID,
		ValidationResults: results,
		EvaluationTime:    evaluationTime.String(),
		CreatedAt:         run.CreatedAt,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(chi.URLParam(r, "runId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found", err)
		return
	}

	respondJSON(w, http.StatusOK, runResponse{
		RunID:             run.ID,
		RuleSetID:         run.RuleSetID,
		ValidationResults: run.Results,
		CreatedAt:         run.CreatedAt,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.ListByRuleSet(chi.URLParam(r, "rulesetId"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			RunID:             run.ID,
			RuleSetID:         run.RuleSetID,
			ValidationResults: run.Results,
			CreatedAt:         run.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// logResults emits one log entry per result: failures on the error
// channel with the rule's message, passes on the info channel.
func logResults(results []rules.CheckResult) {
	for _, result := range results {
		if result.Status == rules.StatusFailed {
			logger.CheckFailed(result.Name, result.Message)
		} else {
			logger.CheckPassed(result.Name)
		}
	}
}

func main() {
	server, err := NewServer(os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	if server.db != nil {
		defer server.db.Close()
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}
}
