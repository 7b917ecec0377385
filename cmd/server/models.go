package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/liamcoop/modelcheck/rules"
)

type validateRequest struct {
	RulesXML string           `json:"rulesXml"`
	Records  []map[string]any `json:"records"`
}

type validateResponse struct {
	Results []rules.CheckResult `json:"results"`
}

// rulesetRequest is used for both create and update. On update, zero-value
// fields mean "keep the stored value", so Active is a pointer to tell an
// explicit false apart from an omitted field.
type rulesetRequest struct {
	Name   string `json:"name"`
	XML    string `json:"xml"`
	Active *bool  `json:"active,omitempty"`
}

type rulesetResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	XML       string    `json:"xml,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type runRequest struct {
	Records []map[string]any `json:"records"`
}

type runResponse struct {
	RunID             string              `json:"runId"`
	RuleSetID         string              `json:"rulesetId"`
	ValidationResults []rules.CheckResult `json:"validation_results"`
	EvaluationTime    string              `json:"evaluationTime,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
}

// toRecords converts decoded JSON objects into the core's record type.
func toRecords(raw []map[string]any) []rules.Record {
	records := make([]rules.Record, 0, len(raw))
	for _, m := range raw {
		records = append(records, rules.Record(m))
	}
	return records
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
