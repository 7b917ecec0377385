package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/liamcoop/modelcheck/rules"
)

const testRulesXML = `<Requirements>
  <Check CheckName="WindowPerformanceCheck" CheckType="CountOnly" FailureMessage="too many windows">
    <Filter Property="IsWindow" Condition="equals" Value="1"/>
  </Check>
  <Check CheckName="LevelLocationCheck" CheckType="AttributeEquality" FailureMessage="object on wrong level">
    <Filter Property="Level" Condition="equals" Value="L1"/>
  </Check>
</Requirements>`

func boolPtr(b bool) *bool { return &b }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	server, err := NewServer("") // in-memory stores
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return server
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestInlineValidate(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/validate", validateRequest{
		RulesXML: testRulesXML,
		Records: []map[string]any{
			{"Level": "L1", "IsWindow": true},
			{"Level": "L1", "IsWindow": true},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[validateResponse](t, rec)
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Results[0].Name != "WindowPerformanceCheck" || resp.Results[0].Status != rules.StatusFailed {
		t.Errorf("performance result = %+v", resp.Results[0])
	}
	if resp.Results[1].Name != "LevelLocationCheck" || resp.Results[1].Status != rules.StatusPassed {
		t.Errorf("location result = %+v", resp.Results[1])
	}
}

func TestInlineValidateMalformedXML(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/api/v1/validate", validateRequest{
		RulesXML: `<Requirements`,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRuleSetLifecycle(t *testing.T) {
	server := newTestServer(t)

	// Create
	rec := doJSON(t, server, http.MethodPost, "/api/v1/rulesets", rulesetRequest{
		Name:   "energy checks",
		XML:    testRulesXML,
		Active: boolPtr(true),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[rulesetResponse](t, rec)
	if created.ID == "" {
		t.Fatal("created ruleset has no ID")
	}

	// Get
	rec = doJSON(t, server, http.MethodGet, "/api/v1/rulesets/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decodeBody[rulesetResponse](t, rec)
	if got.XML != testRulesXML {
		t.Error("stored XML does not round-trip")
	}

	// Update with replacement XML invalidates the cached parse
	rec = doJSON(t, server, http.MethodPut, "/api/v1/rulesets/"+created.ID, rulesetRequest{
		Name:   "energy checks v2",
		XML:    `<Requirements/>`,
		Active: boolPtr(true),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Delete
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/rulesets/"+created.ID, nil)
	del := httptest.NewRecorder()
	server.ServeHTTP(del, req)
	if del.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", del.Code)
	}

	rec = doJSON(t, server, http.MethodGet, "/api/v1/rulesets/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

// A PUT is a partial update: fields left out of the request keep their
// stored values, including the active flag.
func TestUpdateRuleSetOmittedActiveIsKept(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/rulesets", rulesetRequest{
		Name:   "energy checks",
		XML:    testRulesXML,
		Active: boolPtr(true),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[rulesetResponse](t, rec)

	// Rename only; no active field in the body.
	rec = doJSON(t, server, http.MethodPut, "/api/v1/rulesets/"+created.ID, rulesetRequest{
		Name: "energy checks renamed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[rulesetResponse](t, rec)
	if !updated.Active {
		t.Error("ruleset deactivated by an update that never mentioned active")
	}

	// An explicit false still deactivates.
	rec = doJSON(t, server, http.MethodPut, "/api/v1/rulesets/"+created.ID, rulesetRequest{
		Active: boolPtr(false),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if decodeBody[rulesetResponse](t, rec).Active {
		t.Error("explicit active=false was ignored")
	}
}

func TestCreateRuleSetRejectsMalformedXML(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/api/v1/rulesets", rulesetRequest{
		Name: "broken",
		XML:  `<Requirements`,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRunValidationAgainstStoredRuleSet(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/rulesets", rulesetRequest{
		Name:   "energy checks",
		XML:    testRulesXML,
		Active: boolPtr(true),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decodeBody[rulesetResponse](t, rec)

	records := []map[string]any{
		{"Level": "L1", "IsWindow": false},
		{"Level": "L2", "IsWindow": false},
	}

	// Run twice: the second request is served from the parse cache and
	// must produce identical results.
	var runIDs []string
	for i := 0; i < 2; i++ {
		rec = doJSON(t, server, http.MethodPost, "/api/v1/rulesets/"+created.ID+"/validate", runRequest{Records: records})
		if rec.Code != http.StatusOK {
			t.Fatalf("run %d status = %d, body = %s", i, rec.Code, rec.Body.String())
		}
		resp := decodeBody[runResponse](t, rec)
		if len(resp.ValidationResults) != 2 {
			t.Fatalf("run %d: got %d results, want 2", i, len(resp.ValidationResults))
		}
		if resp.ValidationResults[0].Status != rules.StatusPassed {
			t.Errorf("run %d: performance result = %+v", i, resp.ValidationResults[0])
		}
		if resp.ValidationResults[1].Status != rules.StatusFailed {
			t.Errorf("run %d: location result = %+v", i, resp.ValidationResults[1])
		}
		runIDs = append(runIDs, resp.RunID)
	}

	// Each persisted run is retrievable by ID.
	for _, id := range runIDs {
		rec = doJSON(t, server, http.MethodGet, "/api/v1/runs/"+id, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("get run %s status = %d", id, rec.Code)
		}
		resp := decodeBody[runResponse](t, rec)
		if resp.RuleSetID != created.ID {
			t.Errorf("run %s rulesetId = %q, want %q", id, resp.RuleSetID, created.ID)
		}
	}

	// And listed under the ruleset.
	rec = doJSON(t, server, http.MethodGet, "/api/v1/rulesets/"+created.ID+"/runs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list runs status = %d", rec.Code)
	}
	list := decodeBody[map[string][]runResponse](t, rec)
	if len(list["runs"]) != 2 {
		t.Errorf("got %d runs, want 2", len(list["runs"]))
	}
}

func TestRunValidationUnknownRuleSet(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/api/v1/rulesets/does-not-exist/validate", runRequest{
		Records: []map[string]any{},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
