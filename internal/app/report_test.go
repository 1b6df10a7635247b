package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-integrator/internal/config"
	"api-integrator/internal/mapping"
	"api-integrator/internal/orchestrator"
)

func sampleOutcome() *orchestrator.RunOutcome {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &orchestrator.RunOutcome{
		RunID:      "run-1",
		Mode:       orchestrator.ModeRun,
		Status:     orchestrator.StatusPartialFailure,
		StartedAt:  started,
		FinishedAt: started.Add(120 * time.Millisecond),
		Fetches: []orchestrator.FetchRecord{
			{Endpoint: "api2", Method: "POST", Path: "/get-user", Status: orchestrator.FetchOK, StatusCode: 200},
			{Endpoint: "api3", Method: "GET", Path: "/user", Status: orchestrator.FetchRejected, StatusCode: 500, Reason: "unexpected HTTP status 500"},
		},
		Rules: []orchestrator.RuleRecord{
			{Name: "api2-to-api1", Target: "api1", Method: "POST", Path: "/user", Status: orchestrator.RuleSent, StatusCode: 201},
			{Name: "api3-to-api2", Target: "api2", Method: "POST", Path: "/update-user", Status: orchestrator.RuleFailed, Reason: "unsatisfied dependency (api3 GET /user)"},
		},
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, config.FormatText, "run", sampleOutcome()))

	out := buf.String()
	assert.Contains(t, out, "Run run-1 (run): PARTIAL_FAILURE in 120ms")
	assert.Contains(t, out, "FETCHES")
	assert.Contains(t, out, "unexpected HTTP status 500")
	assert.Contains(t, out, "-> api2 POST /update-user")
	assert.Contains(t, out, "fetches: 1 OK, 1 REJECTED; rules: 1 FAILED, 1 SENT")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, config.FormatJSON, "run", sampleOutcome()))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "run-1", out["run_id"])
	assert.Equal(t, "PARTIAL_FAILURE", out["status"])
	assert.Equal(t, map[string]interface{}{
		"fetches": map[string]interface{}{"OK": float64(1), "REJECTED": float64(1)},
		"rules":   map[string]interface{}{"SENT": float64(1), "FAILED": float64(1)},
	}, out["summary"])
}

func TestRenderFetchFields(t *testing.T) {
	outcome := sampleOutcome()
	outcome.Mode = orchestrator.ModeFields
	outcome.Rules = nil
	outcome.Fetches[0].Fields = []mapping.FieldInfo{{Path: "email", Type: "string"}}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, config.FormatText, "fields", outcome))
	assert.Equal(t, "api2 POST /get-user (OK)\n  email  string\n\napi3 GET /user (REJECTED)\n  unexpected HTTP status 500\n", buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, config.FormatJSON, "fields", outcome))
	var reports []fieldsReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "api2 POST /get-user", reports[0].Fetch)
	assert.Empty(t, reports[1].Fields)
}

func TestRenderText_Sinks(t *testing.T) {
	outcome := sampleOutcome()
	outcome.Mode = orchestrator.ModeCheck
	outcome.Rules = nil
	outcome.Sinks = []orchestrator.SinkRecord{
		{Target: "api1", Method: "POST", Path: "/user", Status: orchestrator.SinkReachable, Attempt: "OPTIONS", StatusCode: 405},
		{Target: "api2", Method: "POST", Path: "/update-user", Status: orchestrator.SinkUnreachable, Reason: "request failed: connection refused"},
	}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, config.FormatText, "check", outcome))

	out := buf.String()
	assert.Contains(t, out, "SINKS")
	assert.Regexp(t, `REACHABLE\s+api1 POST /user\s+405\s+via OPTIONS`, out)
	assert.Regexp(t, `UNREACHABLE\s+api2 POST /update-user\s+-\s+request failed: connection refused`, out)
	assert.NotContains(t, out, "RULES")
	assert.Contains(t, out, "sinks: 1 REACHABLE, 1 UNREACHABLE")
}

func TestRenderText_SimulateListsPayloads(t *testing.T) {
	outcome := sampleOutcome()
	outcome.Mode = orchestrator.ModeSimulate
	outcome.Rules[0].Status = orchestrator.RulePlanned
	outcome.Rules[0].Payload = map[string]interface{}{"user_email": "a@b.com"}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, config.FormatText, "simulate", outcome))

	out := buf.String()
	assert.Contains(t, out, "(simulate)")
	assert.Contains(t, out, "RULES")
	assert.Contains(t, out, `payload {"user_email":"a@b.com"}`)
}

func TestCounts(t *testing.T) {
	assert.Equal(t, "none", counts(map[orchestrator.RuleStatus]int{}))
	assert.Equal(t, "2 FAILED, 1 SENT", counts(map[orchestrator.RuleStatus]int{
		orchestrator.RuleSent:   1,
		orchestrator.RuleFailed: 2,
	}))
}
