package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/source"
)

func TestValidate(t *testing.T) {
	endpoints := []source.Endpoint{
		{Name: "api1", BaseURL: "http://localhost:8081"},
		{Name: "api3", BaseURL: "http://localhost:8083"},
	}
	valid := Rule{
		Name:     "ok",
		Fetch:    FetchSpec{Source: "api3", Path: "/user"},
		Mappings: []FieldMapping{{From: "firstname", To: "first_name"}},
		Send:     SendSpec{Target: "api1", Path: "/user"},
	}

	tests := []struct {
		name      string
		endpoints []source.Endpoint
		mutate    func(r *Rule)
		extra     []Rule
		wantErr   string
	}{
		{
			name: "valid",
		},
		{
			name:    "unknown fetch source",
			mutate:  func(r *Rule) { r.Fetch.Source = "api9" },
			wantErr: `rule "ok" fetch: unknown endpoint "api9"`,
		},
		{
			name:    "unknown send target",
			mutate:  func(r *Rule) { r.Send.Target = "api9" },
			wantErr: `rule "ok" send: unknown endpoint "api9"`,
		},
		{
			name:    "missing send target",
			mutate:  func(r *Rule) { r.Send.Target = "" },
			wantErr: `rule "ok" send: endpoint is required`,
		},
		{
			name: "unknown mapping override",
			mutate: func(r *Rule) {
				r.Mappings[0].Fetch = &FetchSpec{Source: "api9"}
			},
			wantErr: `rule "ok" mapping #1 fetch: unknown endpoint "api9"`,
		},
		{
			name:    "empty target field",
			mutate:  func(r *Rule) { r.Mappings[0].To = "" },
			wantErr: "target field is required",
		},
		{
			name: "duplicate target field",
			mutate: func(r *Rule) {
				r.Mappings = append(r.Mappings, FieldMapping{From: "lastname", To: "first_name"})
			},
			wantErr: `duplicate target field "first_name"`,
		},
		{
			name:    "malformed path",
			mutate:  func(r *Rule) { r.Mappings[0].From = "a..b" },
			wantErr: `malformed source path "a..b"`,
		},
		{
			name:    "duplicate rule",
			extra:   []Rule{{Name: "ok", Fetch: FetchSpec{Source: "api3"}, Send: SendSpec{Target: "api1"}}},
			wantErr: `duplicate rule "ok"`,
		},
		{
			name:    "unnamed rule",
			extra:   []Rule{{Fetch: FetchSpec{Source: "api3"}, Send: SendSpec{Target: "api1"}}},
			wantErr: "rule #2 has no name",
		},
		{
			name: "duplicate endpoint",
			endpoints: append(append([]source.Endpoint(nil), endpoints...),
				source.Endpoint{Name: "api1", BaseURL: "http://other"}),
			wantErr: `duplicate endpoint "api1"`,
		},
		{
			name: "malformed base URL",
			endpoints: []source.Endpoint{
				{Name: "api1", BaseURL: "localhost:8081"},
				{Name: "api3", BaseURL: "http://localhost:8083"},
			},
			wantErr: `endpoint "api1"`,
		},
		{
			name: "negative rate limit",
			endpoints: []source.Endpoint{
				{Name: "api1", BaseURL: "http://localhost:8081", RateLimit: &source.RateLimit{RequestsPerSecond: -1}},
				{Name: "api3", BaseURL: "http://localhost:8083"},
			},
			wantErr: "rate limit must not be negative",
		},
		{
			name:    "unserialisable body",
			mutate:  func(r *Rule) { r.Fetch.Body = map[string]interface{}{"f": make(chan int)} },
			wantErr: "body is not JSON-serializable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid
			rule.Mappings = append([]FieldMapping(nil), valid.Mappings...)
			if tt.mutate != nil {
				tt.mutate(&rule)
			}
			eps := endpoints
			if tt.endpoints != nil {
				eps = tt.endpoints
			}

			err := Validate(eps, append([]Rule{rule}, tt.extra...))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	err := Validate(
		[]source.Endpoint{{Name: "api1", BaseURL: "http://localhost:8081"}},
		[]Rule{
			{Name: "a", Fetch: FetchSpec{Source: "x"}, Send: SendSpec{Target: "api1"}},
			{Name: "b", Fetch: FetchSpec{Source: "api1"}, Send: SendSpec{Target: "y"}},
		},
	)

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, 2, appErr.Context["problems"])
	assert.Contains(t, appErr.Message, `unknown endpoint "x"`)
	assert.Contains(t, appErr.Message, `unknown endpoint "y"`)
}
