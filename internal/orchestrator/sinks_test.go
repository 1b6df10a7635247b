package orchestrator_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/orchestrator"
	"api-integrator/internal/source"
	"api-integrator/internal/testutil"
)

func TestRun_CheckModeReportsSinks(t *testing.T) {
	apis := testutil.NewDemoAPIs(t, api1User, api2User, api3User)
	o := newDemoOrchestrator(t, apis)

	outcome := o.Run(context.Background(), orchestrator.ModeCheck)

	assert.Equal(t, orchestrator.StatusSuccess, outcome.Status)
	require.Len(t, outcome.Sinks, 2)

	api1 := outcome.Sinks[0]
	assert.Equal(t, "api1 POST /user", api1.Label())
	assert.Equal(t, orchestrator.SinkReachable, api1.Status)
	assert.Equal(t, http.MethodOptions, api1.Attempt)
	assert.Equal(t, []string{testutil.RuleAPI2ToAPI1, testutil.RuleAPI3ToAPI1}, api1.Rules)

	api2 := outcome.Sinks[1]
	assert.Equal(t, "api2 POST /update-user", api2.Label())
	assert.Equal(t, orchestrator.SinkReachable, api2.Status)

	assert.Zero(t, apis.API1.Calls(http.MethodPost, "/user"))
	assert.Zero(t, apis.API2.Calls(http.MethodPost, "/update-user"))
	assert.Equal(t, map[orchestrator.SinkStatus]int{orchestrator.SinkReachable: 2}, outcome.Summarize().Sinks)
}

func TestRun_CheckModeSinkAttempts(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		failures    map[string]error
		wantStatus  orchestrator.SinkStatus
		wantAttempt string
		wantCode    int
		wantCalls   []string
		wantBody    interface{}
	}{
		{
			name:        "options answers",
			method:      http.MethodPost,
			wantStatus:  orchestrator.SinkReachable,
			wantAttempt: http.MethodOptions,
			wantCode:    http.StatusCreated,
			wantCalls:   []string{http.MethodOptions},
		},
		{
			name:        "rejection still reachable",
			method:      http.MethodPost,
			failures:    map[string]error{http.MethodOptions: testutil.Rejected(http.StatusMethodNotAllowed)},
			wantStatus:  orchestrator.SinkReachable,
			wantAttempt: http.MethodOptions,
			wantCode:    http.StatusMethodNotAllowed,
			wantCalls:   []string{http.MethodOptions},
		},
		{
			name:        "falls back to head",
			method:      http.MethodPost,
			failures:    map[string]error{http.MethodOptions: testutil.ErrConnectionRefused},
			wantStatus:  orchestrator.SinkReachable,
			wantAttempt: http.MethodHead,
			wantCode:    http.StatusCreated,
			wantCalls:   []string{http.MethodOptions, http.MethodHead},
		},
		{
			name:   "falls back to configured method with empty object",
			method: http.MethodPut,
			failures: map[string]error{
				http.MethodOptions: testutil.ErrConnectionRefused,
				http.MethodHead:    testutil.ErrConnectionRefused,
			},
			wantStatus:  orchestrator.SinkReachable,
			wantAttempt: http.MethodPut,
			wantCode:    http.StatusCreated,
			wantCalls:   []string{http.MethodOptions, http.MethodHead, http.MethodPut},
			wantBody:    map[string]interface{}{},
		},
		{
			name:   "unreachable",
			method: http.MethodPost,
			failures: map[string]error{
				http.MethodOptions: testutil.ErrConnectionRefused,
				http.MethodHead:    testutil.ErrConnectionRefused,
				http.MethodPost:    testutil.ErrConnectionRefused,
			},
			wantStatus: orchestrator.SinkUnreachable,
			wantCalls:  []string{http.MethodOptions, http.MethodHead, http.MethodPost},
			wantBody:   map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := testutil.NewMockCaller().Respond("src", http.MethodGet, "/", map[string]interface{}{"a": "x"})
			for method, err := range tt.failures {
				caller.Fail("dst", method, "/in", err)
			}

			rule := testutil.NewRuleBuilder("r", "src", "dst").
				WithMapping("a", "a").
				WithSend(tt.method, "/in").
				Build()

			o, err := orchestrator.New([]source.Endpoint{
				testutil.NewEndpointBuilder("src", "http://src.test").Build(),
				testutil.NewEndpointBuilder("dst", "http://dst.test").Build(),
			}, []orchestrator.Rule{rule}, caller, orchestrator.WithLogger(testutil.QuietLogger()))
			require.NoError(t, err)

			outcome := o.Run(context.Background(), orchestrator.ModeCheck)
			require.Len(t, outcome.Sinks, 1)

			sink := outcome.Sinks[0]
			assert.Equal(t, tt.wantStatus, sink.Status)
			assert.Equal(t, tt.wantAttempt, sink.Attempt)
			assert.Equal(t, tt.wantCode, sink.StatusCode)
			assert.Equal(t, tt.method, sink.Method)

			var methods []string
			var lastBody interface{}
			for _, c := range caller.Calls() {
				if c.Endpoint == "dst" {
					methods = append(methods, c.Method)
					lastBody = c.Body
				}
			}
			assert.Equal(t, tt.wantCalls, methods)
			assert.Equal(t, tt.wantBody, lastBody)

			if tt.wantStatus == orchestrator.SinkUnreachable {
				assert.Equal(t, orchestrator.StatusPartialFailure, outcome.Status)
				assert.Equal(t, errors.ErrTypeTransport, sink.ErrorType)
				assert.Contains(t, sink.Reason, "connection refused")
			} else {
				assert.Equal(t, orchestrator.StatusSuccess, outcome.Status)
			}
		})
	}
}

func TestRun_FieldsModeSkipsSinks(t *testing.T) {
	caller := testutil.NewMockCaller().Respond("src", http.MethodGet, "/", map[string]interface{}{"a": "x"})
	rule := testutil.NewRuleBuilder("r", "src", "dst").WithMapping("a", "a").Build()

	o, err := orchestrator.New([]source.Endpoint{
		testutil.NewEndpointBuilder("src", "http://src.test").Build(),
		testutil.NewEndpointBuilder("dst", "http://dst.test").Build(),
	}, []orchestrator.Rule{rule}, caller, orchestrator.WithLogger(testutil.QuietLogger()))
	require.NoError(t, err)

	outcome := o.Run(context.Background(), orchestrator.ModeFields)

	assert.Empty(t, outcome.Sinks)
	assert.Empty(t, outcome.Rules)
	require.Len(t, outcome.Fetches, 1)
	assert.Equal(t, "a", outcome.Fetches[0].Fields[0].Path)
	assert.Len(t, caller.Calls(), 1)
}
