package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/source"
)

// MockCall is one request seen by MockCaller
type MockCall struct {
	Endpoint string
	Method   string
	Path     string
	Headers  map[string]string
	Body     interface{}
}

// MockCaller implements source.Caller without a network. Responses and errors
// are keyed by "endpoint METHOD path"; unknown keys answer 200 with a nil body.
type MockCaller struct {
	mu    sync.Mutex
	calls []MockCall

	Responses map[string]interface{}
	Errors    map[string]error
}

// NewMockCaller creates an empty mock caller
func NewMockCaller() *MockCaller {
	return &MockCaller{
		Responses: make(map[string]interface{}),
		Errors:    make(map[string]error),
	}
}

// CallKey builds the key used by Responses and Errors
func CallKey(endpoint, method, path string) string {
	return fmt.Sprintf("%s %s %s", endpoint, strings.ToUpper(method), path)
}

// Respond registers a response body
func (m *MockCaller) Respond(endpoint, method, path string, body interface{}) *MockCaller {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[CallKey(endpoint, method, path)] = body
	return m
}

// Fail registers an error
func (m *MockCaller) Fail(endpoint, method, path string, err error) *MockCaller {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[CallKey(endpoint, method, path)] = err
	return m
}

// Call implements source.Caller
func (m *MockCaller) Call(ctx context.Context, endpoint *source.Endpoint, req source.Request) (*source.FetchResult, error) {
	method := source.ResolveMethod(req.Method, endpoint.Method, http.MethodGet)
	key := CallKey(endpoint.Name, method, req.Path)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{
		Endpoint: endpoint.Name,
		Method:   method,
		Path:     req.Path,
		Headers:  source.MergeHeaders(endpoint.Headers, req.Headers),
		Body:     req.Body,
	})

	if err := ctx.Err(); err != nil {
		return nil, errors.TransportError("request failed", err).WithContext("endpoint", endpoint.Name)
	}
	if err := m.Errors[key]; err != nil {
		return nil, err
	}

	status := http.StatusOK
	if method != http.MethodGet {
		status = http.StatusCreated
	}
	return &source.FetchResult{
		Endpoint:   endpoint.Name,
		Method:     method,
		URL:        endpoint.BaseURL + req.Path,
		StatusCode: status,
		Body:       m.Responses[key],
	}, nil
}

// Calls returns every call made, in order
func (m *MockCaller) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount counts the calls made to one key
func (m *MockCaller) CallCount(endpoint, method, path string) int {
	key := CallKey(endpoint, method, path)
	n := 0
	for _, c := range m.Calls() {
		if CallKey(c.Endpoint, c.Method, c.Path) == key {
			n++
		}
	}
	return n
}
