// Package source performs single HTTP calls against named integration endpoints.
package source

import (
	"context"
	"net/http"
	"time"
)

// RateLimit bounds how often one endpoint is called
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// Endpoint is one configured HTTP source or sink
type Endpoint struct {
	Name      string
	BaseURL   string
	Method    string
	Headers   map[string]string
	RateLimit *RateLimit
}

// Request is the caller-controlled part of a call. A nil Body sends no body.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    interface{}
}

// FetchResult is a successful (2xx) response
type FetchResult struct {
	Endpoint   string
	Method     string
	URL        string
	StatusCode int
	Headers    http.Header
	Body       interface{}
	RawBody    []byte
	Duration   time.Duration
}

// Caller performs one request against an endpoint. Non-2xx responses are
// returned as request errors and network faults as transport errors, both from
// internal/common/errors.
type Caller interface {
	Call(ctx context.Context, endpoint *Endpoint, req Request) (*FetchResult, error)
}
