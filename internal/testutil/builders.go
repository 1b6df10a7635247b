package testutil

import (
	"api-integrator/internal/orchestrator"
	"api-integrator/internal/source"
)

// RuleBuilder helps build test rules
type RuleBuilder struct {
	rule orchestrator.Rule
}

// NewRuleBuilder creates a rule fetching GET / from source and posting to target
func NewRuleBuilder(name, from, to string) *RuleBuilder {
	return &RuleBuilder{
		rule: orchestrator.Rule{
			Name:  name,
			Fetch: orchestrator.FetchSpec{Source: from, Path: "/"},
			Send:  orchestrator.SendSpec{Target: to, Path: "/"},
		},
	}
}

func (b *RuleBuilder) WithFetch(method, path string) *RuleBuilder {
	b.rule.Fetch.Method = method
	b.rule.Fetch.Path = path
	return b
}

func (b *RuleBuilder) WithFetchBody(body interface{}) *RuleBuilder {
	b.rule.Fetch.Body = body
	return b
}

func (b *RuleBuilder) WithFetchHeader(key, value string) *RuleBuilder {
	if b.rule.Fetch.Headers == nil {
		b.rule.Fetch.Headers = make(map[string]string)
	}
	b.rule.Fetch.Headers[key] = value
	return b
}

func (b *RuleBuilder) WithSend(method, path string) *RuleBuilder {
	b.rule.Send.Method = method
	b.rule.Send.Path = path
	return b
}

func (b *RuleBuilder) WithMapping(from, to string) *RuleBuilder {
	b.rule.Mappings = append(b.rule.Mappings, orchestrator.FieldMapping{From: from, To: to})
	return b
}

// WithMappingFrom binds one mapping to its own fetch
func (b *RuleBuilder) WithMappingFrom(fetch orchestrator.FetchSpec, from, to string) *RuleBuilder {
	b.rule.Mappings = append(b.rule.Mappings, orchestrator.FieldMapping{From: from, To: to, Fetch: &fetch})
	return b
}

func (b *RuleBuilder) Build() orchestrator.Rule {
	return b.rule
}

// EndpointBuilder helps build test endpoints
type EndpointBuilder struct {
	endpoint source.Endpoint
}

// NewEndpointBuilder creates an endpoint
func NewEndpointBuilder(name, baseURL string) *EndpointBuilder {
	return &EndpointBuilder{endpoint: source.Endpoint{Name: name, BaseURL: baseURL}}
}

func (b *EndpointBuilder) WithMethod(method string) *EndpointBuilder {
	b.endpoint.Method = method
	return b
}

func (b *EndpointBuilder) WithHeader(key, value string) *EndpointBuilder {
	if b.endpoint.Headers == nil {
		b.endpoint.Headers = make(map[string]string)
	}
	b.endpoint.Headers[key] = value
	return b
}

func (b *EndpointBuilder) WithRateLimit(rps float64, burst int) *EndpointBuilder {
	b.endpoint.RateLimit = &source.RateLimit{RequestsPerSecond: rps, Burst: burst}
	return b
}

func (b *EndpointBuilder) Build() source.Endpoint {
	return b.endpoint
}
