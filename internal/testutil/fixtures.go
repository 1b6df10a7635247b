package testutil

import (
	"net/http"

	"api-integrator/internal/orchestrator"
	"api-integrator/internal/source"
)

// Rule names of the demo integration
const (
	RuleAPI2ToAPI1 = "api2-to-api1"
	RuleAPI3ToAPI2 = "api3-to-api2"
	RuleAPI3ToAPI1 = "api3-to-api1"
)

// DemoEndpoints configures the three demo services. API 1 takes its token in
// the query string, the others in a header.
func DemoEndpoints(apis *DemoAPIs) []source.Endpoint {
	return []source.Endpoint{
		NewEndpointBuilder("api1", apis.API1.URL()).Build(),
		NewEndpointBuilder("api2", apis.API2.URL()).
			WithMethod(http.MethodPost).
			WithHeader("Demo-Token", DemoToken).
			Build(),
		NewEndpointBuilder("api3", apis.API3.URL()).
			WithHeader("Demo-Token", DemoToken).
			Build(),
	}
}

// DemoRules is the three-rule integration: API 2 feeds API 1, API 3 feeds
// API 2 and API 1.
func DemoRules() []orchestrator.Rule {
	api1Path := "/user?demo-token=" + DemoToken

	return []orchestrator.Rule{
		NewRuleBuilder(RuleAPI2ToAPI1, "api2", "api1").
			WithFetch(http.MethodPost, "/get-user").
			WithFetchBody(map[string]interface{}{}).
			WithMapping("email", "user_email").
			WithSend(http.MethodPost, api1Path).
			Build(),
		NewRuleBuilder(RuleAPI3ToAPI2, "api3", "api2").
			WithFetch(http.MethodGet, "/user").
			WithMapping("email", "email").
			WithMapping("firstname", "name").
			WithSend(http.MethodPost, "/update-user").
			Build(),
		NewRuleBuilder(RuleAPI3ToAPI1, "api3", "api1").
			WithFetch(http.MethodGet, "/user").
			WithMapping("firstname", "first_name").
			WithMapping("lastname", "last_name").
			WithSend(http.MethodPost, api1Path).
			Build(),
	}
}
