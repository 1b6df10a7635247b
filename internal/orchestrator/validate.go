package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/mapping"
	"api-integrator/internal/source"
)

// validator accumulates configuration violations
type validator struct {
	problems []string
}

func (v *validator) addf(format string, args ...interface{}) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return errors.ConfigError("invalid integration: " + strings.Join(v.problems, "; ")).
		WithContext("problems", len(v.problems))
}

// Validate checks endpoints and rules without any network call. Every violation
// is reported in a single configuration error.
func Validate(endpoints []source.Endpoint, rules []Rule) error {
	v := &validator{}
	known := make(map[string]*source.Endpoint, len(endpoints))

	for i := range endpoints {
		ep := &endpoints[i]
		if ep.Name == "" {
			v.addf("endpoint #%d has no name", i+1)
			continue
		}
		if _, dup := known[ep.Name]; dup {
			v.addf("duplicate endpoint %q", ep.Name)
			continue
		}
		if _, err := source.BuildURL(ep.BaseURL, ""); err != nil {
			v.addf("endpoint %q: %s", ep.Name, message(err))
		}
		if ep.RateLimit != nil && ep.RateLimit.RequestsPerSecond < 0 {
			v.addf("endpoint %q: rate limit must not be negative", ep.Name)
		}
		known[ep.Name] = ep
	}

	ruleNames := make(map[string]bool, len(rules))
	for i, rule := range rules {
		name := rule.Name
		if name == "" {
			v.addf("rule #%d has no name", i+1)
			name = fmt.Sprintf("#%d", i+1)
		} else if ruleNames[name] {
			v.addf("duplicate rule %q", name)
		}
		ruleNames[name] = true

		v.checkFetch(known, name, "fetch", rule.Fetch)
		v.checkRequest(known, name, "send", rule.Send.Target, rule.Send.Path)

		targets := make(map[string]bool, len(rule.Mappings))
		for j, m := range rule.Mappings {
			where := fmt.Sprintf("mapping #%d", j+1)
			if m.To == "" {
				v.addf("rule %q %s: target field is required", name, where)
			} else if targets[m.To] {
				v.addf("rule %q %s: duplicate target field %q", name, where, m.To)
			}
			targets[m.To] = true

			if !mapping.ValidPath(m.From) {
				v.addf("rule %q %s: malformed source path %q", name, where, m.From)
			}
			if m.Fetch != nil {
				v.checkFetch(known, name, where+" fetch", *m.Fetch)
			}
		}
	}

	return v.err()
}

func (v *validator) checkFetch(known map[string]*source.Endpoint, rule, where string, fetch FetchSpec) {
	v.checkRequest(known, rule, where, fetch.Source, fetch.Path)
	if fetch.Body != nil {
		if _, err := json.Marshal(fetch.Body); err != nil {
			v.addf("rule %q %s: body is not JSON-serializable: %v", rule, where, err)
		}
	}
}

func (v *validator) checkRequest(known map[string]*source.Endpoint, rule, where, endpoint, path string) {
	if endpoint == "" {
		v.addf("rule %q %s: endpoint is required", rule, where)
		return
	}
	ep, ok := known[endpoint]
	if !ok {
		v.addf("rule %q %s: unknown endpoint %q", rule, where, endpoint)
		return
	}
	if _, err := source.BuildURL(ep.BaseURL, path); err != nil {
		v.addf("rule %q %s: %s", rule, where, message(err))
	}
}

func message(err error) string {
	if appErr, ok := errors.As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
