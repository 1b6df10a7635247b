package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/common/validation"
	"api-integrator/internal/orchestrator"
	"api-integrator/internal/source"
	"api-integrator/internal/supervisor"
)

// Document is the on-disk integration description. JSON documents are accepted
// since YAML is a superset.
type Document struct {
	Endpoints []EndpointDoc `yaml:"endpoints" validate:"dive"`
	Rules     []RuleDoc     `yaml:"rules" validate:"dive"`
	Processes []ProcessDoc  `yaml:"processes" validate:"dive"`
}

// EndpointDoc configures one source or sink
type EndpointDoc struct {
	Name      string            `yaml:"name" validate:"required"`
	BaseURL   string            `yaml:"baseURL" validate:"required"`
	Method    string            `yaml:"method" validate:"http_method"`
	Headers   map[string]string `yaml:"headers"`
	RateLimit *RateLimitDoc     `yaml:"rateLimit"`
	Sample    string            `yaml:"sample"`
}

// RateLimitDoc bounds the request rate of one endpoint
type RateLimitDoc struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond" validate:"gt=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// FetchDoc is a read request
type FetchDoc struct {
	Source  string            `yaml:"source" validate:"required"`
	Method  string            `yaml:"method" validate:"http_method"`
	Path    string            `yaml:"path" validate:"request_path"`
	Headers map[string]string `yaml:"headers"`
	Body    interface{}       `yaml:"body"`
}

// MappingDoc copies one field into the outgoing payload
type MappingDoc struct {
	From  string    `yaml:"from" validate:"field_path"`
	To    string    `yaml:"to" validate:"required"`
	Fetch *FetchDoc `yaml:"fetch"`
}

// SendDoc is the write request
type SendDoc struct {
	Target  string            `yaml:"target" validate:"required"`
	Method  string            `yaml:"method" validate:"http_method"`
	Path    string            `yaml:"path" validate:"request_path"`
	Headers map[string]string `yaml:"headers"`
}

// RuleDoc is one fetch, transform and send flow
type RuleDoc struct {
	Name     string       `yaml:"name" validate:"required"`
	Fetch    FetchDoc     `yaml:"fetch"`
	Mappings []MappingDoc `yaml:"mappings" validate:"dive"`
	Send     SendDoc      `yaml:"send"`
}

// ProcessDoc is a supervised child process
type ProcessDoc struct {
	Name         string            `yaml:"name" validate:"required"`
	Command      string            `yaml:"command" validate:"required"`
	Args         []string          `yaml:"args"`
	Dir          string            `yaml:"dir"`
	Env          map[string]string `yaml:"env"`
	HealthURL    string            `yaml:"healthURL"`
	StartTimeout string            `yaml:"startTimeout"`
}

// Integration is a loaded, placeholder-free integration
type Integration struct {
	Endpoints []source.Endpoint
	Rules     []orchestrator.Rule
	Processes []supervisor.Process
	// Samples maps an endpoint name to a local body file for simulate runs
	Samples map[string]string
}

// LookupFunc resolves a ${NAME} placeholder
type LookupFunc func(name string) (string, bool)

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

var structValidator = validation.NewStructValidator()

// LoadIntegration reads and parses an integration document, resolving
// placeholders from the environment.
func LoadIntegration(path string) (*Integration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigErrorf("failed to read integration document: %v", err).
			WithContext("file", path)
	}

	integration, err := ParseIntegration(data, os.LookupEnv)
	if err != nil {
		if appErr, ok := errors.As(err); ok {
			return nil, appErr.WithContext("file", path)
		}
		return nil, err
	}

	// Sample files are relative to the document
	for name, sample := range integration.Samples {
		if !filepath.IsAbs(sample) {
			integration.Samples[name] = filepath.Join(filepath.Dir(path), sample)
		}
	}
	return integration, nil
}

// ParseIntegration decodes, validates and resolves a document. Every problem is
// reported in one configuration error; cross-references between endpoints and
// rules are checked later by orchestrator.Validate.
func ParseIntegration(data []byte, lookup LookupFunc) (*Integration, error) {
	var doc Document

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.ConfigErrorf("failed to parse integration document: %v", err)
	}

	if fieldErrors := structValidator.Struct(doc); len(fieldErrors) > 0 {
		messages := make([]string, len(fieldErrors))
		for i, fe := range fieldErrors {
			messages[i] = fe.Message
		}
		return nil, errors.ConfigError("invalid integration document: " + strings.Join(messages, "; ")).
			WithContext("problems", len(fieldErrors))
	}

	r := &resolver{lookup: lookup, missing: make(map[string]bool)}
	integration := &Integration{
		Endpoints: make([]source.Endpoint, 0, len(doc.Endpoints)),
		Rules:     make([]orchestrator.Rule, 0, len(doc.Rules)),
		Processes: make([]supervisor.Process, 0, len(doc.Processes)),
		Samples:   make(map[string]string),
	}

	// Resolved values are checked here; unset placeholders are reported once below.
	v := validation.NewValidator()

	for _, ep := range doc.Endpoints {
		endpoint := source.Endpoint{
			Name:    ep.Name,
			BaseURL: r.checked(ep.BaseURL, v.Scope(fmt.Sprintf("endpoint %q", ep.Name)).URL, "baseURL"),
			Method:  strings.ToUpper(ep.Method),
			Headers: r.headers(ep.Headers),
		}
		if ep.RateLimit != nil {
			endpoint.RateLimit = &source.RateLimit{
				RequestsPerSecond: ep.RateLimit.RequestsPerSecond,
				Burst:             ep.RateLimit.Burst,
			}
		}
		if ep.Sample != "" {
			integration.Samples[ep.Name] = r.string(ep.Sample)
		}
		integration.Endpoints = append(integration.Endpoints, endpoint)
	}

	for _, rd := range doc.Rules {
		rule := orchestrator.Rule{
			Name:  rd.Name,
			Fetch: r.fetch(rd.Fetch),
			Send: orchestrator.SendSpec{
				Target:  rd.Send.Target,
				Method:  strings.ToUpper(rd.Send.Method),
				Path:    r.string(rd.Send.Path),
				Headers: r.headers(rd.Send.Headers),
			},
		}
		for _, md := range rd.Mappings {
			fm := orchestrator.FieldMapping{From: md.From, To: md.To}
			if md.Fetch != nil {
				fetch := r.fetch(*md.Fetch)
				fm.Fetch = &fetch
			}
			rule.Mappings = append(rule.Mappings, fm)
		}
		integration.Rules = append(integration.Rules, rule)
	}

	for _, pd := range doc.Processes {
		pv := v.Scope(fmt.Sprintf("process %q", pd.Name))
		proc := supervisor.Process{
			Name:    pd.Name,
			Command: r.string(pd.Command),
			Args:    make([]string, 0, len(pd.Args)),
			Dir:     r.string(pd.Dir),
			Env:     r.headers(pd.Env),
		}
		for _, arg := range pd.Args {
			proc.Args = append(proc.Args, r.string(arg))
		}
		if pd.HealthURL != "" {
			proc.HealthURL = r.checked(pd.HealthURL, pv.URL, "healthURL")
		}
		if pd.StartTimeout != "" {
			proc.StartTimeout = pv.Duration(r.string(pd.StartTimeout), "startTimeout")
		}
		integration.Processes = append(integration.Processes, proc)
	}

	problems := v.Problems()
	if len(r.missing) > 0 {
		problems = append(problems, "unset environment variables: "+strings.Join(r.missingNames(), ", "))
	}
	if len(problems) > 0 {
		return nil, errors.ConfigError("invalid integration document: " + strings.Join(problems, "; ")).
			WithContext("problems", len(problems))
	}

	return integration, nil
}

// resolver replaces ${NAME} placeholders and remembers the unset ones
type resolver struct {
	lookup  LookupFunc
	missing map[string]bool
}

func (r *resolver) string(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		value, ok := r.lookup(name)
		if !ok {
			r.missing[name] = true
			return match
		}
		return value
	})
}

// checked resolves s and runs check on the result unless a placeholder in it
// is unset
func (r *resolver) checked(s string, check func(value, name string) *validation.Validator, name string) string {
	resolved := r.string(s)
	if !r.hasMissing(s) {
		check(resolved, name)
	}
	return resolved
}

func (r *resolver) hasMissing(s string) bool {
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if r.missing[m[1]] {
			return true
		}
	}
	return false
}

func (r *resolver) headers(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = r.string(v)
	}
	return out
}

func (r *resolver) fetch(fd FetchDoc) orchestrator.FetchSpec {
	return orchestrator.FetchSpec{
		Source:  fd.Source,
		Method:  strings.ToUpper(fd.Method),
		Path:    r.string(fd.Path),
		Headers: r.headers(fd.Headers),
		Body:    r.value(normalize(fd.Body)),
	}
}

// value resolves placeholders in every string of a decoded body
func (r *resolver) value(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return r.string(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = r.value(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = r.value(item)
		}
		return out
	default:
		return v
	}
}

func (r *resolver) missingNames() []string {
	names := make([]string, 0, len(r.missing))
	for name := range r.missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalize turns YAML maps with non-string keys into string-keyed maps so
// bodies encode as JSON
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case map[string]interface{}:
		for k, item := range t {
			t[k] = normalize(item)
		}
		return t
	case []interface{}:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	default:
		return v
	}
}

