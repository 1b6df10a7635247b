package orchestrator

import (
	"time"

	"github.com/samber/lo"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/mapping"
)

// Status is the aggregate result of a run
type Status string

const (
	StatusSuccess        Status = "SUCCESS"
	StatusPartialFailure Status = "PARTIAL_FAILURE"
)

// FetchStatus is the result of one fetch
type FetchStatus string

const (
	FetchOK             FetchStatus = "OK"
	FetchRejected       FetchStatus = "REJECTED"
	FetchTransportError FetchStatus = "TRANSPORT_ERROR"
	FetchFailed         FetchStatus = "FAILED"
)

// RuleStatus is the result of one rule
type RuleStatus string

const (
	RuleSent           RuleStatus = "SENT"
	RuleRejected       RuleStatus = "REJECTED"
	RuleTransportError RuleStatus = "TRANSPORT_ERROR"
	RuleFailed         RuleStatus = "FAILED"
	RulePlanned        RuleStatus = "PLANNED"
)

// FetchRecord reports one distinct fetch
type FetchRecord struct {
	Key        string              `json:"key"`
	Endpoint   string              `json:"endpoint"`
	Method     string              `json:"method"`
	Path       string              `json:"path"`
	Status     FetchStatus         `json:"status"`
	StatusCode int                 `json:"status_code,omitempty"`
	ErrorType  errors.ErrorType    `json:"error_type,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	Duration   time.Duration       `json:"duration"`
	Rules      []string            `json:"rules"`
	Fields     []mapping.FieldInfo `json:"fields,omitempty"`
}

// Label identifies the fetch in reports without exposing headers
func (r FetchRecord) Label() string {
	return r.Endpoint + " " + r.Method + " " + r.Path
}

// RuleRecord reports one rule
type RuleRecord struct {
	Name       string                 `json:"name"`
	Target     string                 `json:"target"`
	Method     string                 `json:"method"`
	Path       string                 `json:"path"`
	Status     RuleStatus             `json:"status"`
	StatusCode int                    `json:"status_code,omitempty"`
	ErrorType  errors.ErrorType       `json:"error_type,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Duration   time.Duration          `json:"duration"`
}

// RunOutcome aggregates every fetch and rule result of one invocation
type RunOutcome struct {
	RunID      string        `json:"run_id"`
	Mode       Mode          `json:"mode"`
	Status     Status        `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Fetches    []FetchRecord `json:"fetches"`
	Rules      []RuleRecord  `json:"rules"`
	Sinks      []SinkRecord  `json:"sinks,omitempty"`
}

// Rule returns the record for a rule by name
func (o *RunOutcome) Rule(name string) (RuleRecord, bool) {
	return lo.Find(o.Rules, func(r RuleRecord) bool { return r.Name == name })
}

// FetchesFor returns the fetch records of one endpoint
func (o *RunOutcome) FetchesFor(endpoint string) []FetchRecord {
	return lo.Filter(o.Fetches, func(r FetchRecord, _ int) bool { return r.Endpoint == endpoint })
}

// Summary counts fetch, rule and sink results by status
type Summary struct {
	Fetches map[FetchStatus]int `json:"fetches"`
	Rules   map[RuleStatus]int  `json:"rules"`
	Sinks   map[SinkStatus]int  `json:"sinks,omitempty"`
}

// Summarize counts results by status
func (o *RunOutcome) Summarize() Summary {
	return Summary{
		Fetches: lo.CountValuesBy(o.Fetches, func(r FetchRecord) FetchStatus { return r.Status }),
		Rules:   lo.CountValuesBy(o.Rules, func(r RuleRecord) RuleStatus { return r.Status }),
		Sinks:   lo.CountValuesBy(o.Sinks, func(r SinkRecord) SinkStatus { return r.Status }),
	}
}

func (o *RunOutcome) finish(now time.Time) {
	o.FinishedAt = now

	fetchesOK := lo.EveryBy(o.Fetches, func(r FetchRecord) bool { return r.Status == FetchOK })
	rulesOK := lo.EveryBy(o.Rules, func(r RuleRecord) bool {
		return r.Status == RuleSent || r.Status == RulePlanned
	})

	sinksOK := lo.EveryBy(o.Sinks, func(r SinkRecord) bool { return r.Status == SinkReachable })

	if fetchesOK && rulesOK && sinksOK {
		o.Status = StatusSuccess
	} else {
		o.Status = StatusPartialFailure
	}
}
