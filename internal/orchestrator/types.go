// Package orchestrator executes mapping rules: every distinct fetch once, then
// each rule's transform and send, recording partial failures in a RunOutcome.
package orchestrator

// FetchSpec describes the read request a rule depends on
type FetchSpec struct {
	Source  string
	Method  string
	Path    string
	Headers map[string]string
	Body    interface{}
}

// FieldMapping writes the value at From under the payload key To. A non-nil
// Fetch binds the mapping to another fetch than the rule's own.
type FieldMapping struct {
	From  string
	To    string
	Fetch *FetchSpec
}

// SendSpec describes the write request carrying the assembled payload
type SendSpec struct {
	Target  string
	Method  string
	Path    string
	Headers map[string]string
}

// Rule is one fetch, transform and send flow
type Rule struct {
	Name     string
	Fetch    FetchSpec
	Mappings []FieldMapping
	Send     SendSpec
}

// Mode selects how much of a run executes
type Mode string

const (
	// ModeRun fetches, transforms and sends
	ModeRun Mode = "run"
	// ModePlan fetches and transforms but never sends
	ModePlan Mode = "plan"
	// ModeCheck fetches and tests that every send target answers
	ModeCheck Mode = "check"
	// ModeFields only fetches and lists the fields of each body
	ModeFields Mode = "fields"
	// ModeSimulate is plan over local sample bodies, for use with an offline caller
	ModeSimulate Mode = "simulate"
)

// RunsRules reports whether the mode transforms rules after fetching
func (m Mode) RunsRules() bool {
	return m == ModeRun || m == ModePlan || m == ModeSimulate
}

func (m Mode) reportsFields() bool {
	return m == ModeCheck || m == ModeFields
}
