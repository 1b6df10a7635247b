package orchestrator

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/common/logging"
	"api-integrator/internal/mapping"
	"api-integrator/internal/source"
)

// DefaultConcurrency bounds how many endpoints are fetched from at once
const DefaultConcurrency = 4

// Orchestrator runs one validated rule set
type Orchestrator struct {
	endpoints   map[string]*source.Endpoint
	rules       []Rule
	plan        *executionPlan
	caller      source.Caller
	logger      logging.Logger
	concurrency int
	now         func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithConcurrency sets the number of endpoints fetched from in parallel
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New validates endpoints and rules and builds the execution graph. It returns a
// configuration error before any network call when the integration is invalid.
func New(endpoints []source.Endpoint, rules []Rule, caller source.Caller, opts ...Option) (*Orchestrator, error) {
	if caller == nil {
		return nil, errors.InternalError("orchestrator requires a caller", nil)
	}
	if err := Validate(endpoints, rules); err != nil {
		return nil, err
	}

	byName := make(map[string]*source.Endpoint, len(endpoints))
	for i := range endpoints {
		ep := endpoints[i]
		byName[ep.Name] = &ep
	}

	plan, err := buildPlan(byName, rules)
	if err != nil {
		return nil, errors.InternalError("failed to build execution graph", err)
	}

	o := &Orchestrator{
		endpoints:   byName,
		rules:       rules,
		plan:        plan,
		caller:      caller,
		logger:      logging.GetGlobalLogger(),
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithFields(logging.Component("orchestrator"))

	return o, nil
}

// FetchCount is the number of distinct fetches a run performs
func (o *Orchestrator) FetchCount() int {
	return len(o.plan.fetches)
}

// Run executes one invocation. Individual failures are recorded in the outcome,
// never returned.
func (o *Orchestrator) Run(ctx context.Context, mode Mode) *RunOutcome {
	if mode == "" {
		mode = ModeRun
	}

	outcome := &RunOutcome{
		RunID:     uuid.New().String(),
		Mode:      mode,
		StartedAt: o.now(),
	}
	ctx = logging.ContextWithRunID(ctx, outcome.RunID)
	logger := o.logger.WithContext(ctx)

	logger.Info("Starting integration run",
		logging.String("mode", string(mode)),
		logging.Int("fetches", len(o.plan.fetches)),
		logging.Int("rules", len(o.rules)),
	)

	results := o.fetchAll(ctx, logger, mode)
	outcome.Fetches = lo.Map(results, func(r fetchOutcome, _ int) FetchRecord { return r.record })

	if mode.RunsRules() {
		outcome.Rules = make([]RuleRecord, 0, len(o.rules))
		for i := range o.rules {
			outcome.Rules = append(outcome.Rules, o.runRule(ctx, logger, mode, i, results))
		}
	}
	if mode == ModeCheck {
		outcome.Sinks = o.checkSinks(ctx, logger)
	}

	outcome.finish(o.now())

	summary := outcome.Summarize()
	logger.Info("Integration run finished",
		logging.String("status", string(outcome.Status)),
		logging.Any("fetches", summary.Fetches),
		logging.Any("rules", summary.Rules),
		logging.Any("sinks", summary.Sinks),
		logging.Duration("duration", outcome.FinishedAt.Sub(outcome.StartedAt)),
	)

	return outcome
}

type fetchOutcome struct {
	record FetchRecord
	result *source.FetchResult
}

// fetchAll executes every distinct fetch once. Endpoints are fetched from
// concurrently and each endpoint's fetches run in first-seen order.
func (o *Orchestrator) fetchAll(ctx context.Context, logger logging.Logger, mode Mode) []fetchOutcome {
	results := make([]fetchOutcome, len(o.plan.fetches))

	indices := lo.Range(len(o.plan.fetches))
	groups := lo.GroupBy(indices, func(i int) string { return o.plan.fetches[i].endpoint.Name })
	order := lo.Uniq(lo.Map(indices, func(i int, _ int) string { return o.plan.fetches[i].endpoint.Name }))

	g := &errgroup.Group{}
	g.SetLimit(o.concurrency)

	for _, name := range order {
		group := groups[name]
		g.Go(func() error {
			for _, idx := range group {
				results[idx] = o.fetch(ctx, logger, mode, idx)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (o *Orchestrator) fetch(ctx context.Context, logger logging.Logger, mode Mode, idx int) fetchOutcome {
	node := o.plan.fetches[idx]
	record := FetchRecord{
		Key:      node.key,
		Endpoint: node.endpoint.Name,
		Method:   node.request.Method,
		Path:     redactPath(node.request.Path),
		Rules:    node.rules,
	}
	log := logger.WithFields(
		logging.Endpoint(record.Endpoint),
		logging.String("method", record.Method),
		logging.String("path", record.Path),
	)

	start := o.now()
	result, err := o.caller.Call(ctx, node.endpoint, node.request)
	record.Duration = o.now().Sub(start)

	if err != nil {
		record.Status, record.StatusCode, record.ErrorType, record.Reason = classifyFetch(err)
		log.Warn("Fetch failed",
			logging.String("status", string(record.Status)),
			logging.Int("status_code", record.StatusCode),
			logging.String("reason", record.Reason),
		)
		return fetchOutcome{record: record}
	}

	record.Status = FetchOK
	record.StatusCode = result.StatusCode
	if mode.reportsFields() {
		record.Fields = mapping.Fields(result.Body)
	}
	log.Info("Fetch succeeded",
		logging.Int("status_code", result.StatusCode),
		logging.Duration("duration", record.Duration),
	)

	return fetchOutcome{record: record, result: result}
}

func (o *Orchestrator) runRule(ctx context.Context, logger logging.Logger, mode Mode, r int, results []fetchOutcome) RuleRecord {
	rule := o.rules[r]
	method := source.ResolveMethod(rule.Send.Method, "", http.MethodPost)
	record := RuleRecord{
		Name:   rule.Name,
		Target: rule.Send.Target,
		Method: method,
		Path:   redactPath(rule.Send.Path),
	}
	log := logger.WithFields(logging.Rule(rule.Name), logging.String("target", rule.Send.Target))

	deps, err := o.plan.dependencies(r)
	if err != nil {
		record.Status = RuleFailed
		record.ErrorType = errors.ErrTypeInternal
		record.Reason = err.Error()
		log.Error("Rule dependencies unavailable", err)
		return record
	}

	failed := lo.FilterMap(deps, func(idx int, _ int) (string, bool) {
		return results[idx].record.Label(), results[idx].result == nil
	})
	if len(failed) > 0 {
		depErr := errors.UnsatisfiedDependencyError(rule.Name, failed)
		record.Status = RuleFailed
		record.ErrorType = depErr.Type
		record.Reason = depErr.Message + " (" + strings.Join(failed, ", ") + ")"
		log.Warn("Rule skipped", logging.String("reason", record.Reason))
		return record
	}

	assignments := lo.Map(rule.Mappings, func(m FieldMapping, _ int) mapping.Assignment {
		return mapping.Assignment{From: m.From, To: m.To}
	})
	record.Payload = mapping.Build(assignments, func(m int) interface{} {
		return results[o.plan.bindings[r][m]].result.Body
	})

	if mode != ModeRun {
		record.Status = RulePlanned
		log.Info("Rule planned", logging.Int("fields", len(record.Payload)))
		return record
	}

	if err := ctx.Err(); err != nil {
		record.Status = RuleTransportError
		record.ErrorType = errors.ErrTypeTransport
		record.Reason = "run cancelled: " + err.Error()
		log.Warn("Rule not sent", logging.String("reason", record.Reason))
		return record
	}

	start := o.now()
	result, err := o.caller.Call(ctx, o.endpoints[rule.Send.Target], source.Request{
		Method:  method,
		Path:    rule.Send.Path,
		Headers: rule.Send.Headers,
		Body:    record.Payload,
	})
	record.Duration = o.now().Sub(start)

	if err != nil {
		record.Status, record.StatusCode, record.ErrorType, record.Reason = classifySend(err)
		log.Warn("Send failed",
			logging.String("status", string(record.Status)),
			logging.Int("status_code", record.StatusCode),
			logging.String("reason", record.Reason),
		)
		return record
	}

	record.Status = RuleSent
	record.StatusCode = result.StatusCode
	log.Info("Rule sent",
		logging.Int("status_code", result.StatusCode),
		logging.Duration("duration", record.Duration),
	)
	return record
}

func classifyFetch(err error) (FetchStatus, int, errors.ErrorType, string) {
	code, kind, reason := classify(err)
	switch kind {
	case errors.ErrTypeRequest:
		return FetchRejected, code, kind, reason
	case errors.ErrTypeTransport:
		return FetchTransportError, code, kind, reason
	default:
		return FetchFailed, code, kind, reason
	}
}

func classifySend(err error) (RuleStatus, int, errors.ErrorType, string) {
	code, kind, reason := classify(err)
	switch kind {
	case errors.ErrTypeRequest:
		return RuleRejected, code, kind, reason
	case errors.ErrTypeTransport:
		return RuleTransportError, code, kind, reason
	default:
		return RuleFailed, code, kind, reason
	}
}

// classify returns the status code, error type and a short reason for a call error
func classify(err error) (int, errors.ErrorType, string) {
	appErr, ok := errors.As(err)
	if !ok {
		return 0, errors.ErrTypeInternal, err.Error()
	}

	reason := appErr.Message
	if appErr.Cause != nil {
		reason += ": " + appErr.Cause.Error()
	}
	return appErr.StatusCode, appErr.Type, reason
}

// redactPath drops the query string from reported paths, it may carry credentials
func redactPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
