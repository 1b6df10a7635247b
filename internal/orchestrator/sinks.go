package orchestrator

import (
	"context"
	"net/http"

	"github.com/samber/lo"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/common/logging"
	"api-integrator/internal/source"
)

// SinkStatus is the reachability of one send target
type SinkStatus string

const (
	SinkReachable   SinkStatus = "REACHABLE"
	SinkUnreachable SinkStatus = "UNREACHABLE"
)

// SinkRecord reports whether a send target answered. Any HTTP response counts,
// including 4xx and 5xx, since the check never sends a real payload.
type SinkRecord struct {
	Target     string           `json:"target"`
	Method     string           `json:"method"`
	Path       string           `json:"path"`
	Status     SinkStatus       `json:"status"`
	Attempt    string           `json:"attempt,omitempty"`
	StatusCode int              `json:"status_code,omitempty"`
	ErrorType  errors.ErrorType `json:"error_type,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Rules      []string         `json:"rules"`
}

// Label identifies the sink in reports without exposing headers
func (r SinkRecord) Label() string {
	return r.Target + " " + r.Method + " " + r.Path
}

type sinkNode struct {
	endpoint *source.Endpoint
	method   string
	request  source.Request
	rules    []string
}

// sinks returns the distinct send requests in first-seen rule order
func (o *Orchestrator) sinks() []*sinkNode {
	var nodes []*sinkNode
	byKey := make(map[string]*sinkNode)

	for _, rule := range o.rules {
		method := source.ResolveMethod(rule.Send.Method, "", http.MethodPost)
		req := source.Request{Method: method, Path: rule.Send.Path, Headers: rule.Send.Headers}
		key, err := fetchKey(rule.Send.Target, req)
		if err != nil {
			key = rule.Send.Target + " " + method + " " + rule.Send.Path
		}

		if node, ok := byKey[key]; ok {
			node.rules = append(node.rules, rule.Name)
			continue
		}
		node := &sinkNode{
			endpoint: o.endpoints[rule.Send.Target],
			method:   method,
			request:  req,
			rules:    []string{rule.Name},
		}
		byKey[key] = node
		nodes = append(nodes, node)
	}
	return nodes
}

// checkSinks tries OPTIONS, then HEAD, then the configured method with an
// empty object. Only transport failures move on to the next attempt.
func (o *Orchestrator) checkSinks(ctx context.Context, logger logging.Logger) []SinkRecord {
	nodes := o.sinks()
	records := make([]SinkRecord, 0, len(nodes))
	for _, node := range nodes {
		records = append(records, o.checkSink(ctx, logger, node))
	}
	return records
}

func (o *Orchestrator) checkSink(ctx context.Context, logger logging.Logger, node *sinkNode) SinkRecord {
	record := SinkRecord{
		Target: node.endpoint.Name,
		Method: node.method,
		Path:   redactPath(node.request.Path),
		Rules:  node.rules,
	}
	log := logger.WithFields(
		logging.Endpoint(record.Target),
		logging.String("method", record.Method),
		logging.String("path", record.Path),
	)

	attempts := lo.Uniq([]string{http.MethodOptions, http.MethodHead, node.method})

	var lastErr error
	for _, method := range attempts {
		req := node.request
		req.Method = method
		if method == node.method && method != http.MethodGet && method != http.MethodHead && method != http.MethodOptions {
			req.Body = map[string]interface{}{}
		}

		result, err := o.caller.Call(ctx, node.endpoint, req)
		if err == nil {
			record.Status = SinkReachable
			record.Attempt = method
			record.StatusCode = result.StatusCode
			break
		}
		if appErr, ok := errors.As(err); ok && appErr.Type == errors.ErrTypeRequest {
			record.Status = SinkReachable
			record.Attempt = method
			record.StatusCode = appErr.StatusCode
			break
		}

		lastErr = err
		log.Debug("Sink attempt failed", logging.String("attempt", method), logging.Err(err))
		if ctx.Err() != nil {
			break
		}
	}

	if record.Status == SinkReachable {
		log.Info("Sink reachable",
			logging.String("attempt", record.Attempt),
			logging.Int("status_code", record.StatusCode),
		)
		return record
	}

	record.Status = SinkUnreachable
	record.StatusCode, record.ErrorType, record.Reason = classify(lastErr)
	log.Warn("Sink unreachable", logging.String("reason", record.Reason))
	return record
}
