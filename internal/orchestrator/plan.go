package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/heimdalr/dag"

	"api-integrator/internal/source"
)

// fetchNode is one distinct read request shared by every rule that needs it
type fetchNode struct {
	key      string
	endpoint *source.Endpoint
	request  source.Request
	rules    []string
}

// executionPlan is the fetch -> rule graph of one rule set
type executionPlan struct {
	graph   *dag.DAG
	fetches []*fetchNode

	// bindings[r][m] is the fetch index feeding mapping m of rule r
	bindings [][]int
}

func fetchVertex(i int) string { return "fetch/" + strconv.Itoa(i) }
func ruleVertex(i int) string  { return "rule/" + strconv.Itoa(i) }

// buildPlan deduplicates fetches by (endpoint, method, path, headers, body) and
// wires each rule to the fetches its mappings read from. Rules must be validated.
func buildPlan(endpoints map[string]*source.Endpoint, rules []Rule) (*executionPlan, error) {
	p := &executionPlan{
		graph:    dag.NewDAG(),
		bindings: make([][]int, len(rules)),
	}
	byKey := make(map[string]int)

	addFetch := func(fs FetchSpec, rule string) (int, error) {
		ep := endpoints[fs.Source]
		req := source.Request{
			Method:  source.ResolveMethod(fs.Method, ep.Method, http.MethodGet),
			Path:    fs.Path,
			Headers: source.MergeHeaders(ep.Headers, fs.Headers),
			Body:    fs.Body,
		}

		key, err := fetchKey(ep.Name, req)
		if err != nil {
			return 0, err
		}

		idx, seen := byKey[key]
		if !seen {
			idx = len(p.fetches)
			byKey[key] = idx
			p.fetches = append(p.fetches, &fetchNode{key: key, endpoint: ep, request: req})
			if err := p.graph.AddVertexByID(fetchVertex(idx), fetchVertex(idx)); err != nil {
				return 0, fmt.Errorf("failed to add fetch %s: %w", fetchVertex(idx), err)
			}
		}

		node := p.fetches[idx]
		if len(node.rules) == 0 || node.rules[len(node.rules)-1] != rule {
			node.rules = append(node.rules, rule)
		}
		return idx, nil
	}

	for r, rule := range rules {
		if err := p.graph.AddVertexByID(ruleVertex(r), ruleVertex(r)); err != nil {
			return nil, fmt.Errorf("failed to add rule '%s': %w", rule.Name, err)
		}

		primary, err := addFetch(rule.Fetch, rule.Name)
		if err != nil {
			return nil, err
		}

		deps := map[int]bool{primary: true}
		p.bindings[r] = make([]int, len(rule.Mappings))
		for m, fm := range rule.Mappings {
			idx := primary
			if fm.Fetch != nil {
				if idx, err = addFetch(*fm.Fetch, rule.Name); err != nil {
					return nil, err
				}
			}
			p.bindings[r][m] = idx
			deps[idx] = true
		}

		for idx := range deps {
			if err := p.graph.AddEdge(fetchVertex(idx), ruleVertex(r)); err != nil {
				return nil, fmt.Errorf("adding edge from '%s' to rule '%s' failed: %w", fetchVertex(idx), rule.Name, err)
			}
		}
	}

	return p, nil
}

// dependencies returns the sorted fetch indices rule r waits on
func (p *executionPlan) dependencies(r int) ([]int, error) {
	ancestors, err := p.graph.GetAncestors(ruleVertex(r))
	if err != nil {
		return nil, fmt.Errorf("failed to get dependencies for rule %d: %w", r, err)
	}

	deps := make([]int, 0, len(ancestors))
	for id := range ancestors {
		idx, err := strconv.Atoi(strings.TrimPrefix(id, "fetch/"))
		if err != nil {
			return nil, fmt.Errorf("unexpected ancestor vertex %q", id)
		}
		deps = append(deps, idx)
	}
	sort.Ints(deps)
	return deps, nil
}

// fetchKey hashes the request identity. Headers are canonical and sorted and the
// body is re-encoded, so equivalent requests share a key.
func fetchKey(endpoint string, req source.Request) (string, error) {
	headerKeys := make([]string, 0, len(req.Headers))
	for k := range req.Headers {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)

	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s\n", endpoint, req.Method, req.Path)
	for _, k := range headerKeys {
		fmt.Fprintf(h, "%s: %s\n", k, req.Headers[k])
	}

	if req.Body != nil {
		body, err := json.Marshal(req.Body)
		if err != nil {
			return "", fmt.Errorf("fetch body for %s is not JSON-serializable: %w", endpoint, err)
		}
		h.Write(body)
	}

	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
