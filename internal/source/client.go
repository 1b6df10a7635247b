package source

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/clbanning/mxj/v2"
	"golang.org/x/time/rate"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/common/logging"
	"api-integrator/internal/mapping"
)

// Client is the single-attempt Caller used by the orchestrator
type Client struct {
	httpClient *http.Client
	logger     logging.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a client. A nil logger uses the global logger.
func NewClient(httpClient *http.Client, logger logging.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger.WithFields(logging.Component("source_client")),
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Call issues one request and waits for the full response
func (c *Client) Call(ctx context.Context, endpoint *Endpoint, req Request) (*FetchResult, error) {
	target, err := BuildURL(endpoint.BaseURL, req.Path)
	if err != nil {
		return nil, err
	}

	method := ResolveMethod(req.Method, endpoint.Method, http.MethodGet)
	headers := MergeHeaders(endpoint.Headers, req.Headers)

	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.InternalError("failed to encode request body", err)
		}
		bodyReader = bytes.NewReader(encoded)
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, errors.ConfigErrorf("failed to create request for %s: %v", endpoint.Name, err)
	}
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	if limiter := c.limiterFor(endpoint); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, errors.TransportError("rate limit wait aborted", err).
				WithContext("endpoint", endpoint.Name)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		transportErr := errors.TransportError("request failed", err).
			WithContext("endpoint", endpoint.Name)
		var netErr net.Error
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			transportErr.WithContext("timeout", true)
		}
		return nil, transportErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		return nil, errors.TransportError("failed to read response body", err).
			WithContext("endpoint", endpoint.Name)
	}

	c.logger.Debug("HTTP call completed",
		logging.Endpoint(endpoint.Name),
		logging.String("method", method),
		logging.URL(target),
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", duration),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.RequestError(resp.StatusCode, raw).
			WithContext("endpoint", endpoint.Name)
	}

	return &FetchResult{
		Endpoint:   endpoint.Name,
		Method:     method,
		URL:        target,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       DecodeBody(resp.Header.Get("Content-Type"), raw),
		RawBody:    raw,
		Duration:   duration,
	}, nil
}

func (c *Client) limiterFor(endpoint *Endpoint) *rate.Limiter {
	if endpoint.RateLimit == nil || endpoint.RateLimit.RequestsPerSecond <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	limiter, ok := c.limiters[endpoint.Name]
	if !ok {
		burst := endpoint.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(endpoint.RateLimit.RequestsPerSecond), burst)
		c.limiters[endpoint.Name] = limiter
	}
	return limiter
}

// DecodeBody parses a response by declared content type. XML becomes an object
// keyed by the root element; anything else is tried as JSON. An empty body is
// nil and an unparseable one is returned as a string.
func DecodeBody(contentType string, raw []byte) interface{} {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if isXML(contentType) {
		m, err := mxj.NewMapXml(raw)
		if err == nil {
			return map[string]interface{}(m)
		}
		return string(raw)
	}

	if parsed, err := mapping.DecodeJSON(raw); err == nil {
		return parsed
	}
	return string(raw)
}

func isXML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/xml" || mediaType == "text/xml" || strings.HasSuffix(mediaType, "+xml")
}
