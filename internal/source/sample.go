package source

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"api-integrator/internal/common/errors"
)

// SampleCaller answers every request to an endpoint with its local sample body
// and never touches the network. It pairs with the simulate mode, which does
// not send.
type SampleCaller struct {
	bodies map[string]interface{}
	raw    map[string][]byte
}

// LoadSamples reads one sample file per endpoint name. A .xml file is decoded
// as XML and anything else as JSON.
func LoadSamples(files map[string]string) (*SampleCaller, error) {
	c := &SampleCaller{
		bodies: make(map[string]interface{}, len(files)),
		raw:    make(map[string][]byte, len(files)),
	}
	for endpoint, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.ConfigErrorf("failed to read sample for endpoint %q: %v", endpoint, err).
				WithContext("file", path)
		}
		c.Add(endpoint, sampleContentType(path), raw)
	}
	return c, nil
}

// Add registers a raw sample body for an endpoint
func (c *SampleCaller) Add(endpoint, contentType string, raw []byte) {
	c.bodies[endpoint] = DecodeBody(contentType, raw)
	c.raw[endpoint] = raw
}

// Has reports whether an endpoint has a sample
func (c *SampleCaller) Has(endpoint string) bool {
	_, ok := c.bodies[endpoint]
	return ok
}

// Call implements Caller. A read from an endpoint without a sample fails with a
// configuration error.
func (c *SampleCaller) Call(ctx context.Context, endpoint *Endpoint, req Request) (*FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.TransportError("request failed", err).WithContext("endpoint", endpoint.Name)
	}

	body, ok := c.bodies[endpoint.Name]
	if !ok {
		return nil, errors.ConfigErrorf("no sample body for endpoint %q", endpoint.Name)
	}

	return &FetchResult{
		Endpoint:   endpoint.Name,
		Method:     ResolveMethod(req.Method, endpoint.Method, http.MethodGet),
		URL:        "sample://" + endpoint.Name + req.Path,
		StatusCode: http.StatusOK,
		Body:       body,
		RawBody:    c.raw[endpoint.Name],
	}, nil
}

func sampleContentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/json"
}
