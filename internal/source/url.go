package source

import (
	"net/http"
	"net/url"
	"strings"

	"api-integrator/internal/common/errors"
)

// BuildURL joins an endpoint base URL and a request path. Query parameters of
// both are merged, with the request path winning on a repeated key.
func BuildURL(baseURL, path string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", errors.ConfigErrorf("invalid base URL %q: %v", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", errors.ConfigErrorf("base URL %q must include scheme and host", baseURL)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", errors.ConfigErrorf("invalid path %q: %v", path, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", errors.ConfigErrorf("path %q must be relative to the endpoint base URL", path)
	}

	joined := *base
	if ref.Path != "" {
		// Join the escaped forms so an encoded "/" (%2F) stays a single segment.
		escaped := strings.TrimSuffix(base.EscapedPath(), "/") + "/" + strings.TrimPrefix(ref.EscapedPath(), "/")
		unescaped, err := url.PathUnescape(escaped)
		if err != nil {
			return "", errors.ConfigErrorf("invalid path %q: %v", path, err)
		}
		joined.Path = unescaped
		joined.RawPath = escaped
	}

	query := base.Query()
	for key, values := range ref.Query() {
		query[key] = values
	}
	joined.RawQuery = query.Encode()
	joined.Fragment = ""

	return joined.String(), nil
}

// MergeHeaders returns defaults overlaid by overrides. Keys are canonicalised so
// "content-type" overrides "Content-Type".
func MergeHeaders(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range overrides {
		merged[http.CanonicalHeaderKey(k)] = v
	}
	return merged
}

// ResolveMethod picks the request method, then the endpoint default, then fallback
func ResolveMethod(requested, endpointDefault, fallback string) string {
	switch {
	case requested != "":
		return strings.ToUpper(requested)
	case endpointDefault != "":
		return strings.ToUpper(endpointDefault)
	default:
		return fallback
	}
}
