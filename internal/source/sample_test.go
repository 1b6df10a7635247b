package source

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-integrator/internal/common/errors"
)

func writeSample(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSamples(t *testing.T) {
	caller, err := LoadSamples(map[string]string{
		"api3": writeSample(t, "api3.json", `{"firstname":"John","id":12345678901234567890}`),
		"api2": writeSample(t, "api2.xml", `<user><email>a@b.com</email></user>`),
	})
	require.NoError(t, err)

	assert.True(t, caller.Has("api3"))
	assert.False(t, caller.Has("api1"))

	result, err := caller.Call(context.Background(), &Endpoint{Name: "api3"}, Request{Path: "/user"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, http.MethodGet, result.Method)
	assert.Equal(t, map[string]interface{}{
		"firstname": "John",
		"id":        json.Number("12345678901234567890"),
	}, result.Body)

	result, err = caller.Call(context.Background(), &Endpoint{Name: "api2"}, Request{Method: "post", Path: "/get-user"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, result.Method)
	assert.Equal(t, map[string]interface{}{
		"user": map[string]interface{}{"email": "a@b.com"},
	}, result.Body)
}

func TestLoadSamples_MissingFile(t *testing.T) {
	_, err := LoadSamples(map[string]string{"api3": filepath.Join(t.TempDir(), "nope.json")})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	assert.Contains(t, err.Error(), `endpoint "api3"`)
}

func TestSampleCaller_Errors(t *testing.T) {
	caller, err := LoadSamples(nil)
	require.NoError(t, err)

	_, err = caller.Call(context.Background(), &Endpoint{Name: "api1"}, Request{Path: "/"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	assert.Contains(t, err.Error(), `no sample body for endpoint "api1"`)

	caller.Add("api1", "application/json", []byte(`{}`))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = caller.Call(ctx, &Endpoint{Name: "api1"}, Request{Path: "/"})
	assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
}
