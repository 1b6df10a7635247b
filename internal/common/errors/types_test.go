package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name: "basic error",
			appError: &AppError{
				Type:    ErrTypeConfig,
				Message: "rule references unknown endpoint",
			},
			want: "config: rule references unknown endpoint",
		},
		{
			name: "error with code",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "bad flag",
				Code:    "CLI001",
			},
			want: "validation: bad flag: code=CLI001",
		},
		{
			name: "error with status",
			appError: &AppError{
				Type:       ErrTypeRequest,
				Message:    "unexpected HTTP status 500",
				StatusCode: 500,
			},
			want: "request: unexpected HTTP status 500: status=500",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeTransport,
				Message: "request failed",
				Cause:   errors.New("connection refused"),
			},
			want: "transport: request failed: cause=connection refused",
		},
		{
			name: "error with sorted context",
			appError: &AppError{
				Type:    ErrTypeDependency,
				Message: "unsatisfied dependency",
				Context: map[string]interface{}{
					"rule":   "api3-to-api1",
					"failed": "api3 GET /user",
				},
			},
			want: "unsatisfied_dependency: unsatisfied dependency: context={failed=api3 GET /user, rule=api3-to-api1}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			if got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	appError := TransportError("request failed", cause)

	if appError.Unwrap() != cause {
		t.Errorf("AppError.Unwrap() = %v, want %v", appError.Unwrap(), cause)
	}

	if ConfigError("no cause").Unwrap() != nil {
		t.Error("AppError.Unwrap() without cause should be nil")
	}
}

func TestAppError_WithContext(t *testing.T) {
	appError := ValidationError("validation failed")

	result := appError.WithContext("field", "method")
	if result != appError {
		t.Error("WithContext should return the same instance")
	}

	appError.WithContext("value", "FETCH")
	if len(appError.Context) != 2 {
		t.Errorf("Context length = %d, want 2", len(appError.Context))
	}
}

func TestRequestError(t *testing.T) {
	err := RequestError(401, []byte(`{"error":"Unauthorized"}`))

	if err.Type != ErrTypeRequest {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypeRequest)
	}
	if err.StatusCode != 401 {
		t.Errorf("StatusCode = %d, want 401", err.StatusCode)
	}
	if err.Body != `{"error":"Unauthorized"}` {
		t.Errorf("Body = %q", err.Body)
	}
}

func TestUnsatisfiedDependencyError(t *testing.T) {
	err := UnsatisfiedDependencyError("api3-to-api2", []string{"api3 GET /user"})

	if err.Type != ErrTypeDependency {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypeDependency)
	}
	if err.Message != "unsatisfied dependency" {
		t.Errorf("Message = %q, want 'unsatisfied dependency'", err.Message)
	}
	if err.Context["rule"] != "api3-to-api2" {
		t.Errorf("Context[rule] = %v", err.Context["rule"])
	}
}

func TestConfigErrorf(t *testing.T) {
	err := ConfigErrorf("rule %q: unknown endpoint %q", "r1", "api9")

	if err.Type != ErrTypeConfig {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypeConfig)
	}
	if err.Message != `rule "r1": unknown endpoint "api9"` {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"matching type", ConfigError("test"), ErrTypeConfig, true},
		{"non-matching type", ConfigError("test"), ErrTypeTransport, false},
		{"wrapped app error", fmt.Errorf("load: %w", ConfigError("test")), ErrTypeConfig, true},
		{"non-app error", errors.New("regular error"), ErrTypeConfig, false},
		{"nil error", nil, ErrTypeConfig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsType(tt.err, tt.errType); got != tt.want {
				t.Errorf("IsType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"app error", RequestError(404, nil), ErrTypeRequest},
		{"regular error", errors.New("regular error"), ErrTypeInternal},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetType(tt.err); got != tt.want {
				t.Errorf("GetType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorChaining(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := fmt.Errorf("outer: %w", InternalError("wrapped error", originalErr))

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("errors.Is should work with wrapped AppError")
	}

	appErr, ok := As(wrappedErr)
	if !ok {
		t.Fatal("As should find the AppError")
	}
	if appErr.Type != ErrTypeInternal {
		t.Errorf("Unwrapped AppError type = %v, want %v", appErr.Type, ErrTypeInternal)
	}
}
