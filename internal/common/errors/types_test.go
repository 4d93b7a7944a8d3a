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
				Message: "configuration is invalid",
			},
			want: "config: configuration is invalid",
		},
		{
			name: "error with status",
			appError: &AppError{
				Type:    ErrTypeAuth,
				Message: "developer token rejected",
				Status:  401,
			},
			want: "authentication: developer token rejected: status=401",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeConnection,
				Message: "domo request failed",
				Cause:   errors.New("network timeout"),
			},
			want: "connection: domo request failed: cause=network timeout",
		},
		{
			name: "error with sorted context",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "field validation failed",
				Context: map[string]interface{}{
					"value": "invalid",
					"field": "instanceDomain",
				},
			},
			want: "validation: field validation failed: context={field=instanceDomain, value=invalid}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appError.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	appError := InternalError("wrapper error", cause)

	if !errors.Is(appError, cause) {
		t.Errorf("errors.Is(appError, cause) = false, want true")
	}

	if ConfigError("no cause").Unwrap() != nil {
		t.Errorf("Unwrap() without cause should be nil")
	}
}

func TestAppError_WithContextAndStatus(t *testing.T) {
	appError := ValidationError("validation failed")

	result := appError.WithContext("field", "id").WithStatus(422)

	if result != appError {
		t.Error("WithContext should return the same instance")
	}
	if appError.Context["field"] != "id" {
		t.Errorf("Context[field] = %v, want id", appError.Context["field"])
	}
	if appError.Status != 422 {
		t.Errorf("Status = %v, want 422", appError.Status)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		err     *AppError
		errType ErrorType
		message string
	}{
		{"connection", ConnectionError("dial failed", nil), ErrTypeConnection, "dial failed"},
		{"validation", ValidationError("bad input"), ErrTypeValidation, "bad input"},
		{"config", ConfigError("missing hostPort"), ErrTypeConfig, "missing hostPort"},
		{"invalid source", InvalidSourceError("Expected DomoPipelineConnection"), ErrTypeInvalidSource, "Expected DomoPipelineConnection"},
		{"auth", AuthError("token expired"), ErrTypeAuth, "token expired"},
		{"not found", NotFoundError("pipeline domo.42"), ErrTypeNotFound, "pipeline domo.42 not found"},
		{"internal", InternalError("boom", nil), ErrTypeInternal, "boom"},
		{"rate limit", RateLimitError("domo"), ErrTypeRateLimit, "rate limit exceeded for domo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.errType {
				t.Errorf("Type = %v, want %v", tt.err.Type, tt.errType)
			}
			if tt.err.Message != tt.message {
				t.Errorf("Message = %v, want %v", tt.err.Message, tt.message)
			}
		})
	}
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"matching type", ConfigError("x"), ErrTypeConfig, true},
		{"different type", ConfigError("x"), ErrTypeAuth, false},
		{"wrapped app error", fmt.Errorf("create source: %w", InvalidSourceError("x")), ErrTypeInvalidSource, true},
		{"plain error", errors.New("x"), ErrTypeConfig, false},
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
	if got := GetType(nil); got != "" {
		t.Errorf("GetType(nil) = %v, want empty", got)
	}
	if got := GetType(errors.New("plain")); got != ErrTypeInternal {
		t.Errorf("GetType(plain) = %v, want %v", got, ErrTypeInternal)
	}
	if got := GetType(NotFoundError("x")); got != ErrTypeNotFound {
		t.Errorf("GetType(not found) = %v, want %v", got, ErrTypeNotFound)
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		want      ErrorType
	}{
		{404, false, ErrTypeNotFound},
		{401, false, ErrTypeAuth},
		{403, false, ErrTypeAuth},
		{429, false, ErrTypeRateLimit},
		{429, true, ErrTypeInternal},
		{400, false, ErrTypeValidation},
		{409, false, ErrTypeValidation},
		{500, false, ErrTypeInternal},
		{503, false, ErrTypeInternal},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d retryable=%v", tt.status, tt.retryable), func(t *testing.T) {
			err := FromHTTPStatus(tt.status, "https://api.domo.com/x", "body", tt.retryable)
			if err.Type != tt.want {
				t.Errorf("Type = %v, want %v", err.Type, tt.want)
			}
			if got := StatusOf(fmt.Errorf("wrapped: %w", err)); got != tt.status {
				t.Errorf("StatusOf() = %v, want %v", got, tt.status)
			}
		})
	}

	if got := StatusOf(errors.New("plain")); got != 0 {
		t.Errorf("StatusOf(plain) = %v, want 0", got)
	}
}
