package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"unauthorized", errors.New("401 unauthorized"), ErrorTypeAuth, false},
		{"bad api key", errors.New("invalid api key provided"), ErrorTypeAuth, false},
		{"model missing", errors.New("model gpt-5o does not exist"), ErrorTypeModel, false},
		{"endpoint 404", errors.New("404 page not found"), ErrorTypeEndpoint, false},
		{"conn refused", errors.New("dial tcp: connection refused"), ErrorTypeEndpoint, true},
		{"timeout", errors.New("context deadline exceeded"), ErrorTypeEndpoint, true},
		{"rate limited", errors.New("429 too many requests"), ErrorTypeUnknown, true},
		{"server error", errors.New("502 bad gateway"), ErrorTypeEndpoint, true},
		{"unclassified", errors.New("something odd"), ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", got.Type, tt.wantType)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error must wrap the cause")
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := ClassifyError(nil); got != nil {
		t.Fatalf("ClassifyError(nil) = %v, want nil", got)
	}
}

func TestClassifyError_PassesThroughStructuredErrors(t *testing.T) {
	orig := NewError(ErrorTypeAuth, "authentication failed", false, nil)
	wrapped := fmt.Errorf("call failed: %w", orig)

	if got := ClassifyError(wrapped); got != orig {
		t.Fatal("expected the original structured error back")
	}
}

func TestError_StatusCodeInMessage(t *testing.T) {
	e := ClassifyError(errors.New("503 service unavailable"))
	if e.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", e.StatusCode)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewError(ErrorTypeEndpoint, "timeout", true, nil)) {
		t.Error("retryable structured error reported as permanent")
	}
	if IsRetryable(errors.New("plain error")) {
		t.Error("plain errors are not retryable here")
	}
}
