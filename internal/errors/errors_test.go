package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("underlying error")

	err := New(RepositoryUnavailable, "not a git repository", cause)

	if err.Code != RepositoryUnavailable {
		t.Errorf("Code = %v, want %v", err.Code, RepositoryUnavailable)
	}
	if err.Message != "not a git repository" {
		t.Errorf("Message = %q, want %q", err.Message, "not a git repository")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause through Unwrap")
	}
}

func TestGraphError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      CorruptObject,
			message:   "cannot read tree",
			cause:     errors.New("bad object"),
			wantParts: []string{"CORRUPT_OBJECT", "cannot read tree", "bad object"},
		},
		{
			name:      "without cause",
			code:      PathNotFound,
			message:   "no such file",
			wantParts: []string{"PATH_NOT_FOUND", "no such file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.cause)
			got := err.Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want it to contain %q", got, part)
				}
			}
		})
	}
}

func TestWithDetails(t *testing.T) {
	err := New(PathNotFound, "no such file", nil).WithDetails(map[string]interface{}{
		"path": "src/missing.go",
	})

	details, ok := err.Details.(map[string]interface{})
	if !ok {
		t.Fatal("Details should be a map")
	}
	if details["path"] != "src/missing.go" {
		t.Errorf("details.path = %v, want src/missing.go", details["path"])
	}
}

func TestHasCode(t *testing.T) {
	base := New(InvalidArgument, "k must be positive", nil)
	wrapped := fmt.Errorf("query failed: %w", base)

	if !HasCode(base, InvalidArgument) {
		t.Error("HasCode should match the direct error")
	}
	if !HasCode(wrapped, InvalidArgument) {
		t.Error("HasCode should match through wrapping")
	}
	if HasCode(wrapped, PathNotFound) {
		t.Error("HasCode should not match a different code")
	}
	if HasCode(errors.New("plain"), InvalidArgument) {
		t.Error("HasCode should not match a foreign error")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(ScanCancelled, "cancelled", nil)); got != ScanCancelled {
		t.Errorf("CodeOf = %v, want %v", got, ScanCancelled)
	}
	if got := CodeOf(errors.New("plain")); got != InternalError {
		t.Errorf("CodeOf(foreign) = %v, want %v", got, InternalError)
	}
}
