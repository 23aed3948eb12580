package puzzle

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrorsDistinct(t *testing.T) {
	errs := []error{
		ErrTemplateNotFound,
		ErrMultiplePrimaryFragments,
		ErrFragmentUpstreamFailure,
		ErrAssetFetchFailure,
		ErrPlaceholderFetchFailure,
		ErrUnknownInjectType,
	}

	for i, e1 := range errs {
		for j, e2 := range errs {
			if i != j && errors.Is(e1, e2) {
				t.Errorf("sentinel errors should be distinct: %v and %v", e1, e2)
			}
		}
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil", nil, false},
		{"template not found", ErrTemplateNotFound, true},
		{"multiple primary", ErrMultiplePrimaryFragments, true},
		{"wrapped template not found", fmt.Errorf("compile: %w", ErrTemplateNotFound), true},
		{"upstream failure", ErrFragmentUpstreamFailure, false},
		{"other error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.expect {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}

func TestIsRecovered(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil", nil, false},
		{"fragment upstream failure", ErrFragmentUpstreamFailure, true},
		{"asset fetch failure", ErrAssetFetchFailure, true},
		{"placeholder fetch failure", ErrPlaceholderFetchFailure, true},
		{"unknown inject type", ErrUnknownInjectType, true},
		{"template not found", ErrTemplateNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecovered(tt.err); got != tt.expect {
				t.Errorf("IsRecovered(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}
