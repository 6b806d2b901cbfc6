package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"missing", NewMissingVariableError("Inflation"), KindMissingData},
		{"non-finite", NewNonFiniteError("Vat Rate", 3), KindNonFiniteValue},
		{"rank", NewRankError(4, 6), KindRankDeficiency},
		{"insufficient df reports as rank deficiency", NewInsufficientDFError(6, 6), KindRankDeficiency},
		{"empty", fmt.Errorf("screen: %w", ErrEmptyGroup), KindEmptyGroup},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInsufficientDFWrapsRankDeficiency(t *testing.T) {
	err := NewInsufficientDFError(3, 6)
	if !errors.Is(err, ErrInsufficientDF) {
		t.Error("expected ErrInsufficientDF in chain")
	}
	if !errors.Is(err, ErrRankDeficient) {
		t.Error("expected ErrRankDeficient in chain")
	}
	if !IsUnitError(err) {
		t.Error("expected unit error")
	}
}
