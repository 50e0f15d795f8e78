package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrScopeDenied    = errors.New("scope denied")
	ErrCacheFetch     = errors.New("dataset fetch failed")
	ErrSchemaMismatch = errors.New("dataset schema mismatch")
	ErrGeneration     = errors.New("code generation failed")
	ErrExecution      = errors.New("code execution failed")
	ErrSynthesis      = errors.New("answer synthesis failed")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
