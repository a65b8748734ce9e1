// Package storage provides the data persistence layer for the magpie application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harlowes/magpie/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidRecord      = errors.New("invalid linking record")
	ErrInvalidCursor      = errors.New("invalid run cursor")
	ErrInvalidConfidence  = errors.New("confidence must be between 0 and 1")
	ErrUnknownMatchMethod = errors.New("unknown match method")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateLinkingRecord(record *model.LinkingRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if strings.TrimSpace(record.SourceID) == "" {
		return fmt.Errorf("%w: missing source identifier", ErrInvalidRecord)
	}
	if record.Confidence < 0 || record.Confidence > 1 {
		return fmt.Errorf("%w: %f", ErrInvalidConfidence, record.Confidence)
	}
	switch record.Method {
	case model.MethodCodeExact, model.MethodTitleSimilarity, model.MethodBrandModel, model.MethodNone:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMatchMethod, record.Method)
	}
}

func validateCursor(cursor *model.RunCursor) error {
	if cursor == nil {
		return fmt.Errorf("%w: cursor", ErrNilParameter)
	}
	if strings.TrimSpace(cursor.Supplier) == "" {
		return fmt.Errorf("%w: missing supplier", ErrInvalidCursor)
	}
	if cursor.LastProcessedIndex < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidCursor, cursor.LastProcessedIndex)
	}
	return nil
}
