package estimate

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFitSet is returned when no record has score, year, episodes and studio.
	ErrEmptyFitSet = errors.New("no complete records to fit")
	// ErrUnderdetermined is wrapped by *UnderdeterminedError.
	ErrUnderdetermined = errors.New("underdetermined fit")
	// ErrUnseenCategory is wrapped by *UnseenCategoryError.
	ErrUnseenCategory = errors.New("unseen category")
)

// UnderdeterminedError reports a fit set smaller than the feature width.
type UnderdeterminedError struct {
	Records  int
	Features int
}

func (e *UnderdeterminedError) Error() string {
	return fmt.Sprintf("underdetermined fit: %d complete records for %d features", e.Records, e.Features)
}

func (e *UnderdeterminedError) Unwrap() error { return ErrUnderdetermined }

// UnseenCategoryError reports a label outside the fitted vocabulary.
type UnseenCategoryError struct {
	Field string
	Value string
}

func (e *UnseenCategoryError) Error() string {
	return fmt.Sprintf("unknown %s %q: not present in the fitted vocabulary", e.Field, e.Value)
}

func (e *UnseenCategoryError) Unwrap() error { return ErrUnseenCategory }
