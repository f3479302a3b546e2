package errors

import "errors"

var (
	ErrRelationConflict = errors.New("identical un-expired relation already exists")
	ErrRelationSelf     = errors.New("relation endpoints must differ")
	ErrInvalidValidity  = errors.New("validity window start must not be after end")
	ErrInvalidRelData   = errors.New("invalid relation data")
)
