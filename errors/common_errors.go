package errors

import "errors"

var (
	ErrInternalServer    = errors.New("internal server error")
	ErrDatabaseOperation = errors.New("database operation failed")
	ErrCacheOperation    = errors.New("cache operation failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTokenNotFound     = errors.New("token not found")
	ErrQueueClosed       = errors.New("invalidation queue closed")
)
