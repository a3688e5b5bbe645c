package scheduler

import "errors"

// Sentinel errors for engine operations.
var (
	ErrPermissionUnavailable = errors.New("notification permission unavailable")
	ErrInvalidSettings       = errors.New("invalid settings")
	ErrPersistence           = errors.New("persistence failure")
	ErrUnsupportedSchema     = errors.New("unsupported state schema version")
	ErrEngineStopped         = errors.New("engine stopped")
)
