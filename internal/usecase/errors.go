package usecase

import "errors"

var (
	// ErrSyncInProgress is returned when another run holds the guard of the same table.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrUnknownUniverse is returned for universe names absent from configuration.
	ErrUnknownUniverse = errors.New("unknown universe")
)
