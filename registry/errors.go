package registry

import (
	"designlink/core"
	"errors"
)

var (
	ErrTooLarge        = errors.New("asset too large")
	ErrInvalidFormat   = errors.New("invalid asset format")
	ErrMaxReached      = errors.New("maximum number of assets reached")
	ErrAlreadyUploaded = errors.New("asset already uploaded")
	ErrCorruptStorage  = errors.New("stored asset data is corrupted")
)

// PolicyError is returned when an upload is refused. Reason is meant to be
// shown to the user as-is; Err is one of the sentinels above.
type PolicyError struct {
	Kind   core.AssetKind
	Reason string
	Err    error
}

func (e *PolicyError) Error() string {
	return e.Reason
}

func (e *PolicyError) Unwrap() error {
	return e.Err
}
