package types

import "errors"

var (
	// ErrEndOfStream is returned by an event source once it has no more events.
	ErrEndOfStream = errors.New("end of event stream")

	// ErrConflict marks a conditional write rejected because the version
	// token was stale.
	ErrConflict = errors.New("version conflict")

	// ErrStoreFault marks any store failure that is not a conflict.
	ErrStoreFault = errors.New("store fault")
)
