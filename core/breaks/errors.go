package breaks

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPath    = errors.New("malformed path")
	ErrUnknownEdge      = errors.New("unknown edge")
	ErrUnknownNode      = errors.New("unknown node")
	ErrDisconnectedPath = errors.New("disconnected path")
	ErrInvalidLength    = errors.New("invalid edge length")
	ErrInvalidCoord     = errors.New("invalid node coordinate")
	ErrTripTooLong      = errors.New("single-driver trip exceeds distance limit")
)

// DataQualityError reports a trip that was skipped. It is a warning: the
// trip simply produces no breaks.
type DataQualityError struct {
	TripID int64
	Err    error
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("trip %d: %v", e.TripID, e.Err)
}

func (e *DataQualityError) Unwrap() error { return e.Err }
