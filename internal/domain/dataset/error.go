package dataset

import "errors"

var (
	ErrInvalidRecord     = errors.New("invalid record")
	ErrUnknownCollection = errors.New("unknown collection")
)
