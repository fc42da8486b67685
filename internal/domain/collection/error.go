package collection

import (
	"errors"
)

var (
	ErrNotFound    = errors.New("dataset not found")
	ErrInvalidData = errors.New("invalid row data")
)
