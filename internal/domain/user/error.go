package user

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidAuth  = errors.New("invalid credentials")
	ErrInvalidInput = errors.New("invalid input")
)
