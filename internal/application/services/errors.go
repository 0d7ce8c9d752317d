package services

import "errors"

var (
	// ErrInvalidInput marks a request the caller must fix
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData is returned when price history cannot yet
	// support a signal
	ErrInsufficientData = errors.New("insufficient price history")
)
