package service

import "errors"

var (
	// ErrInvalidRequest marks caller mistakes: bad ids, empty inputs, stage
	// lists that do not build.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoCCM is returned when a pipeline needs a matrix and none has been
	// fitted yet.
	ErrNoCCM = errors.New("no color correction matrix has been fitted")
)
