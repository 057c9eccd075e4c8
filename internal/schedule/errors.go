package schedule

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrProgramExists    = errors.New("vehicle already has a program of this type")
	ErrFulfilled        = errors.New("occurrence is already fulfilled")
	ErrAlreadyFulfilled = errors.New("a completion already exists for this vehicle, type and date")
)
