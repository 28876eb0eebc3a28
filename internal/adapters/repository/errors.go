package repository

import "errors"

// Sentinel errors for repository operations.
var (
	ErrPersist        = errors.New("persist snapshot failed")
	ErrLoad           = errors.New("load snapshot failed")
	ErrInvalidPatient = errors.New("invalid patient")
)
