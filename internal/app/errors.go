package service

import "errors"

var (
	// ErrNotStarted is returned when Evaluate is called before Start.
	ErrNotStarted = errors.New("evaluator service not started")

	// ErrEmptySubject is returned when a request names no subject horse.
	ErrEmptySubject = errors.New("analysis request has no subject horse")
)
