package repository

import "errors"

// Sentinel kinds for field store errors.
var (
	ErrNotFound     = errors.New("horse not found")
	ErrEmptyHorseID = errors.New("empty horse id")
)
