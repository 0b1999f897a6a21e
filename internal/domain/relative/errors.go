package relative

import "errors"

// ErrInsufficientField signals that a field-relative estimate was requested
// with zero horses. Callers that only need single-horse scoring must not
// treat this as fatal.
var ErrInsufficientField = errors.New("insufficient field")
