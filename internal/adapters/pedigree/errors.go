package pedigree

import "errors"

var (
	// ErrMalformedPayload means the reply was not valid JSON at all.
	ErrMalformedPayload = errors.New("pedigree: malformed payload")

	// ErrSchemaViolation means the reply was JSON but broke the contract.
	ErrSchemaViolation = errors.New("pedigree: schema violation")
)
