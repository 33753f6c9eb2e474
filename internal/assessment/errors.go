package assessment

import "errors"

var (
	ErrInvalidOptions  = errors.New("invalid assessment options")
	ErrGeneration      = errors.New("question generation failed")
	ErrMalformedOutput = errors.New("malformed generation output")
	ErrNotFound        = errors.New("assessment not found")
)
