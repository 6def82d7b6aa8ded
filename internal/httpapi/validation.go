package httpapi

import "errors"

var (
	errInvalidInt   = errors.New("must be an integer")
	errInvalidFloat = errors.New("must be a number")
	errOutOfRange   = errors.New("out of allowed range")
	errInvalidOrder = errors.New("must be ASC or DESC")
)
