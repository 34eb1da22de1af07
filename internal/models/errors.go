package models

import "errors"

// ErrMalformedResponse marks an upstream payload that does not match the
// expected schema. It is handled exactly like a transport error.
var ErrMalformedResponse = errors.New("malformed response")
