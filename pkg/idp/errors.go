package idp

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned for every token-exchange or userinfo
// validation failure. The individual checks are deliberately collapsed
// into one undifferentiated error so callers cannot probe which check
// failed.
var ErrUnauthorized = errors.New("unauthorized")

// ErrMissingParameter is returned when a required authorize parameter is
// absent
type ErrMissingParameter struct {
	Name string
}

func (e ErrMissingParameter) Error() string {
	return fmt.Sprintf("missing required parameter: %s", e.Name)
}
