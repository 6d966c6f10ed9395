package postgres

import "errors"

// ErrInvalidPrefix is returned when the configured table prefix is not a plain identifier.
var ErrInvalidPrefix = errors.New("galette/postgres: invalid table prefix")
