package cache

import "errors"

var ErrMiss = errors.New("cache: key not found")
