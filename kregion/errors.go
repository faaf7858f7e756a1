package kregion

import "errors"

// ErrRegionNotFound is returned when a region index does not resolve.
var ErrRegionNotFound = errors.New("region not found")
