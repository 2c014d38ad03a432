package index

import "errors"

// ErrNotFound indicates no index exists at the given directory.
var ErrNotFound = errors.New("index not found")

// ErrCorrupt indicates index artifacts exist but are inconsistent with the
// manifest or with each other.
var ErrCorrupt = errors.New("index corrupt")

// ErrVectorLengthMismatch indicates two vectors have different dimensions.
var ErrVectorLengthMismatch = errors.New("vector length mismatch")
