package freelist

import "github.com/pkg/errors"

// ErrExhausted is returned by Allocate when there is no free space at
// all (allocated == 0).
var ErrExhausted = errors.New("freelist: exhausted")

// ErrPartialAllocation is returned by Allocate when it found some free
// space but less than requested; the caller should reissue Allocate for
// the remainder.
var ErrPartialAllocation = errors.New("freelist: partial allocation")
