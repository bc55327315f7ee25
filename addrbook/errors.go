package addrbook

import "errors"

// ErrSlabExhausted is returned by Book.Reserve when the local slab has run
// out of capacity. Unlike the original design (which aborts the calling
// goroutine outright), this Go rendition returns it as an ordinary error:
// the caller — normally Supervisor's spawn path — decides how to surface
// it (log and refuse that one spawn, in the Supervisor's case).
var ErrSlabExhausted = errors.New("addrbook: too many actors")
