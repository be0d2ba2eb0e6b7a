package balancer

import "errors"

// ErrNoBackendAvailable is returned when no cluster server in the candidate
// pool can take a chunk replica.
var ErrNoBackendAvailable = errors.New("no cluster server available")
