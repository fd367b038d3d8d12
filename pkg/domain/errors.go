package domain

import "errors"

// ErrBuildInProgress is returned when a build is started for a flow
// session that already has an active attempt.
var ErrBuildInProgress = errors.New("a build is already in progress for this flow")

// ErrInvalidGraph is returned when order resolution fails (cycle,
// dangling reference). The graph is presumed broken; the caller must
// not start a build and the resolver is never retried automatically.
var ErrInvalidGraph = errors.New("flow graph is invalid")

// ErrDeliveryUnsupported is returned when the engine does not expose
// the requested delivery route. It triggers the one-shot fallback to
// polling.
var ErrDeliveryUnsupported = errors.New("event delivery not supported by engine")

// ErrEngineUnavailable is returned when the fallback to polling has
// also failed. It is the generic connectivity failure surfaced to the
// caller.
var ErrEngineUnavailable = errors.New("flow engine unavailable")

// ErrStartStopExclusive is returned when a caller scopes an order
// request with both a start and a stop vertex.
var ErrStartStopExclusive = errors.New("start and stop vertex are mutually exclusive")

// ErrPreBuildRejected is returned when the caller-supplied pre-build
// validator rejects the sorted vertex set. No vertex has run yet.
var ErrPreBuildRejected = errors.New("pre-build validation rejected the vertex set")

// ErrResultNotFound is returned by result stores when no build result
// exists for the requested vertex.
var ErrResultNotFound = errors.New("vertex build result not found")
