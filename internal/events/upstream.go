package events

import (
	"time"

	astutil "github.com/hanpama/gqlguard/internal/astutil"
)

// UpstreamStart is emitted before a validated request is forwarded.
type UpstreamStart struct {
	URL   string
	Batch int
}

// UpstreamError is one GraphQL error returned by the upstream server.
type UpstreamError struct {
	Message string
	Path    *astutil.Path
}

// UpstreamFinish is emitted once the upstream response has been read.
type UpstreamFinish struct {
	URL      string
	Status   int
	Errors   []UpstreamError
	Err      error
	Duration time.Duration
}
