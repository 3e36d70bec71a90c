package events

import (
	"time"

	language "github.com/hanpama/gqlguard/internal/language"
)

// OperationStart is emitted when a GraphQL request enters the pipeline.
type OperationStart struct {
	Query         string
	OperationName string
}

// OperationFinish is emitted after the request was validated and, if valid,
// forwarded.
type OperationFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// ParseStart is emitted before a document is parsed.
type ParseStart struct{}

// ParseFinish is emitted after parsing. Err is nil on success.
type ParseFinish struct {
	Err      *language.Error
	Duration time.Duration
}

// ValidationStart is emitted before validation rules run.
type ValidationStart struct{}

// ValidationFinish is emitted after validation with every reported diagnostic.
type ValidationFinish struct {
	Errors   language.ErrorList
	Duration time.Duration
}
