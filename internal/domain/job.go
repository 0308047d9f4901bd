package domain

import (
	"context"
	"time"
)

// JobRequest is one geocoding request read from the batch host.
type JobRequest struct {
	RequestID  string
	DryRun     bool
	Parameters map[string]any
	// DecodeErr is set when the message could not be decoded. The request
	// then fails without reaching the geocoder.
	DecodeErr error

	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// JobResult carries the records produced for one request, or the reason the
// request was rejected.
type JobResult struct {
	RequestID      string
	Records        []Record
	Customizations []map[string]any
	// Properties are the request-level serializer hints.
	Properties map[string]any

	// Err is set when the request failed; Records is then empty.
	Err error
}

// Failed reports whether the request was rejected.
func (r JobResult) Failed() bool {
	return r.Err != nil
}
