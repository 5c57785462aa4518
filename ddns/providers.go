package ddns

import (
	"cfsync/common"
	"context"
	"errors"
)

// RecordTypeA is the only record type the daemon publishes.
const RecordTypeA = "A"

// ErrTransport marks a provider call that could not be completed.
var ErrTransport = errors.New("provider request failed")

type Interface interface {
	// FindRecord lists the records of the zone named name.
	FindRecord(ctx context.Context, name string) ([]Record, error)
	// UpsertRecord writes r to the record addressed by r.ID. It never
	// returns an error: failures are classified in the Result.
	UpsertRecord(ctx context.Context, r Record) Result
}

type Record struct {
	ID      string
	Name    string
	Type    string
	Content string
	TTL     int
	Proxied bool
}

// TransportError wraps the cause of a provider call that could not be completed.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Result is the classified outcome of one upsert.
type Result struct {
	Status     common.Status
	StatusCode int
	Body       Body
	Err        error
}

// Summary is the human readable description stored in the audit log.
func (r Result) Summary() string {
	if r.Status == common.StatusError && r.Err != nil {
		return r.Err.Error()
	}
	if r.Body == nil {
		return ""
	}
	return r.Body.Summary()
}
