package errprocess

import (
	"errors"
	"fmt"

	"match_sync_service/pkg/logger"
)

// Kind definition error category.
// Transport and Normalization are recovered internally and never reach
// a caller; OptimisticCommit and Auth are surfaced to the initiator.
type Kind string

const (
	// KindTransport connection level failure, recovered by reconnect
	KindTransport Kind = "transport"
	// KindNormalization malformed or unknown inbound event, dropped
	KindNormalization Kind = "normalization"
	// KindOptimisticCommit REST call backing an optimistic mutation failed
	KindOptimisticCommit Kind = "optimistic_commit"
	// KindAuth session expired or invalid, fatal to the session only
	KindAuth Kind = "auth"
	// KindUnknown not classified
	KindUnknown Kind = "unknown"
)

type kindError struct {
	kind  Kind
	msg   string
	cause error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *kindError) Unwrap() error {
	return e.cause
}

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// SetKind log and return a classified error wrapping cause
func SetKind(kind Kind, errMsg string, cause error) error {
	e := &kindError{kind: kind, msg: errMsg, cause: cause}
	logger.Log.Error(e.Error())
	return e
}

// KindOf report the category of err, KindUnknown when unclassified
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}
