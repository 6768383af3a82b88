package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborators return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about records, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a record with the same identity already exists
// - ErrInvalidState: record in wrong state for requested operation
// - ErrMalformed: a persisted row could not be decoded
// - ErrUnavailable: backing file, database or broker temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrMalformed    = errors.New("malformed record")
	ErrUnavailable  = errors.New("unavailable")
)
