package models

import (
	"time"

	"famtree/pkg/domain"
	dErrors "famtree/pkg/domain-errors"
)

// RequestType enumerates the mutations routed through administrator approval.
type RequestType string

const (
	RequestAddLink      RequestType = "ADD_LINK"
	RequestRemoveLink   RequestType = "REMOVE_LINK"
	RequestAddPerson    RequestType = "ADD_PERSON"
	RequestModifyInfo   RequestType = "MODIFY_INFO"
	RequestRemovePerson RequestType = "REMOVE_PERSON"
)

func (t RequestType) IsValid() bool {
	switch t {
	case RequestAddLink, RequestRemoveLink, RequestAddPerson, RequestModifyInfo, RequestRemovePerson:
		return true
	}
	return false
}

// RequestStatus is the workflow state of a request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusAccepted RequestStatus = "ACCEPTED"
	StatusRejected RequestStatus = "REJECTED"
)

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// InfoChanges carries the optional field updates of a MODIFY_INFO request.
// Identity fields land on the person; contact fields on its account.
type InfoChanges struct {
	GivenName   *string
	FamilyName  *string
	Nationality *string
	Gender      *domain.Gender
	Contact     ContactChanges
}

// IsEmpty reports whether no field is set.
func (c InfoChanges) IsEmpty() bool {
	return c.GivenName == nil && c.FamilyName == nil && c.Nationality == nil &&
		c.Gender == nil && c.Contact.IsEmpty()
}

// Equal compares the pointed-to values field by field.
func (c InfoChanges) Equal(o InfoChanges) bool {
	return sameValue(c.GivenName, o.GivenName) &&
		sameValue(c.FamilyName, o.FamilyName) &&
		sameValue(c.Nationality, o.Nationality) &&
		sameValue(c.Gender, o.Gender) &&
		sameValue(c.Contact.Email, o.Contact.Email) &&
		sameValue(c.Contact.Phone, o.Contact.Phone) &&
		sameValue(c.Contact.Address, o.Contact.Address)
}

func sameValue[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Request is an administrative request awaiting or past resolution.
//
// Invariants:
//   - Status starts PENDING; PENDING -> ACCEPTED | REJECTED only
//   - Kind is set for link requests and empty otherwise
//   - ResolvedAt and ResolvedBy are set exactly when Status is terminal
type Request struct {
	ID         domain.RequestID
	Requester  *Person
	Target     *Person
	Kind       domain.RelationKind
	Type       RequestType
	Status     RequestStatus
	Changes    InfoChanges
	CreatedAt  time.Time
	ResolvedAt time.Time
	ResolvedBy string
	Reason     string
}

// SameAs reports whether r and other describe the same pending mutation.
// MODIFY_INFO requests also compare the requested field values.
func (r *Request) SameAs(other *Request) bool {
	if r.Type != other.Type ||
		r.Kind != other.Kind ||
		!r.Requester.Equal(other.Requester) ||
		!r.Target.Equal(other.Target) {
		return false
	}
	return r.Type != RequestModifyInfo || r.Changes.Equal(other.Changes)
}

// CanResolve checks the request is still pending.
func (r *Request) CanResolve() error {
	if r.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeConflict, "request %s already %s", r.ID, r.Status)
	}
	return nil
}

// ApplyResolution moves the request to its terminal state. Call CanResolve
// first.
func (r *Request) ApplyResolution(accepted bool, by string, reason string, now time.Time) {
	if accepted {
		r.Status = StatusAccepted
	} else {
		r.Status = StatusRejected
	}
	r.ResolvedBy = by
	r.Reason = reason
	r.ResolvedAt = now
}
