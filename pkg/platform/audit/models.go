package audit

import (
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers changes to personal records: accepted
	// mutations, deletions, self-registrations.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers refused or suspicious actions, such as a
	// non-administrator attempting to resolve a request.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// SubjectID identifies the person the action is about.
	SubjectID string
	// ActorID identifies who performed the action when different from the
	// subject, typically the resolving administrator.
	ActorID   string
	Action    string
	RequestID string
	Decision  string
	Reason    string
}

type AuditEvent string

const (
	// Workflow events
	EventRequestSubmitted AuditEvent = "request_submitted"
	EventRequestAccepted  AuditEvent = "request_accepted"
	EventRequestRejected  AuditEvent = "request_rejected"
	EventRequestFailed    AuditEvent = "request_apply_failed"
	EventResolveDenied    AuditEvent = "resolve_denied"

	// Registry events
	EventPersonRegistered AuditEvent = "person_registered"
	EventPersonDeleted    AuditEvent = "person_deleted"

	// Tree events
	EventRelativeAdded   AuditEvent = "relative_added"
	EventRelativeRemoved AuditEvent = "relative_removed"
	EventTreeViewed      AuditEvent = "tree_viewed"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventRequestAccepted:  CategoryCompliance,
	EventPersonRegistered: CategoryCompliance,
	EventPersonDeleted:    CategoryCompliance,
	EventRelativeAdded:    CategoryCompliance,
	EventRelativeRemoved:  CategoryCompliance,

	EventResolveDenied: CategorySecurity,
	EventRequestFailed: CategorySecurity,

	EventRequestSubmitted: CategoryOperations,
	EventRequestRejected:  CategoryOperations,
	EventTreeViewed:       CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
