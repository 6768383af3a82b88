package workflow

import (
	"fmt"
	"strings"

	"famtree/internal/genealogy/models"
)

// Notification is the single message owed to the requester after a
// resolution. Delivery belongs to the messaging collaborator.
type Notification struct {
	Recipient     string
	RecipientName string
	Subject       string
	Body          string
}

var subjects = map[models.RequestType]string{
	models.RequestAddLink:      "Relationship request",
	models.RequestRemoveLink:   "Relationship removal request",
	models.RequestAddPerson:    "New person request",
	models.RequestModifyInfo:   "Information change request",
	models.RequestRemovePerson: "Deletion request",
}

// notificationFor composes the message for a resolved request. A requester
// whose record was just deleted keeps its in-memory account, so the address
// is still known.
func notificationFor(r *models.Request) Notification {
	recipientName := r.Requester.DisplayName()
	decision := "accepted"
	if r.Status == models.StatusRejected {
		decision = "rejected"
	}
	subject := fmt.Sprintf("%s %s", subjects[r.Type], decision)

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", recipientName)
	switch {
	case r.Type == models.RequestAddPerson && r.Requester.Equal(r.Target):
		if r.Status == models.StatusAccepted {
			b.WriteString("Your registration has been validated. You can now sign in.")
		} else {
			b.WriteString("Your registration could not be validated.")
		}
	case r.Kind != "":
		fmt.Fprintf(&b, "Your request #%s concerning %s (%s) was %s.", r.ID, r.Target.DisplayName(), r.Kind, decision)
	default:
		fmt.Fprintf(&b, "Your request #%s concerning %s was %s.", r.ID, r.Target.DisplayName(), decision)
	}
	if r.Reason != "" {
		fmt.Fprintf(&b, "\nReason: %s", r.Reason)
	}
	b.WriteString("\n")

	return Notification{
		Recipient:     r.Requester.ContactAddress(),
		RecipientName: recipientName,
		Subject:       subject,
		Body:          b.String(),
	}
}
