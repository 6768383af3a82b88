// Package tree implements membership operations on a genealogical tree:
// link requests, node removal, comparison and family-link derivation.
//
// Callers hold the process-wide boundary; nothing here locks.
package tree

import (
	"famtree/internal/genealogy/graph"
	"famtree/internal/genealogy/models"
	"famtree/pkg/domain"
	dErrors "famtree/pkg/domain-errors"
)

// Outcome tells the caller whether a change took effect or awaits approval.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomePending Outcome = "pending"
)

// Result is returned by mutating tree operations.
type Result struct {
	Outcome Outcome
	// Request is set when Outcome is OutcomePending.
	Request *models.Request
}

// Submitter receives structural changes that need administrator approval.
// Submit returns the pending request and false when an identical one was
// already pending.
type Submitter interface {
	Submit(draft *models.Request) (*models.Request, bool)
}

// AddLinkRequest links person to requester as requester's kind.
//
// Registered requesters never mutate the tree directly: an ADD_LINK request
// is submitted and the result is pending. Unregistered requesters (offline
// relatives managed by the owner) are linked immediately: person joins the
// tree and holds the edge towards requester.
func AddLinkRequest(t *models.Tree, requester, person *models.Person, kind domain.RelationKind, sub Submitter) (Result, error) {
	if requester == nil || person == nil {
		panic("tree: AddLinkRequest requires requester and person")
	}
	if !t.Contains(requester) {
		return Result{}, dErrors.Newf(dErrors.CodeRequesterNotInTree, "%s is not a member of this tree", requester.DisplayName())
	}
	if !kind.IsAuthorized() {
		return Result{}, dErrors.Newf(dErrors.CodeInvalidRelation, "relation kind %q cannot be requested", kind)
	}
	if requester.Equal(person) {
		return Result{}, dErrors.New(dErrors.CodeSelfLink, "a person cannot be linked to itself")
	}

	if requester.Registered {
		req, _ := sub.Submit(&models.Request{
			Requester: requester,
			Target:    person,
			Kind:      kind,
			Type:      models.RequestAddLink,
		})
		return Result{Outcome: OutcomePending, Request: req}, nil
	}

	inv, err := domain.Inverse(kind, requester.Gender)
	if err != nil {
		return Result{}, err
	}
	if err := graph.AddLink(person, requester, inv); err != nil {
		return Result{}, err
	}
	t.Add(person)
	return Result{Outcome: OutcomeApplied}, nil
}

// RemoveNode takes p out of the tree. Registered persons are only removed
// through an approved REMOVE_LINK request; placeholders are unlinked from the
// owner and dropped at once.
func RemoveNode(t *models.Tree, p *models.Person, sub Submitter) (Result, error) {
	if p == nil {
		panic("tree: RemoveNode requires a person")
	}
	if !t.Contains(p) {
		return Result{}, dErrors.Newf(dErrors.CodeNotFound, "%s is not a member of this tree", p.DisplayName())
	}
	if t.Owner.Equal(p) {
		return Result{}, dErrors.New(dErrors.CodeInvariantViolation, "the owner cannot be removed from its tree")
	}

	if p.Registered {
		draft := &models.Request{
			Requester: t.Owner,
			Target:    p,
			Type:      models.RequestRemoveLink,
		}
		if l, ok := t.Owner.LinkTo(p); ok {
			draft.Kind = l.Kind
		}
		req, _ := sub.Submit(draft)
		return Result{Outcome: OutcomePending, Request: req}, nil
	}

	Detach(t, p)
	return Result{Outcome: OutcomeApplied}, nil
}

// Detach removes the owner<->p links and p itself from the tree.
func Detach(t *models.Tree, p *models.Person) {
	graph.RemoveLink(t.Owner, p)
	p.DropLink(t.Owner.Identity())
	t.Remove(p)
}

// CommonMembers returns the members of a also present in b. Registered
// persons match by identity; placeholders match when all descriptive
// attributes are identical. Mixed pairs never match.
func CommonMembers(a, b *models.Tree) []*models.Person {
	var common []*models.Person
	others := b.Nodes()
	for _, x := range a.Nodes() {
		for _, y := range others {
			if sameMember(x, y) {
				common = append(common, x)
				break
			}
		}
	}
	return common
}

func sameMember(x, y *models.Person) bool {
	switch {
	case x.Registered && y.Registered:
		return x.Equal(y)
	case !x.Registered && !y.Registered:
		return x.SameAttributes(y)
	default:
		return false
	}
}
