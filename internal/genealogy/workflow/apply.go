package workflow

import (
	"strings"

	"famtree/internal/genealogy/graph"
	"famtree/internal/genealogy/models"
	"famtree/internal/genealogy/tree"
	dErrors "famtree/pkg/domain-errors"
)

// apply performs the mutation described by r. Every check runs before the
// first write, so an error leaves the graph untouched.
func (w *Workflow) apply(r *models.Request) (Effects, error) {
	if err := w.ensureKnown(r.Requester); err != nil {
		return Effects{}, err
	}
	switch r.Type {
	case models.RequestAddLink:
		return w.applyAddLink(r)
	case models.RequestRemoveLink:
		return w.applyRemoveLink(r)
	case models.RequestAddPerson:
		return w.applyAddPerson(r)
	case models.RequestModifyInfo:
		return w.applyModifyInfo(r)
	case models.RequestRemovePerson:
		return w.applyRemovePerson(r)
	default:
		return Effects{}, dErrors.Newf(dErrors.CodeInternal, "unknown request type %q", r.Type)
	}
}

// ensureKnown checks p is still the indexed instance for its identity.
func (w *Workflow) ensureKnown(p *models.Person) error {
	known, ok := w.registry.Get(p.Identity())
	if !ok || known != p {
		return dErrors.Newf(dErrors.CodeNotFound, "%s is no longer registered", p.DisplayName())
	}
	return nil
}

func requesterTree(r *models.Request) (*models.Tree, error) {
	if r.Requester.Tree == nil {
		return nil, dErrors.Newf(dErrors.CodeRequesterNotInTree, "%s owns no tree", r.Requester.DisplayName())
	}
	return r.Requester.Tree, nil
}

// applyAddLink links the target into the requester's tree. A target unknown
// to the registry is a provisional person and is materialised once the link
// is known to be valid. Registered or deleted targets are never recreated.
func (w *Workflow) applyAddLink(r *models.Request) (Effects, error) {
	t, err := requesterTree(r)
	if err != nil {
		return Effects{}, err
	}
	target := w.registry.Resolve(r.Target)
	_, known := w.registry.Get(target.Identity())
	if !known {
		if _, gone := w.removed[target]; gone || target.Registered {
			return Effects{}, dErrors.Newf(dErrors.CodeNotFound, "%s is no longer registered", target.DisplayName())
		}
	}

	if err := graph.AddLink(r.Requester, target, r.Kind); err != nil {
		return Effects{}, err
	}

	var effects Effects
	if !known {
		// Cannot conflict: the identity was just looked up under the same boundary.
		_ = w.registry.Add(target)
		effects.upsert(target.Identity(), target, true)
	}
	t.Add(target)
	r.Target = target
	effects.LinksChanged = true
	return effects, nil
}

func (w *Workflow) applyRemoveLink(r *models.Request) (Effects, error) {
	t, err := requesterTree(r)
	if err != nil {
		return Effects{}, err
	}
	if !t.Contains(r.Target) {
		return Effects{}, dErrors.Newf(dErrors.CodeNotFound, "%s is not a member of this tree", r.Target.DisplayName())
	}
	if t.Owner.Equal(r.Target) {
		return Effects{}, dErrors.New(dErrors.CodeInvariantViolation, "the owner cannot be removed from its tree")
	}
	member, _ := t.Get(r.Target.Identity())
	tree.Detach(t, member)
	return Effects{LinksChanged: true}, nil
}

// applyAddPerson validates a self-registration, or creates the placeholder
// described by the request and links it to the requester.
func (w *Workflow) applyAddPerson(r *models.Request) (Effects, error) {
	var effects Effects
	if r.Requester.Equal(r.Target) {
		p := r.Requester
		p.AdminValidated = true
		if p.Account != nil {
			p.Account.LoginEnabled = true
		}
		effects.upsert(p.Identity(), p, false)
		return effects, nil
	}

	t, err := requesterTree(r)
	if err != nil {
		return Effects{}, err
	}
	if _, exists := w.registry.Get(r.Target.Identity()); exists {
		return Effects{}, dErrors.Newf(dErrors.CodeConflict, "person %s already exists", r.Target.Identity())
	}
	if err := graph.AddLink(r.Requester, r.Target, r.Kind); err != nil {
		return Effects{}, err
	}
	_ = w.registry.Add(r.Target)
	t.Add(r.Target)
	effects.upsert(r.Target.Identity(), r.Target, true)
	effects.LinksChanged = true
	return effects, nil
}

// applyModifyInfo writes the requested identity fields onto the target and
// contact fields onto its account. A change of identity re-keys the
// registry, every link pointing at the target and every tree holding it.
func (w *Workflow) applyModifyInfo(r *models.Request) (Effects, error) {
	if err := w.ensureKnown(r.Target); err != nil {
		return Effects{}, err
	}
	c := r.Changes
	if c.IsEmpty() {
		return Effects{}, dErrors.New(dErrors.CodeBadRequest, "no change requested")
	}

	p := r.Target
	candidate := p.Snapshot()
	if c.GivenName != nil {
		candidate.GivenName = strings.TrimSpace(*c.GivenName)
		if candidate.GivenName == "" {
			return Effects{}, dErrors.New(dErrors.CodeValidation, "given name cannot be empty")
		}
	}
	if c.FamilyName != nil {
		candidate.FamilyName = strings.TrimSpace(*c.FamilyName)
		if candidate.FamilyName == "" {
			return Effects{}, dErrors.New(dErrors.CodeValidation, "family name cannot be empty")
		}
	}
	if c.Nationality != nil {
		candidate.Nationality = strings.TrimSpace(*c.Nationality)
	}
	if c.Gender != nil {
		if !c.Gender.IsValid() {
			return Effects{}, dErrors.Newf(dErrors.CodeValidation, "invalid gender %q", *c.Gender)
		}
		candidate.Gender = *c.Gender
	}
	if !c.Contact.IsEmpty() {
		if candidate.Account == nil {
			return Effects{}, dErrors.Newf(dErrors.CodeInvalidInput, "%s has no account to update", p.DisplayName())
		}
		candidate.Account.ApplyContact(c.Contact)
		if err := candidate.Account.Validate(); err != nil {
			return Effects{}, err
		}
	}

	oldKey := p.Identity()
	newKey := candidate.Identity()
	if newKey != oldKey {
		if other, taken := w.registry.Get(newKey); taken && other != p {
			return Effects{}, dErrors.Newf(dErrors.CodeConflict, "person %s already exists", newKey)
		}
	}

	var effects Effects
	if candidate.Gender != p.Gender {
		// Last check before writing: it rewrites the holders' links itself.
		changed, err := graph.Regender(p, candidate.Gender, w.registry.All())
		if err != nil {
			return Effects{}, err
		}
		effects.LinksChanged = changed
	}

	p.GivenName = candidate.GivenName
	p.FamilyName = candidate.FamilyName
	p.Nationality = candidate.Nationality
	p.Gender = candidate.Gender
	if p.Account != nil {
		*p.Account = *candidate.Account
	}

	if newKey != oldKey {
		w.rekey(oldKey)
		effects.LinksChanged = true
	}
	effects.upsert(oldKey, p, false)
	return effects, nil
}

func (w *Workflow) rekey(oldKey models.IdentityKey) {
	// Checked by the caller.
	_ = w.registry.Rekey(oldKey)
	for _, q := range w.registry.All() {
		q.RekeyLink(oldKey)
		if q.Tree != nil {
			q.Tree.Rekey(oldKey)
		}
	}
}

// applyRemovePerson detaches the target from the requester's tree and from
// every other tree and link, then deletes its record and owned tree.
func (w *Workflow) applyRemovePerson(r *models.Request) (Effects, error) {
	if err := w.ensureKnown(r.Target); err != nil {
		return Effects{}, err
	}
	target := r.Target

	if t := r.Requester.Tree; t != nil && !r.Requester.Equal(target) && t.Contains(target) {
		tree.Detach(t, target)
	}
	everyone := w.registry.All()
	for _, q := range everyone {
		if q.Tree != nil && q != target {
			q.Tree.Remove(target)
		}
	}
	graph.Detach(target, everyone)
	target.Tree = nil
	w.registry.Remove(target)
	w.removed[target] = struct{}{}

	return Effects{
		Deletes:      []models.IdentityKey{target.Identity()},
		LinksChanged: true,
	}, nil
}
