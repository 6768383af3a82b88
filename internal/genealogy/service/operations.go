package service

import (
	"context"

	"famtree/internal/genealogy/models"
	"famtree/internal/genealogy/tree"
	"famtree/internal/genealogy/verifier"
	"famtree/internal/genealogy/visibility"
	"famtree/internal/genealogy/workflow"
	"famtree/pkg/domain"
	dErrors "famtree/pkg/domain-errors"
	"famtree/pkg/platform/audit"
	"famtree/pkg/requestcontext"
)

// Register creates a registered person with its own tree and submits the
// self-registration for administrator validation. Login stays disabled until
// the request is accepted.
func (s *Service) Register(ctx context.Context, attrs models.PersonAttributes) (*models.Person, *models.Request, error) {
	attrs.Registered = true
	account := models.Account{}
	if attrs.Account != nil {
		account = *attrs.Account
	}
	attrs.Account = &account
	attrs.Account.LoginEnabled = false
	if attrs.Account.Role == "" {
		attrs.Account.Role = models.RoleUser
	}
	if attrs.Account.Login == "" {
		attrs.Account.Login = attrs.SSN
	}

	s.mu.Lock()
	p, err := s.registry.Create(attrs)
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	models.NewTree(domain.TreeIDFor(p.Identity().String()), p)
	req, _ := s.workflow.SubmitContext(ctx, &models.Request{
		Requester: p,
		Target:    p,
		Type:      models.RequestAddPerson,
	})
	out := detachRequest(req)
	var e effects
	e.Upserts = append(e.Upserts, workflow.PersonUpsert{PrevKey: p.Identity(), Person: out.Target, New: true})
	s.mu.Unlock()

	s.run(ctx, e)
	s.logAudit(ctx, string(audit.EventPersonRegistered),
		"subject_id", out.Target.Identity().String(),
		"request_id", out.ID.String(),
	)
	return out.Target, out, nil
}

// AddLinkRequest links person to requester inside owner's tree. person is
// matched against known records by identity and created as a placeholder
// when unknown. The result is pending when requester is registered.
func (s *Service) AddLinkRequest(ctx context.Context, owner string, requester models.IdentityKey, person models.PersonAttributes, kind domain.RelationKind) (tree.Result, error) {
	candidate, err := models.NewPerson(person)
	if err != nil {
		return tree.Result{}, err
	}

	s.mu.Lock()
	_, t, err := s.ownerTree(owner)
	if err != nil {
		s.mu.Unlock()
		return tree.Result{}, err
	}
	rq, ok := t.Get(requester)
	if !ok {
		s.mu.Unlock()
		return tree.Result{}, dErrors.Newf(dErrors.CodeRequesterNotInTree, "%s is not a member of this tree", requester)
	}
	target := s.registry.Resolve(candidate)
	_, known := s.registry.Get(target.Identity())

	res, err := tree.AddLinkRequest(t, rq, target, kind, s.workflow.Bind(ctx))
	if err != nil {
		s.mu.Unlock()
		return tree.Result{}, err
	}
	var e effects
	if res.Outcome == tree.OutcomeApplied {
		if !known {
			_ = s.registry.Add(target)
			e.Upserts = append(e.Upserts, workflow.PersonUpsert{PrevKey: target.Identity(), Person: target.Snapshot(), New: true})
		}
		s.markLinksChanged(&e)
	}
	subject := target.Identity().String()
	res = detachResult(res)
	s.mu.Unlock()

	s.run(ctx, e)
	if res.Outcome == tree.OutcomeApplied {
		s.logAudit(ctx, string(audit.EventRelativeAdded),
			"subject_id", subject,
			"actor_id", requester.String(),
		)
	}
	return res, nil
}

// RemoveNode takes member out of owner's tree, directly for placeholders and
// through a pending request for registered persons.
func (s *Service) RemoveNode(ctx context.Context, owner string, member models.IdentityKey) (tree.Result, error) {
	s.mu.Lock()
	o, t, err := s.ownerTree(owner)
	if err != nil {
		s.mu.Unlock()
		return tree.Result{}, err
	}
	p, ok := t.Get(member)
	if !ok {
		s.mu.Unlock()
		return tree.Result{}, dErrors.Newf(dErrors.CodeNotFound, "%s is not a member of this tree", member)
	}
	res, err := tree.RemoveNode(t, p, s.workflow.Bind(ctx))
	if err != nil {
		s.mu.Unlock()
		return tree.Result{}, err
	}
	var e effects
	if res.Outcome == tree.OutcomeApplied {
		s.markLinksChanged(&e)
	}
	actor := o.Identity().String()
	res = detachResult(res)
	s.mu.Unlock()

	s.run(ctx, e)
	if res.Outcome == tree.OutcomeApplied {
		s.logAudit(ctx, string(audit.EventRelativeRemoved),
			"subject_id", member.String(),
			"actor_id", actor,
		)
	}
	return res, nil
}

// RequestInfoChange submits a MODIFY_INFO request. The target is the
// requester or a member of the requester's tree.
func (s *Service) RequestInfoChange(ctx context.Context, requester string, target models.IdentityKey, changes models.InfoChanges) (*models.Request, error) {
	if changes.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no change requested")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rq, tp, err := s.requestParties(requester, target)
	if err != nil {
		return nil, err
	}
	req, _ := s.workflow.SubmitContext(ctx, &models.Request{
		Requester: rq,
		Target:    tp,
		Type:      models.RequestModifyInfo,
		Changes:   changes,
	})
	return detachRequest(req), nil
}

// RequestRemoval submits a REMOVE_PERSON request for target.
func (s *Service) RequestRemoval(ctx context.Context, requester string, target models.IdentityKey) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rq, tp, err := s.requestParties(requester, target)
	if err != nil {
		return nil, err
	}
	if tp.IsAdmin() && tp != rq {
		return nil, dErrors.New(dErrors.CodeForbidden, "an administrator record can only be removed by its owner")
	}
	req, _ := s.workflow.SubmitContext(ctx, &models.Request{
		Requester: rq,
		Target:    tp,
		Type:      models.RequestRemovePerson,
	})
	return detachRequest(req), nil
}

// RequestNewRelative submits an ADD_PERSON request creating a new
// placeholder linked to requester as requester's kind.
func (s *Service) RequestNewRelative(ctx context.Context, requester string, person models.PersonAttributes, kind domain.RelationKind) (*models.Request, error) {
	if !kind.IsAuthorized() {
		return nil, dErrors.Newf(dErrors.CodeInvalidRelation, "relation kind %q cannot be requested", kind)
	}
	person.Registered = false
	candidate, err := models.NewPerson(person)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rq, _, err := s.ownerTree(requester)
	if err != nil {
		return nil, err
	}
	if _, exists := s.registry.Get(candidate.Identity()); exists {
		return nil, dErrors.Newf(dErrors.CodeConflict, "person %s already exists", candidate.Identity())
	}
	req, _ := s.workflow.SubmitContext(ctx, &models.Request{
		Requester: rq,
		Target:    candidate,
		Kind:      kind,
		Type:      models.RequestAddPerson,
	})
	return detachRequest(req), nil
}

// requestParties resolves a registered requester and a target that is the
// requester or a member of its tree. Call with mu held.
func (s *Service) requestParties(requester string, target models.IdentityKey) (*models.Person, *models.Person, error) {
	rq, t, err := s.ownerTree(requester)
	if err != nil {
		return nil, nil, err
	}
	tp, ok := t.Get(target)
	if !ok {
		return nil, nil, dErrors.Newf(dErrors.CodeNotFound, "%s is not a member of this tree", target)
	}
	return rq, tp, nil
}

// Resolve accepts or rejects a pending request on behalf of the
// administrator identified by admin. The requester is notified after the
// boundary is released.
func (s *Service) Resolve(ctx context.Context, admin string, id domain.RequestID, accept bool) (*models.Request, error) {
	s.mu.Lock()
	a, err := s.registry.FindByIdentifier(admin)
	if err != nil {
		s.mu.Unlock()
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeForbidden, "only an administrator can resolve requests")
		}
		return nil, err
	}
	res, err := s.workflow.Resolve(ctx, a, id, accept)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	e := effects{Effects: res.Effects, notification: &res.Notification}
	if res.Effects.LinksChanged {
		s.markLinksChanged(&e)
	}
	deleted := res.Request.Status == models.StatusAccepted && res.Request.Type == models.RequestRemovePerson
	out := detachRequest(res.Request)
	s.mu.Unlock()

	s.run(ctx, e)
	if deleted {
		s.logAudit(ctx, string(audit.EventPersonDeleted),
			"subject_id", out.Target.Identity().String(),
			"actor_id", admin,
		)
	}
	return out, nil
}

// View returns the members of owner's tree visible to viewer, as detached
// snapshots with fresh generations. The view is recorded in the
// consultation log.
func (s *Service) View(ctx context.Context, owner, viewer string) ([]*models.Person, error) {
	s.mu.Lock()
	_, t, err := s.ownerTree(owner)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	v, err := s.registry.FindByIdentifier(viewer)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	tree.BuildFamilyLinks(t, s.logger)
	visible := visibility.Filter(t.Nodes(), v)
	out := make([]*models.Person, 0, len(visible))
	for _, p := range visible {
		out = append(out, p.Snapshot())
	}
	e := effects{consultation: &consultation{
		treeID: t.ID,
		viewer: v.Identity().String(),
		at:     requestcontext.Now(ctx),
	}}
	s.mu.Unlock()

	s.run(ctx, e)
	return out, nil
}

// Verify runs the consistency checks on owner's tree.
func (s *Service) Verify(ctx context.Context, owner string) (verifier.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, t, err := s.ownerTree(owner)
	if err != nil {
		return verifier.Report{}, err
	}
	return s.verifier.Verify(ctx, t), nil
}

// VerifyAll runs the consistency checks on every tree.
func (s *Service) VerifyAll(ctx context.Context) []verifier.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reports []verifier.Report
	for _, p := range s.registry.All() {
		if p.Tree != nil {
			reports = append(reports, s.verifier.Verify(ctx, p.Tree))
		}
	}
	return reports
}

// CommonMembers returns snapshots of the persons present in both trees.
func (s *Service) CommonMembers(ctx context.Context, ownerA, ownerB string) ([]*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, a, err := s.ownerTree(ownerA)
	if err != nil {
		return nil, err
	}
	_, b, err := s.ownerTree(ownerB)
	if err != nil {
		return nil, err
	}
	var out []*models.Person
	for _, p := range tree.CommonMembers(a, b) {
		out = append(out, p.Snapshot())
	}
	return out, nil
}

// Pending returns detached copies of the pending requests in submission
// order.
func (s *Service) Pending(ctx context.Context) []*models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.workflow.Pending()
	out := make([]*models.Request, 0, len(pending))
	for _, r := range pending {
		out = append(out, detachRequest(r))
	}
	return out
}

// detachRequest copies r with person snapshots so callers can read it
// outside the boundary. Call with mu held.
func detachRequest(r *models.Request) *models.Request {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Requester = r.Requester.Snapshot()
	cp.Target = r.Target.Snapshot()
	return &cp
}

func detachResult(res tree.Result) tree.Result {
	res.Request = detachRequest(res.Request)
	return res
}
