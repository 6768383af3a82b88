// Package workflow routes mutations through administrator approval.
//
// A Workflow owns the pending set and the request sequence. Requests move
// PENDING -> ACCEPTED | REJECTED exactly once; accepting applies the mutation
// to the graph, runs the consistency verifier on the requester's tree and
// yields one notification for the requester. Rejecting only yields the
// notification.
//
// The workflow is driven from inside the service boundary and performs no
// I/O: persistence and notification work is returned as data for the caller
// to carry out once the boundary is released.
package workflow

import (
	"context"
	"log/slog"

	"famtree/internal/genealogy/metrics"
	"famtree/internal/genealogy/models"
	"famtree/internal/genealogy/registry"
	"famtree/internal/genealogy/tree"
	"famtree/internal/genealogy/verifier"
	"famtree/internal/genealogy/visibility"
	"famtree/pkg/attrs"
	"famtree/pkg/domain"
	dErrors "famtree/pkg/domain-errors"
	"famtree/pkg/platform/audit"
	"famtree/pkg/requestcontext"
)

const (
	decisionAccepted = "accepted"
	decisionRejected = "rejected"
	decisionFailed   = "failed"
)

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// PersonUpsert is a person record to write back, keyed by the identity it
// was stored under before the mutation.
type PersonUpsert struct {
	PrevKey models.IdentityKey
	Person  *models.Person
	New     bool
}

// Effects lists the persistence work produced by an accepted request.
// Persons are snapshots, detached from the live graph.
type Effects struct {
	Upserts      []PersonUpsert
	Deletes      []models.IdentityKey
	LinksChanged bool
}

// IsEmpty reports whether nothing needs persisting.
func (e Effects) IsEmpty() bool {
	return len(e.Upserts) == 0 && len(e.Deletes) == 0 && !e.LinksChanged
}

func (e *Effects) upsert(prev models.IdentityKey, p *models.Person, isNew bool) {
	e.Upserts = append(e.Upserts, PersonUpsert{PrevKey: prev, Person: p.Snapshot(), New: isNew})
}

// Resolution is the outcome of one Resolve call.
type Resolution struct {
	Request      *models.Request
	Notification Notification
	Effects      Effects
	// Report is set when an accepted mutation was verified.
	Report *verifier.Report
}

// Workflow is the request/approval state machine.
type Workflow struct {
	pending  Store
	resolved map[domain.RequestID]*models.Request
	seq      uint64
	registry *registry.Registry
	// removed holds persons deleted by an accepted REMOVE_PERSON. Requests
	// submitted earlier may still point at them.
	removed map[*models.Person]struct{}

	verifier       *verifier.Verifier
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Workflow)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(w *Workflow) {
		w.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

func WithVerifier(v *verifier.Verifier) Option {
	return func(w *Workflow) {
		w.verifier = v
	}
}

// WithStore replaces the default in-memory pending set.
func WithStore(store Store) Option {
	return func(w *Workflow) {
		w.pending = store
	}
}

// New constructs a Workflow resolving persons against reg.
func New(reg *registry.Registry, opts ...Option) *Workflow {
	w := &Workflow{
		pending:  NewInMemoryStore(),
		resolved: make(map[domain.RequestID]*models.Request),
		registry: reg,
		removed:  make(map[*models.Person]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Bind returns a tree.Submitter that submits with ctx.
func (w *Workflow) Bind(ctx context.Context) tree.Submitter {
	return boundSubmitter{w: w, ctx: ctx}
}

type boundSubmitter struct {
	w   *Workflow
	ctx context.Context
}

func (b boundSubmitter) Submit(draft *models.Request) (*models.Request, bool) {
	return b.w.SubmitContext(b.ctx, draft)
}

// Submit implements tree.Submitter without a request-scoped context.
func (w *Workflow) Submit(draft *models.Request) (*models.Request, bool) {
	return w.SubmitContext(context.Background(), draft)
}

// SubmitContext places draft in the pending set. When an identical request
// is already pending, that request is returned with false and nothing is
// stored.
func (w *Workflow) SubmitContext(ctx context.Context, draft *models.Request) (*models.Request, bool) {
	if draft == nil || draft.Requester == nil || draft.Target == nil {
		panic("workflow: Submit requires a request with requester and target")
	}
	if !draft.Type.IsValid() {
		panic("workflow: Submit with unknown request type " + string(draft.Type))
	}
	if existing, ok := w.pending.FindSame(draft); ok {
		return existing, false
	}

	w.seq++
	draft.ID = domain.RequestID(w.seq)
	draft.Status = models.StatusPending
	draft.CreatedAt = requestcontext.Now(ctx)
	w.pending.Put(draft)

	w.metrics.IncrementSubmitted(string(draft.Type))
	w.metrics.SetPending(w.pending.Len())
	w.logAudit(ctx, string(audit.EventRequestSubmitted),
		"request_id", draft.ID.String(),
		"request_type", string(draft.Type),
		"subject_id", draft.Target.Identity().String(),
		"actor_id", draft.Requester.Identity().String(),
	)
	return draft, true
}

// Pending returns the pending requests in submission order.
func (w *Workflow) Pending() []*models.Request {
	return w.pending.List()
}

// Get returns a pending or resolved request.
func (w *Workflow) Get(id domain.RequestID) (*models.Request, error) {
	if r, ok := w.pending.Get(id); ok {
		return r, nil
	}
	if r, ok := w.resolved[id]; ok {
		return r, nil
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "request %s not found", id)
}

// Resolve accepts or rejects the pending request id on behalf of admin.
//
// Errors:
//   - CodeForbidden when admin lacks the administrator capability
//   - CodeNotFound when id was never submitted
//   - CodeConflict when id was already resolved; nothing is re-applied
//
// A mutation that cannot be applied on accept does not fail the call: the
// request is rejected with the failure as its reason and the graph is left
// as it was.
func (w *Workflow) Resolve(ctx context.Context, admin *models.Person, id domain.RequestID, accept bool) (*Resolution, error) {
	if admin == nil || !visibility.IsAdmin(admin.Account) {
		actor := ""
		if admin != nil {
			actor = admin.Identity().String()
		}
		w.logAudit(ctx, string(audit.EventResolveDenied),
			"request_id", id.String(),
			"actor_id", actor,
		)
		return nil, dErrors.New(dErrors.CodeForbidden, "only an administrator can resolve requests")
	}

	req, ok := w.pending.Get(id)
	if !ok {
		if done, resolved := w.resolved[id]; resolved {
			return nil, done.CanResolve()
		}
		return nil, dErrors.Newf(dErrors.CodeNotFound, "request %s not found", id)
	}
	if err := req.CanResolve(); err != nil {
		return nil, err
	}

	res := &Resolution{Request: req}
	decision := decisionRejected
	reason := ""
	if accept {
		effects, err := w.apply(req)
		if err != nil {
			accept = false
			decision = decisionFailed
			reason = err.Error()
		} else {
			decision = decisionAccepted
			res.Effects = effects
		}
	}

	req.ApplyResolution(accept, admin.Identity().String(), reason, requestcontext.Now(ctx))
	w.pending.Delete(id)
	w.resolved[id] = req

	w.metrics.IncrementResolved(string(req.Type), decision)
	w.metrics.SetPending(w.pending.Len())
	w.logAudit(ctx, string(auditEventFor(decision)),
		"request_id", id.String(),
		"request_type", string(req.Type),
		"subject_id", req.Target.Identity().String(),
		"actor_id", admin.Identity().String(),
		"decision", decision,
		"reason", reason,
	)

	if accept && w.verifier != nil && req.Requester.Tree != nil {
		report := w.verifier.Verify(ctx, req.Requester.Tree)
		res.Report = &report
	}
	res.Notification = notificationFor(req)
	return res, nil
}

func auditEventFor(decision string) audit.AuditEvent {
	switch decision {
	case decisionAccepted:
		return audit.EventRequestAccepted
	case decisionFailed:
		return audit.EventRequestFailed
	default:
		return audit.EventRequestRejected
	}
}

func (w *Workflow) logAudit(ctx context.Context, event string, attributes ...any) {
	if correlationID := requestcontext.CorrelationID(ctx); correlationID != "" {
		attributes = append(attributes, "correlation_id", correlationID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if w.logger != nil {
		w.logger.InfoContext(ctx, event, args...)
	}
	if w.auditPublisher == nil {
		return
	}
	_ = w.auditPublisher.Emit(ctx, audit.Event{
		SubjectID: attrs.ExtractString(attributes, "subject_id"),
		ActorID:   attrs.ExtractString(attributes, "actor_id"),
		RequestID: attrs.ExtractString(attributes, "request_id"),
		Decision:  attrs.ExtractString(attributes, "decision"),
		Reason:    attrs.ExtractString(attributes, "reason"),
		Action:    event,
		Timestamp: requestcontext.Now(ctx),
	})
}
