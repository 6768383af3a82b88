// Package service is the process-wide boundary around the genealogy core.
//
// Every operation takes the same mutex; the graph, trees, registry and
// pending set are only touched while it is held. Persistence, notification
// and consultation logging are collected inside the critical section and
// carried out after it is released. Their failures are logged and counted and
// never undo a mutation that already happened.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"famtree/internal/genealogy/metrics"
	"famtree/internal/genealogy/models"
	"famtree/internal/genealogy/registry"
	"famtree/internal/genealogy/tree"
	"famtree/internal/genealogy/verifier"
	"famtree/internal/genealogy/visibility"
	"famtree/internal/genealogy/workflow"
	"famtree/pkg/attrs"
	"famtree/pkg/domain"
	dErrors "famtree/pkg/domain-errors"
	"famtree/pkg/platform/audit"
	"famtree/pkg/requestcontext"
)

type PersonStore interface {
	LoadAll(ctx context.Context) ([]*models.Person, error)
	Append(ctx context.Context, p *models.Person) error
	Update(ctx context.Context, prevKey models.IdentityKey, p *models.Person) error
	FindByIdentifier(ctx context.Context, ssn string) (*models.Person, error)
	Delete(ctx context.Context, key models.IdentityKey) error
}

type LinkStore interface {
	LoadLinks(ctx context.Context) ([]models.LinkRecord, error)
	SaveLinks(ctx context.Context, links []models.LinkRecord) error
}

// Notifier delivers one message to a contact address. Delivery is
// fire-and-forget from the core's point of view.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// ConsultationLog is the append-only record of tree views.
type ConsultationLog interface {
	Record(ctx context.Context, treeID domain.TreeID, viewerID string, at time.Time) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service is the genealogy facade.
type Service struct {
	mu       sync.Mutex
	registry *registry.Registry
	workflow *workflow.Workflow
	verifier *verifier.Verifier
	maxDepth int

	persons       PersonStore
	links         LinkStore
	notifier      Notifier
	consultations ConsultationLog

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics

	// linkVersion counts link-set changes under mu; ioMu orders link
	// snapshots so an older one never overwrites a newer one.
	linkVersion  uint64
	ioMu         sync.Mutex
	savedVersion uint64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithConsultationLog(log ConsultationLog) Option {
	return func(s *Service) {
		s.consultations = log
	}
}

// WithMaxDepth bounds tree reconstruction at load time.
func WithMaxDepth(depth int) Option {
	return func(s *Service) {
		s.maxDepth = depth
	}
}

// New constructs a Service. The person and link stores and the notifier are
// required.
func New(persons PersonStore, links LinkStore, notifier Notifier, opts ...Option) (*Service, error) {
	if persons == nil {
		return nil, errors.New("person store is required")
	}
	if links == nil {
		return nil, errors.New("link store is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	s := &Service{
		persons:  persons,
		links:    links,
		notifier: notifier,
		maxDepth: tree.MaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.registry = registry.New(registry.WithLogger(s.logger))
	s.verifier = verifier.New(verifier.NewLogReporter(s.logger, s.metrics))
	wfOpts := []workflow.Option{
		workflow.WithLogger(s.logger),
		workflow.WithMetrics(s.metrics),
		workflow.WithVerifier(s.verifier),
	}
	if s.auditPublisher != nil {
		wfOpts = append(wfOpts, workflow.WithAuditPublisher(s.auditPublisher))
	}
	s.workflow = workflow.New(s.registry, wfOpts...)
	return s, nil
}

// Load reads persons and links from the stores, then rebuilds every
// registered person's tree from the link graph.
func (s *Service) Load(ctx context.Context) error {
	var (
		persons []*models.Person
		links   []models.LinkRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if persons, err = s.persons.LoadAll(gctx); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load persons")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if links, err = s.links.LoadLinks(gctx); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load links")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.registry.Load(ctx, registry.LoaderFunc(func(context.Context) ([]*models.Person, error) {
		return persons, nil
	}))
	if err != nil {
		return err
	}

	all := s.registry.All()
	byKey := make(map[string]*models.Person, len(all))
	for _, p := range all {
		byKey[p.Identity().String()] = p
	}
	skipped := 0
	for _, l := range links {
		src, okSrc := byKey[l.Source]
		dst, okDst := byKey[l.Target]
		if !okSrc || !okDst || src == dst || !l.Kind.IsValid() {
			skipped++
			s.logger.WarnContext(ctx, "stored link skipped",
				"source", l.Source,
				"target", l.Target,
				"kind", string(l.Kind),
			)
			continue
		}
		src.PutLink(dst, l.Kind)
	}

	trees := 0
	for _, p := range all {
		if !p.Registered {
			continue
		}
		t := tree.Reachable(domain.TreeIDFor(p.Identity().String()), p, all, s.maxDepth)
		tree.BuildFamilyLinks(t, s.logger)
		trees++
	}
	s.logger.InfoContext(ctx, "genealogy loaded",
		"persons", loaded,
		"links", len(links)-skipped,
		"links_skipped", skipped,
		"trees", trees,
	)
	return nil
}

// effects is the I/O collected under the lock.
type effects struct {
	workflow.Effects
	links        []models.LinkRecord
	linkVersion  uint64
	notification *workflow.Notification
	consultation *consultation
}

type consultation struct {
	treeID domain.TreeID
	viewer string
	at     time.Time
}

// markLinksChanged snapshots the link set. Call with mu held.
func (s *Service) markLinksChanged(e *effects) {
	e.LinksChanged = true
	s.linkVersion++
	e.linkVersion = s.linkVersion
	e.links = models.LinkRecords(s.registry.All())
}

// run carries out e. Call without mu held.
func (s *Service) run(ctx context.Context, e effects) {
	for _, u := range e.Upserts {
		var err error
		if u.New {
			err = s.persons.Append(ctx, u.Person)
		} else {
			err = s.persons.Update(ctx, u.PrevKey, u.Person)
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to persist person",
				"identity", u.Person.Identity().String(),
				"error", err,
			)
		}
	}
	for _, k := range e.Deletes {
		if err := s.persons.Delete(ctx, k); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete person",
				"identity", k.String(),
				"error", err,
			)
		}
	}
	if e.LinksChanged {
		s.saveLinks(ctx, e.linkVersion, e.links)
	}
	if e.notification != nil {
		s.notify(ctx, *e.notification)
	}
	if e.consultation != nil && s.consultations != nil {
		c := e.consultation
		if err := s.consultations.Record(ctx, c.treeID, c.viewer, c.at); err != nil {
			s.logger.WarnContext(ctx, "failed to record consultation",
				"tree_id", c.treeID.String(),
				"error", err,
			)
		}
	}
}

func (s *Service) saveLinks(ctx context.Context, version uint64, links []models.LinkRecord) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	if version <= s.savedVersion {
		return
	}
	if err := s.links.SaveLinks(ctx, links); err != nil {
		s.logger.ErrorContext(ctx, "failed to save links", "error", err)
		return
	}
	s.savedVersion = version
}

func (s *Service) notify(ctx context.Context, n workflow.Notification) {
	if n.Recipient == "" {
		s.logger.WarnContext(ctx, "notification dropped: requester has no contact address",
			"subject", n.Subject,
		)
		s.metrics.IncrementNotificationFailure()
		return
	}
	if err := s.notifier.Send(ctx, n.Recipient, n.Subject, n.Body); err != nil {
		s.logger.ErrorContext(ctx, "failed to send notification",
			"subject", n.Subject,
			"error", err,
		)
		s.metrics.IncrementNotificationFailure()
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if correlationID := requestcontext.CorrelationID(ctx); correlationID != "" {
		attributes = append(attributes, "correlation_id", correlationID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		SubjectID: attrs.ExtractString(attributes, "subject_id"),
		ActorID:   attrs.ExtractString(attributes, "actor_id"),
		Action:    event,
		Timestamp: requestcontext.Now(ctx),
	})
}

// ownerTree finds the registered person identified by ssn and its tree.
// Call with mu held.
func (s *Service) ownerTree(ssn string) (*models.Person, *models.Tree, error) {
	owner, err := s.registry.FindByIdentifier(ssn)
	if err != nil {
		return nil, nil, err
	}
	if owner.Tree == nil {
		return nil, nil, dErrors.Newf(dErrors.CodeNotFound, "%s owns no tree", owner.DisplayName())
	}
	return owner, owner.Tree, nil
}

// IsAdmin reports whether ssn identifies an administrator.
func (s *Service) IsAdmin(ctx context.Context, ssn string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.registry.FindByIdentifier(ssn)
	if err != nil {
		return false
	}
	return visibility.IsAdmin(p.Account)
}
