// Package registry indexes every known person by identity.
//
// The registry is not safe for concurrent use; the service facade serialises
// access to it.
package registry

import (
	"context"
	"log/slog"
	"sort"

	"famtree/internal/genealogy/models"
	dErrors "famtree/pkg/domain-errors"
)

// Loader supplies the persisted person records at startup.
type Loader interface {
	LoadAll(ctx context.Context) ([]*models.Person, error)
}

// LoaderFunc adapts an ordinary function to Loader.
type LoaderFunc func(ctx context.Context) ([]*models.Person, error)

func (f LoaderFunc) LoadAll(ctx context.Context) ([]*models.Person, error) {
	return f(ctx)
}

// Registry is the in-memory person index.
type Registry struct {
	persons map[models.IdentityKey]*models.Person
	logger  *slog.Logger
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{persons: make(map[models.IdentityKey]*models.Person)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create validates attrs, builds the person and indexes it.
func (r *Registry) Create(attrs models.PersonAttributes) (*models.Person, error) {
	p, err := models.NewPerson(attrs)
	if err != nil {
		return nil, err
	}
	if err := r.Add(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Add indexes p. A person already known under the same identity is a
// conflict.
func (r *Registry) Add(p *models.Person) error {
	k := p.Identity()
	if _, ok := r.persons[k]; ok {
		return dErrors.Newf(dErrors.CodeConflict, "person %s already exists", k)
	}
	r.persons[k] = p
	return nil
}

// Get returns the person carrying k.
func (r *Registry) Get(k models.IdentityKey) (*models.Person, bool) {
	p, ok := r.persons[k]
	return p, ok
}

// FindByIdentifier looks a registered person up by social-security
// identifier.
func (r *Registry) FindByIdentifier(ssn string) (*models.Person, error) {
	if ssn == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "identifier is required")
	}
	p, ok := r.persons[models.IdentityKey{SSN: ssn}]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no person with identifier %s", ssn)
	}
	return p, nil
}

// Resolve returns the indexed instance equal to p, or p itself when unknown.
func (r *Registry) Resolve(p *models.Person) *models.Person {
	if known, ok := r.persons[p.Identity()]; ok {
		return known
	}
	return p
}

// Remove drops p from the index and reports whether it was present.
func (r *Registry) Remove(p *models.Person) bool {
	k := p.Identity()
	if _, ok := r.persons[k]; !ok {
		return false
	}
	delete(r.persons, k)
	return true
}

// Rekey moves the person indexed under oldKey to its current identity.
// It fails with a conflict when the new identity is taken by someone else.
func (r *Registry) Rekey(oldKey models.IdentityKey) error {
	p, ok := r.persons[oldKey]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "person %s not found", oldKey)
	}
	newKey := p.Identity()
	if newKey == oldKey {
		return nil
	}
	if other, taken := r.persons[newKey]; taken && other != p {
		return dErrors.Newf(dErrors.CodeConflict, "person %s already exists", newKey)
	}
	delete(r.persons, oldKey)
	r.persons[newKey] = p
	return nil
}

// All returns every person ordered by identity.
func (r *Registry) All() []*models.Person {
	out := make([]*models.Person, 0, len(r.persons))
	for _, p := range r.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity().String() < out[j].Identity().String()
	})
	return out
}

// Len returns the number of indexed persons.
func (r *Registry) Len() int {
	return len(r.persons)
}

// Load indexes every record returned by l. Duplicate identities keep the
// first record seen and are logged.
func (r *Registry) Load(ctx context.Context, l Loader) (int, error) {
	persons, err := l.LoadAll(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load persons")
	}
	loaded := 0
	for _, p := range persons {
		if err := r.Add(p); err != nil {
			if r.logger != nil {
				r.logger.WarnContext(ctx, "duplicate person record skipped",
					"identity", p.Identity().String(),
				)
			}
			continue
		}
		loaded++
	}
	return loaded, nil
}
