// Package graph maintains typed links between persons and their reciprocity.
//
// Functions here mutate persons in place and assume the caller holds the
// process-wide boundary (see internal/genealogy/service).
package graph

import (
	"famtree/internal/genealogy/models"
	"famtree/pkg/domain"
	dErrors "famtree/pkg/domain-errors"
)

// AddLink stores (source, target, kind) and, when target is registered, the
// reverse edge (target, source, inverse(kind, source.gender)).
//
// Errors:
//   - CodeInvalidRelation when kind is outside the authorised mutation set
//   - CodeSelfLink when source and target are the same person
//   - CodeConflict when the parent slot for kind is held by someone else
//
// Every check and the reverse kind are computed before the first write, so a
// failure leaves both persons untouched.
func AddLink(source, target *models.Person, kind domain.RelationKind) error {
	if source == nil || target == nil {
		panic("graph: AddLink requires source and target")
	}
	if !kind.IsAuthorized() {
		return dErrors.Newf(dErrors.CodeInvalidRelation, "relation kind %q cannot be added directly", kind)
	}
	if source.Equal(target) {
		return dErrors.New(dErrors.CodeSelfLink, "a person cannot be linked to itself")
	}
	if err := checkParentSlot(source, target, kind); err != nil {
		return err
	}

	var reverse domain.RelationKind
	if target.Registered {
		inv, err := domain.Inverse(kind, source.Gender)
		if err != nil {
			return err
		}
		if err := checkParentSlot(target, source, inv); err != nil {
			return err
		}
		reverse = inv
	}

	source.PutLink(target, kind)
	if reverse != "" {
		target.PutLink(source, reverse)
	}
	return nil
}

// checkParentSlot enforces at most one FATHER and one MOTHER link per person.
func checkParentSlot(p, target *models.Person, kind domain.RelationKind) error {
	if !kind.IsParent() {
		return nil
	}
	existing, ok := p.LinkOfKind(kind)
	if ok && !existing.Target.Equal(target) {
		return dErrors.Newf(dErrors.CodeConflict, "%s already has a %s", p.DisplayName(), kind)
	}
	return nil
}

// RemoveLink drops the edge a -> b and, when b is registered, the reverse
// edge b -> a. It reports whether the forward edge existed.
func RemoveLink(a, b *models.Person) bool {
	removed := a.DropLink(b.Identity())
	if b.Registered {
		b.DropLink(a.Identity())
	}
	return removed
}

// Detach removes every link pointing at p from the given persons, and p's
// own links.
func Detach(p *models.Person, others []*models.Person) {
	k := p.Identity()
	for _, o := range others {
		if o == p {
			continue
		}
		o.DropLink(k)
	}
	for _, l := range p.Links() {
		p.DropLink(l.Target.Identity())
	}
}

// Father returns the target of p's FATHER link.
func Father(p *models.Person) *models.Person {
	if l, ok := p.LinkOfKind(domain.KindFather); ok {
		return l.Target
	}
	return nil
}

// Mother returns the target of p's MOTHER link.
func Mother(p *models.Person) *models.Person {
	if l, ok := p.LinkOfKind(domain.KindMother); ok {
		return l.Target
	}
	return nil
}

// Parents returns the distinct persons declared as p's biological parents,
// either by a FATHER/MOTHER link on p or by a SON/DAUGHTER link on the
// parent pointing at p. candidates bounds the search for the second form.
func Parents(p *models.Person, candidates []*models.Person) []*models.Person {
	seen := make(map[models.IdentityKey]bool)
	var out []*models.Person
	add := func(q *models.Person) {
		k := q.Identity()
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, q)
	}
	for _, l := range p.Links() {
		if l.Kind.IsParent() {
			add(l.Target)
		}
	}
	for _, c := range candidates {
		if c.Equal(p) {
			continue
		}
		if l, ok := c.LinkTo(p); ok && l.Kind.IsChild() {
			add(c)
		}
	}
	return out
}

// Regender rewrites the direct kinds other persons hold towards p so they
// match gender g, and reports whether any link changed. Every holder is
// checked before the first write: a rewrite that would give a holder a second
// FATHER or MOTHER fails with CodeConflict and changes nothing.
func Regender(p *models.Person, g domain.Gender, others []*models.Person) (bool, error) {
	type rewrite struct {
		holder *models.Person
		kind   domain.RelationKind
	}
	var rewrites []rewrite
	for _, q := range others {
		if q == p {
			continue
		}
		l, ok := q.LinkTo(p)
		if !ok {
			continue
		}
		kind := l.Kind.WithGender(g)
		if kind == l.Kind {
			continue
		}
		if err := checkParentSlot(q, p, kind); err != nil {
			return false, err
		}
		rewrites = append(rewrites, rewrite{holder: q, kind: kind})
	}
	for _, rw := range rewrites {
		rw.holder.PutLink(p, rw.kind)
	}
	return len(rewrites) > 0, nil
}
