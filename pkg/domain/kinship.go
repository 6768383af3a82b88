package domain

import (
	"strings"

	dErrors "famtree/pkg/domain-errors"
)

// RelationKind names what the target of a link is to its source: a link
// (A, B, FATHER) reads "B is A's father".
type RelationKind string

// Direct kinds. Only these may be written through the admin path.
const (
	KindFather   RelationKind = "FATHER"
	KindMother   RelationKind = "MOTHER"
	KindSon      RelationKind = "SON"
	KindDaughter RelationKind = "DAUGHTER"
)

// Extended kinds are read from storage or derived, never authorised for
// mutation.
const (
	KindGrandfather   RelationKind = "GRANDFATHER"
	KindGrandmother   RelationKind = "GRANDMOTHER"
	KindGrandson      RelationKind = "GRANDSON"
	KindGranddaughter RelationKind = "GRANDDAUGHTER"
	KindUncle         RelationKind = "UNCLE"
	KindAunt          RelationKind = "AUNT"
	KindNephew        RelationKind = "NEPHEW"
	KindNiece         RelationKind = "NIECE"
	KindStepfather    RelationKind = "STEPFATHER"
	KindStepmother    RelationKind = "STEPMOTHER"
	KindStepson       RelationKind = "STEPSON"
	KindStepdaughter  RelationKind = "STEPDAUGHTER"
)

type kindInfo struct {
	authorized bool
	ascendant  bool
	descendant bool
}

// kinds is the single source of truth for known relation kinds.
var kinds = map[RelationKind]kindInfo{
	KindFather:        {authorized: true, ascendant: true},
	KindMother:        {authorized: true, ascendant: true},
	KindSon:           {authorized: true, descendant: true},
	KindDaughter:      {authorized: true, descendant: true},
	KindGrandfather:   {ascendant: true},
	KindGrandmother:   {ascendant: true},
	KindStepfather:    {ascendant: true},
	KindStepmother:    {ascendant: true},
	KindGrandson:      {descendant: true},
	KindGranddaughter: {descendant: true},
	KindStepson:       {descendant: true},
	KindStepdaughter:  {descendant: true},
	KindUncle:         {},
	KindAunt:          {},
	KindNephew:        {},
	KindNiece:         {},
}

// legacyKinds maps the labels used by older CSV exports.
var legacyKinds = map[string]RelationKind{
	"PERE":         KindFather,
	"MERE":         KindMother,
	"FILS":         KindSon,
	"FILLE":        KindDaughter,
	"GRAND_PERE":   KindGrandfather,
	"GRAND_MERE":   KindGrandmother,
	"PETIT_FILS":   KindGrandson,
	"PETITE_FILLE": KindGranddaughter,
	"ONCLE":        KindUncle,
	"TANTE":        KindAunt,
	"NEVEU":        KindNephew,
	"NIECE":        KindNiece,
	"BEAU_PERE":    KindStepfather,
	"BELLE_MERE":   KindStepmother,
	"BEAU_FILS":    KindStepson,
	"BELLE_FILLE":  KindStepdaughter,
}

// ParseRelationKind constructs a RelationKind from external input. Both the
// canonical names and the legacy labels are accepted.
//
// Errors: returns CodeInvalidRelation when the value is empty or unknown.
func ParseRelationKind(s string) (RelationKind, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	if norm == "" {
		return "", dErrors.New(dErrors.CodeInvalidRelation, "relation kind cannot be empty")
	}
	if k, ok := legacyKinds[norm]; ok {
		return k, nil
	}
	k := RelationKind(norm)
	if !k.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidRelation, "unknown relation kind %q", s)
	}
	return k, nil
}

func (k RelationKind) IsValid() bool {
	_, ok := kinds[k]
	return ok
}

// IsAuthorized reports whether k may be written by an admin-validated addition.
func (k RelationKind) IsAuthorized() bool {
	return kinds[k].authorized
}

// IsParent reports whether k designates a biological parent.
func (k RelationKind) IsParent() bool {
	return k == KindFather || k == KindMother
}

// IsChild reports whether k designates a biological child.
func (k RelationKind) IsChild() bool {
	return k == KindSon || k == KindDaughter
}

// IsAscendant reports whether the target of a k-link belongs to an older
// generation than its source.
func (k RelationKind) IsAscendant() bool {
	return kinds[k].ascendant
}

// IsDescendant reports whether the target of a k-link belongs to a younger
// generation than its source.
func (k RelationKind) IsDescendant() bool {
	return kinds[k].descendant
}

// ErrNoInverse is returned (wrapped with context) when a kind has no defined
// inverse. Compare with errors.Is.
var ErrNoInverse = dErrors.New(dErrors.CodeInvalidRelation, "relation kind has no inverse")

// Inverse returns the kind stored on the other side of a link. actorGender is
// the gender of the link's source, since the reverse edge describes the
// source: if B is A's FATHER then A is B's SON or DAUGHTER depending on A.
//
// Only the four direct kinds have an inverse; every other kind yields an
// error rather than an empty value.
func Inverse(kind RelationKind, actorGender Gender) (RelationKind, error) {
	switch kind {
	case KindFather, KindMother:
		if actorGender.IsMale() {
			return KindSon, nil
		}
		return KindDaughter, nil
	case KindSon, KindDaughter:
		if actorGender.IsMale() {
			return KindFather, nil
		}
		return KindMother, nil
	default:
		return "", dErrors.Wrap(ErrNoInverse, dErrors.CodeInvalidRelation, "no inverse for "+string(kind))
	}
}

// GenderOf returns the gender implied by a direct kind, if any.
func (k RelationKind) GenderOf() (Gender, bool) {
	switch k {
	case KindFather, KindSon, KindGrandfather, KindGrandson, KindUncle, KindNephew, KindStepfather, KindStepson:
		return GenderMale, true
	case KindMother, KindDaughter, KindGrandmother, KindGranddaughter, KindAunt, KindNiece, KindStepmother, KindStepdaughter:
		return GenderFemale, true
	}
	return "", false
}

// WithGender returns the direct kind naming a person of gender g in the same
// position: FATHER or MOTHER for parents, SON or DAUGHTER for children.
// Other kinds are returned unchanged.
func (k RelationKind) WithGender(g Gender) RelationKind {
	switch {
	case k.IsParent():
		if g.IsMale() {
			return KindFather
		}
		return KindMother
	case k.IsChild():
		if g.IsMale() {
			return KindSon
		}
		return KindDaughter
	}
	return k
}
