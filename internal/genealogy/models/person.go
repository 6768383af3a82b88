package models

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"famtree/pkg/domain"
	dErrors "famtree/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

// PersonAttributes is the input accepted when creating a person.
type PersonAttributes struct {
	SSN         string            `validate:"omitempty,max=32"`
	GivenName   string            `validate:"required,max=128"`
	FamilyName  string            `validate:"required,max=128"`
	BirthDate   time.Time         `validate:"-"`
	Nationality string            `validate:"max=64"`
	DocumentRef string            `validate:"max=64"`
	Gender      domain.Gender     `validate:"required,oneof=MALE FEMALE"`
	PrivateCode string            `validate:"max=64"`
	Visibility  domain.Visibility `validate:"omitempty,oneof=PUBLIC PRIVATE PROTECTED"`
	Registered  bool
	Account     *Account `validate:"omitempty"`
}

// IdentityKey is the comparable identity of a person: the social-security
// identifier when known, otherwise the (family name, given name, birth date)
// tuple. Two persons are the same person iff their keys are equal.
type IdentityKey struct {
	SSN        string
	FamilyName string
	GivenName  string
	BirthDate  string
}

func (k IdentityKey) String() string {
	if k.SSN != "" {
		return k.SSN
	}
	return k.FamilyName + "|" + k.GivenName + "|" + k.BirthDate
}

// Link is one typed edge stored on its source person.
type Link struct {
	Target *Person
	Kind   domain.RelationKind
}

// Person is a node of the relationship graph, registered or placeholder.
//
// Invariants:
//   - Identity() is stable for as long as the person is indexed anywhere;
//     callers changing identity fields must re-key registries and trees
//   - links never contains the person's own key
//   - at most one FATHER and one MOTHER link
//   - Tree, when set, is owned by this person
type Person struct {
	SSN            string
	GivenName      string
	FamilyName     string
	BirthDate      time.Time
	Nationality    string
	DocumentRef    string
	Gender         domain.Gender
	PrivateCode    string
	Registered     bool
	AdminValidated bool
	Visibility     domain.Visibility
	Generation     int
	Account        *Account
	Tree           *Tree

	links map[IdentityKey]Link
}

// NewPerson validates attrs and builds a person. Visibility defaults to
// PROTECTED so a fresh record is only shown inside trees that hold it.
func NewPerson(attrs PersonAttributes) (*Person, error) {
	attrs.SSN = strings.TrimSpace(attrs.SSN)
	attrs.GivenName = strings.TrimSpace(attrs.GivenName)
	attrs.FamilyName = strings.TrimSpace(attrs.FamilyName)
	attrs.Nationality = strings.TrimSpace(attrs.Nationality)
	if attrs.Visibility == "" {
		attrs.Visibility = domain.VisibilityProtected
	}
	if err := validate.Struct(attrs); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid person attributes")
	}
	if attrs.Registered && attrs.SSN == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registered person requires an identifier")
	}
	return &Person{
		SSN:         attrs.SSN,
		GivenName:   attrs.GivenName,
		FamilyName:  attrs.FamilyName,
		BirthDate:   attrs.BirthDate,
		Nationality: attrs.Nationality,
		DocumentRef: attrs.DocumentRef,
		Gender:      attrs.Gender,
		PrivateCode: attrs.PrivateCode,
		Registered:  attrs.Registered,
		Visibility:  attrs.Visibility,
		Account:     attrs.Account,
		links:       make(map[IdentityKey]Link),
	}, nil
}

// Identity computes the person's IdentityKey.
func (p *Person) Identity() IdentityKey {
	if p.SSN != "" {
		return IdentityKey{SSN: p.SSN}
	}
	k := IdentityKey{
		FamilyName: strings.ToLower(p.FamilyName),
		GivenName:  p.GivenName,
	}
	if !p.BirthDate.IsZero() {
		k.BirthDate = p.BirthDate.Format(dateLayout)
	}
	return k
}

// Equal reports identity equality. Nil persons are never equal.
func (p *Person) Equal(other *Person) bool {
	if p == nil || other == nil {
		return false
	}
	return p == other || p.Identity() == other.Identity()
}

// SameAttributes reports whether two persons carry identical descriptive
// attributes, regardless of how they are keyed.
func (p *Person) SameAttributes(other *Person) bool {
	if p == nil || other == nil {
		return false
	}
	return p.GivenName == other.GivenName &&
		p.FamilyName == other.FamilyName &&
		p.BirthDate.Equal(other.BirthDate) &&
		p.Nationality == other.Nationality &&
		p.DocumentRef == other.DocumentRef &&
		p.Gender == other.Gender
}

// HasBirthDate reports whether a birth date is recorded.
func (p *Person) HasBirthDate() bool {
	return !p.BirthDate.IsZero()
}

// DisplayName is "Given FAMILY" for logs and notifications.
func (p *Person) DisplayName() string {
	return strings.TrimSpace(p.GivenName + " " + strings.ToUpper(p.FamilyName))
}

// LinkTo returns the link stored on p towards target, if any.
func (p *Person) LinkTo(target *Person) (Link, bool) {
	if target == nil {
		return Link{}, false
	}
	l, ok := p.links[target.Identity()]
	return l, ok
}

// Links returns the stored links ordered by target identity.
func (p *Person) Links() []Link {
	keys := make([]IdentityKey, 0, len(p.links))
	for k := range p.links {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	out := make([]Link, 0, len(keys))
	for _, k := range keys {
		out = append(out, p.links[k])
	}
	return out
}

// LinkCount returns the number of stored links.
func (p *Person) LinkCount() int {
	return len(p.links)
}

// LinkOfKind returns the first link of the given kind, in identity order.
func (p *Person) LinkOfKind(kind domain.RelationKind) (Link, bool) {
	for _, l := range p.Links() {
		if l.Kind == kind {
			return l, true
		}
	}
	return Link{}, false
}

// PutLink stores or replaces the link towards target. It performs no
// validation; use the graph package for checked mutations.
func (p *Person) PutLink(target *Person, kind domain.RelationKind) {
	if p.links == nil {
		p.links = make(map[IdentityKey]Link)
	}
	p.links[target.Identity()] = Link{Target: target, Kind: kind}
}

// DropLink removes the link keyed by k and reports whether one existed.
func (p *Person) DropLink(k IdentityKey) bool {
	if _, ok := p.links[k]; !ok {
		return false
	}
	delete(p.links, k)
	return true
}

// RekeyLink moves a link stored under oldKey to the target's current key.
func (p *Person) RekeyLink(oldKey IdentityKey) {
	l, ok := p.links[oldKey]
	if !ok {
		return
	}
	delete(p.links, oldKey)
	p.links[l.Target.Identity()] = l
}

// IsAdmin is the capability check used by the workflow and visibility policy.
func (p *Person) IsAdmin() bool {
	return p != nil && p.Account.IsAdmin()
}

// ContactAddress returns the email used for notifications, if any.
func (p *Person) ContactAddress() string {
	if p == nil || p.Account == nil {
		return ""
	}
	return p.Account.Email
}

// Snapshot returns a detached copy of p's scalar fields and account, safe to
// hand to collaborators outside the service boundary. Links and tree are not
// copied.
func (p *Person) Snapshot() *Person {
	cp := *p
	cp.links = nil
	cp.Tree = nil
	if p.Account != nil {
		acct := *p.Account
		cp.Account = &acct
	}
	return &cp
}
