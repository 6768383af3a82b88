package models

import "famtree/pkg/domain"

// LinkRecord is the persisted form of one stored link. Source and Target are
// IdentityKey strings.
type LinkRecord struct {
	Source string
	Target string
	Kind   domain.RelationKind
}

// LinkRecords flattens the links stored on persons, in person then target
// identity order.
func LinkRecords(persons []*Person) []LinkRecord {
	var out []LinkRecord
	for _, p := range persons {
		src := p.Identity().String()
		for _, l := range p.Links() {
			out = append(out, LinkRecord{Source: src, Target: l.Target.Identity().String(), Kind: l.Kind})
		}
	}
	return out
}
