// Package verifier runs advisory consistency checks over a tree's members.
//
// Checks never fail the mutation that triggered them: placeholders routinely
// lack dates or reverse edges, so findings are reported and counted only.
package verifier

import (
	"context"
	"log/slog"

	"famtree/internal/genealogy/graph"
	"famtree/internal/genealogy/metrics"
	"famtree/internal/genealogy/models"
	"famtree/pkg/domain"
)

// Check names one consistency rule.
type Check string

const (
	CheckReciprocity       Check = "reciprocity"
	CheckParentCardinality Check = "parent_cardinality"
	CheckSelfLink          Check = "self_link"
	CheckTemporalOrder     Check = "temporal_order"
)

// maxParents is the number of biological parents a person may have.
const maxParents = 2

// Violation is one finding.
type Violation struct {
	Check   Check
	Subject models.IdentityKey
	Other   models.IdentityKey
	Kind    domain.RelationKind
	Detail  string
}

// Report collects the findings of one run.
type Report struct {
	TreeID     domain.TreeID
	Violations []Violation
}

// OK reports whether the run found nothing.
func (r Report) OK() bool {
	return len(r.Violations) == 0
}

// Count returns the findings for one check.
func (r Report) Count(c Check) int {
	n := 0
	for _, v := range r.Violations {
		if v.Check == c {
			n++
		}
	}
	return n
}

// Reporter receives findings as they are produced.
type Reporter interface {
	Report(ctx context.Context, treeID domain.TreeID, v Violation)
}

// Verifier runs the four checks and forwards findings to a Reporter.
type Verifier struct {
	reporter Reporter
}

// New builds a Verifier. A nil reporter only collects findings.
func New(reporter Reporter) *Verifier {
	return &Verifier{reporter: reporter}
}

// Verify checks every member of t.
func (v *Verifier) Verify(ctx context.Context, t *models.Tree) Report {
	report := Report{TreeID: t.ID}
	emit := func(viol Violation) {
		report.Violations = append(report.Violations, viol)
		if v.reporter != nil {
			v.reporter.Report(ctx, t.ID, viol)
		}
	}

	nodes := t.Nodes()
	for _, p := range nodes {
		checkSelfLinks(p, emit)
		checkReciprocity(p, emit)
		checkTemporalOrder(p, emit)
		checkParentCardinality(p, nodes, emit)
	}
	return report
}

func checkSelfLinks(p *models.Person, emit func(Violation)) {
	for _, l := range p.Links() {
		if l.Target.Equal(p) {
			emit(Violation{
				Check:   CheckSelfLink,
				Subject: p.Identity(),
				Other:   p.Identity(),
				Kind:    l.Kind,
				Detail:  "person holds a link to itself",
			})
		}
	}
}

// checkReciprocity compares each stored reverse edge with the inverse of the
// forward kind. Kinds without an inverse are not checked.
func checkReciprocity(p *models.Person, emit func(Violation)) {
	for _, l := range p.Links() {
		if l.Target.Equal(p) {
			continue
		}
		back, ok := l.Target.LinkTo(p)
		if !ok {
			continue
		}
		want, err := domain.Inverse(l.Kind, p.Gender)
		if err != nil {
			continue
		}
		if back.Kind != want {
			emit(Violation{
				Check:   CheckReciprocity,
				Subject: p.Identity(),
				Other:   l.Target.Identity(),
				Kind:    l.Kind,
				Detail:  "reverse link is " + string(back.Kind) + ", expected " + string(want),
			})
		}
	}
}

func checkParentCardinality(p *models.Person, nodes []*models.Person, emit func(Violation)) {
	parents := graph.Parents(p, nodes)
	if len(parents) > maxParents {
		emit(Violation{
			Check:   CheckParentCardinality,
			Subject: p.Identity(),
			Detail:  "person has more than two parents",
		})
	}
}

// checkTemporalOrder requires ancestors to be born before and descendants
// after the subject. Pairs missing a birth date are skipped.
func checkTemporalOrder(p *models.Person, emit func(Violation)) {
	if !p.HasBirthDate() {
		return
	}
	for _, l := range p.Links() {
		other := l.Target
		if !other.HasBirthDate() {
			continue
		}
		switch {
		case l.Kind.IsAscendant() && !other.BirthDate.Before(p.BirthDate):
			emit(Violation{
				Check:   CheckTemporalOrder,
				Subject: p.Identity(),
				Other:   other.Identity(),
				Kind:    l.Kind,
				Detail:  "ancestor is not born before the subject",
			})
		case l.Kind.IsDescendant() && !other.BirthDate.After(p.BirthDate):
			emit(Violation{
				Check:   CheckTemporalOrder,
				Subject: p.Identity(),
				Other:   other.Identity(),
				Kind:    l.Kind,
				Detail:  "descendant is not born after the subject",
			})
		}
	}
}

// LogReporter logs findings as warnings and counts them.
type LogReporter struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewLogReporter builds a reporter; both arguments may be nil.
func NewLogReporter(logger *slog.Logger, m *metrics.Metrics) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger, metrics: m}
}

func (r *LogReporter) Report(ctx context.Context, treeID domain.TreeID, v Violation) {
	r.logger.WarnContext(ctx, "consistency violation",
		"check", string(v.Check),
		"tree_id", treeID.String(),
		"subject", v.Subject.String(),
		"other", v.Other.String(),
		"kind", string(v.Kind),
		"detail", v.Detail,
	)
	r.metrics.IncrementViolation(string(v.Check))
}
