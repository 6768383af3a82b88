package verifier

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"famtree/internal/genealogy/graph"
	"famtree/internal/genealogy/metrics"
	"famtree/internal/genealogy/models"
	"famtree/pkg/domain"
)

type collectingReporter struct {
	got []Violation
}

func (c *collectingReporter) Report(_ context.Context, _ domain.TreeID, v Violation) {
	c.got = append(c.got, v)
}

type VerifierSuite struct {
	suite.Suite
	ctx      context.Context
	reporter *collectingReporter
	verifier *Verifier
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.ctx = context.Background()
	s.reporter = &collectingReporter{}
	s.verifier = New(s.reporter)
}

func (s *VerifierSuite) person(ssn string, g domain.Gender, born int) *models.Person {
	attrs := models.PersonAttributes{SSN: ssn, GivenName: "N" + ssn, FamilyName: "Petit", Gender: g, Registered: ssn != ""}
	if born > 0 {
		attrs.BirthDate = time.Date(born, 6, 1, 0, 0, 0, 0, time.UTC)
	}
	p, err := models.NewPerson(attrs)
	s.Require().NoError(err)
	return p
}

func (s *VerifierSuite) treeOf(owner *models.Person, members ...*models.Person) *models.Tree {
	t := models.NewTree(domain.NewTreeID(), owner)
	for _, m := range members {
		t.Add(m)
	}
	return t
}

func (s *VerifierSuite) TestConsistentTreeIsClean() {
	child := s.person("1", domain.GenderFemale, 1990)
	dad := s.person("2", domain.GenderMale, 1960)
	mum := s.person("3", domain.GenderFemale, 1962)
	s.Require().NoError(graph.AddLink(child, dad, domain.KindFather))
	s.Require().NoError(graph.AddLink(child, mum, domain.KindMother))

	report := s.verifier.Verify(s.ctx, s.treeOf(child, dad, mum))
	s.True(report.OK(), "%+v", report.Violations)
	s.Empty(s.reporter.got)
}

func (s *VerifierSuite) TestReciprocityMismatch() {
	a := s.person("1", domain.GenderMale, 0)
	b := s.person("2", domain.GenderMale, 0)
	a.PutLink(b, domain.KindFather)
	b.PutLink(a, domain.KindFather)

	report := s.verifier.Verify(s.ctx, s.treeOf(a, b))
	s.Equal(2, report.Count(CheckReciprocity))
	s.Len(s.reporter.got, len(report.Violations))
}

func (s *VerifierSuite) TestExtendedKindsSkipReciprocity() {
	a := s.person("1", domain.GenderMale, 0)
	b := s.person("2", domain.GenderMale, 0)
	a.PutLink(b, domain.KindUncle)
	b.PutLink(a, domain.KindUncle)

	report := s.verifier.Verify(s.ctx, s.treeOf(a, b))
	s.Zero(report.Count(CheckReciprocity))
}

func (s *VerifierSuite) TestParentCardinality() {
	child := s.person("1", domain.GenderMale, 0)
	dad := s.person("2", domain.GenderMale, 0)
	mum := s.person("3", domain.GenderFemale, 0)
	intruder := s.person("4", domain.GenderMale, 0)
	s.Require().NoError(graph.AddLink(child, dad, domain.KindFather))
	s.Require().NoError(graph.AddLink(child, mum, domain.KindMother))
	// A third parent claiming the child from its own side.
	intruder.PutLink(child, domain.KindSon)

	report := s.verifier.Verify(s.ctx, s.treeOf(child, dad, mum, intruder))
	s.Equal(1, report.Count(CheckParentCardinality))
	s.Equal(child.Identity(), report.Violations[0].Subject)
}

func (s *VerifierSuite) TestSelfLink() {
	p := s.person("1", domain.GenderMale, 0)
	p.PutLink(p, domain.KindFather)

	report := s.verifier.Verify(s.ctx, s.treeOf(p))
	s.Equal(1, report.Count(CheckSelfLink))
	s.Zero(report.Count(CheckReciprocity))
}

func (s *VerifierSuite) TestTemporalOrder() {
	s.Run("ancestor born after subject", func() {
		child := s.person("1", domain.GenderMale, 1950)
		dad := s.person("2", domain.GenderMale, 1970)
		s.Require().NoError(graph.AddLink(child, dad, domain.KindFather))

		report := New(nil).Verify(s.ctx, s.treeOf(child, dad))
		// forward FATHER edge and reverse SON edge both disagree with the dates.
		s.Equal(2, report.Count(CheckTemporalOrder))
	})

	s.Run("extended ascendant kinds are checked", func() {
		p := s.person("1", domain.GenderFemale, 1950)
		gm := s.person("2", domain.GenderFemale, 1990)
		p.PutLink(gm, domain.KindGrandmother)

		report := New(nil).Verify(s.ctx, s.treeOf(p, gm))
		s.Equal(1, report.Count(CheckTemporalOrder))
	})

	s.Run("collateral kinds are not checked", func() {
		p := s.person("1", domain.GenderFemale, 1950)
		uncle := s.person("2", domain.GenderMale, 1990)
		p.PutLink(uncle, domain.KindUncle)

		report := New(nil).Verify(s.ctx, s.treeOf(p, uncle))
		s.Zero(report.Count(CheckTemporalOrder))
	})

	s.Run("missing birth date skips the pair", func() {
		child := s.person("1", domain.GenderMale, 1950)
		dad := s.person("2", domain.GenderMale, 0)
		s.Require().NoError(graph.AddLink(child, dad, domain.KindFather))

		report := New(nil).Verify(s.ctx, s.treeOf(child, dad))
		s.Zero(report.Count(CheckTemporalOrder))
	})
}

func (s *VerifierSuite) TestLogReporterCountsViolations() {
	m := metrics.New(prometheus.NewRegistry())
	v := New(NewLogReporter(nil, m))
	p := s.person("1", domain.GenderMale, 0)
	p.PutLink(p, domain.KindSon)

	v.Verify(s.ctx, s.treeOf(p))
	s.Equal(1.0, testutil.ToFloat64(m.ConsistencyViolations.WithLabelValues(string(CheckSelfLink))))
}
