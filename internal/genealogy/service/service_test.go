package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks PersonStore,LinkStore,Notifier,ConsultationLog,AuditPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"famtree/internal/genealogy/metrics"
	"famtree/internal/genealogy/models"
	"famtree/internal/genealogy/service/mocks"
	"famtree/internal/genealogy/tree"
	"famtree/pkg/domain"
	dErrors "famtree/pkg/domain-errors"
	"famtree/pkg/testutil"
)

// =============================================================================
// Service Test Suite
// =============================================================================
// The service is the only place where core mutations meet I/O. Tests verify
// that collaborators are called exactly when a mutation took effect, outside
// the boundary, and that their failures never leak into results.

type ServiceSuite struct {
	suite.Suite
	ctx           context.Context
	ctrl          *gomock.Controller
	persons       *mocks.MockPersonStore
	links         *mocks.MockLinkStore
	notifier      *mocks.MockNotifier
	consultations *mocks.MockConsultationLog
	metrics       *metrics.Metrics
	service       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = testutil.FixedContext()
	s.ctrl = gomock.NewController(s.T())
	s.persons = mocks.NewMockPersonStore(s.ctrl)
	s.links = mocks.NewMockLinkStore(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.consultations = mocks.NewMockConsultationLog(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())

	var err error
	s.service, err = New(s.persons, s.links, s.notifier,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithConsultationLog(s.consultations),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

// load seeds the service with:
//   - Jean Dupont (1001), registered, whose tree holds his father Louis
//   - Louis Dupont, placeholder
//   - an administrator (9000)
func (s *ServiceSuite) load() (owner, father *models.Person) {
	owner = testutil.Registered(s.T(), "1001", "Jean", "Dupont", domain.GenderMale)
	father = testutil.Placeholder(s.T(), "Louis", "Dupont", domain.GenderMale, testutil.Born(1930, 2, 2))
	admin := testutil.Admin(s.T(), "9000")
	dup := testutil.Registered(s.T(), "1001", "Jean", "Doublon", domain.GenderMale)

	s.persons.EXPECT().LoadAll(gomock.Any()).Return([]*models.Person{owner, father, admin, dup}, nil)
	s.links.EXPECT().LoadLinks(gomock.Any()).Return([]models.LinkRecord{
		{Source: "1001", Target: father.Identity().String(), Kind: domain.KindFather},
		{Source: "1001", Target: "ghost", Kind: domain.KindSon},
	}, nil)
	s.Require().NoError(s.service.Load(s.ctx))
	return owner, father
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil person store returns error", func() {
		_, err := New(nil, s.links, s.notifier)
		s.ErrorContains(err, "person store is required")
	})
	s.Run("nil link store returns error", func() {
		_, err := New(s.persons, nil, s.notifier)
		s.ErrorContains(err, "link store is required")
	})
	s.Run("nil notifier returns error", func() {
		_, err := New(s.persons, s.links, nil)
		s.ErrorContains(err, "notifier is required")
	})
}

func (s *ServiceSuite) TestLoad() {
	owner, father := s.load()

	s.True(owner.Tree.Contains(father))
	s.Equal(domain.TreeIDFor("1001"), owner.Tree.ID)
	s.Equal(1, owner.LinkCount(), "dangling link skipped")
	s.Equal(1, owner.Generation, "family links rebuilt")

	s.Run("store failure is internal", func() {
		s.persons.EXPECT().LoadAll(gomock.Any()).Return(nil, errors.New("disk gone"))
		s.links.EXPECT().LoadLinks(gomock.Any()).Return(nil, nil).MaxTimes(1)
		err := s.service.Load(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestRegister() {
	s.load()
	s.persons.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p *models.Person) error {
			s.Equal("2001", p.SSN)
			s.False(p.Account.LoginEnabled)
			return nil
		})

	input := &models.Account{Email: "lea@martin.test", LoginEnabled: true}
	p, req, err := s.service.Register(s.ctx, models.PersonAttributes{
		SSN: "2001", GivenName: "Lea", FamilyName: "Martin", Gender: domain.GenderFemale,
		Account: input,
	})
	s.Require().NoError(err)
	s.True(p.Registered)
	s.Equal(models.Account{Email: "lea@martin.test", LoginEnabled: true}, *input, "caller's account is left as given")
	s.Equal(models.RoleUser, p.Account.Role)
	s.Equal("2001", p.Account.Login)
	s.Equal(models.RequestAddPerson, req.Type)
	s.Equal(models.StatusPending, req.Status)

	s.Run("duplicate identifier is a conflict", func() {
		_, _, err := s.service.Register(s.ctx, models.PersonAttributes{
			SSN: "2001", GivenName: "Other", FamilyName: "Martin", Gender: domain.GenderFemale,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestAddLinkRequest() {
	t := s.T()
	_, father := s.load()

	testutil.Given(t, "an unregistered relative in the owner's tree", func(t *testing.T) {
		testutil.When(t, "they add a relative", func(t *testing.T) {
			s.persons.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
			s.links.EXPECT().SaveLinks(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, links []models.LinkRecord) error {
					s.Len(links, 2)
					return nil
				})

			res, err := s.service.AddLinkRequest(s.ctx, "1001", father.Identity(),
				models.PersonAttributes{GivenName: "Marcel", FamilyName: "Dupont", Gender: domain.GenderMale},
				domain.KindFather)
			s.Require().NoError(err)

			testutil.Then(t, "the change is applied at once", func(t *testing.T) {
				s.Equal(tree.OutcomeApplied, res.Outcome)
				s.Nil(res.Request)
				s.Empty(s.service.Pending(s.ctx))
			})
		})
	})

	testutil.Given(t, "the registered owner", func(t *testing.T) {
		testutil.When(t, "they add a son", func(t *testing.T) {
			res, err := s.service.AddLinkRequest(s.ctx, "1001", models.IdentityKey{SSN: "1001"},
				models.PersonAttributes{GivenName: "Paul", FamilyName: "Dupont", Gender: domain.GenderMale},
				domain.KindSon)
			s.Require().NoError(err)

			testutil.Then(t, "a pending request awaits an administrator", func(t *testing.T) {
				s.Equal(tree.OutcomePending, res.Outcome)
				pending := s.service.Pending(s.ctx)
				s.Require().Len(pending, 1)
				s.Equal(models.RequestAddLink, pending[0].Type)
				s.Equal(domain.KindSon, pending[0].Kind)
				s.Equal("1001", pending[0].Requester.SSN)
			})
			testutil.And(t, "the son is not in the tree yet", func(t *testing.T) {
				s.consultations.EXPECT().Record(gomock.Any(), gomock.Any(), "9000", testutil.FixedTime).Return(nil)
				members, err := s.service.View(s.ctx, "1001", "9000")
				s.Require().NoError(err)
				for _, m := range members {
					s.NotEqual("Paul", m.GivenName)
				}
			})
		})
	})

	s.Run("requester outside the tree", func() {
		_, err := s.service.AddLinkRequest(s.ctx, "1001", models.IdentityKey{SSN: "9000"},
			models.PersonAttributes{GivenName: "Paul", FamilyName: "Dupont", Gender: domain.GenderMale},
			domain.KindSon)
		s.True(dErrors.HasCode(err, dErrors.CodeRequesterNotInTree))
	})

	s.Run("unknown owner", func() {
		_, err := s.service.AddLinkRequest(s.ctx, "4242", models.IdentityKey{SSN: "4242"},
			models.PersonAttributes{GivenName: "Paul", FamilyName: "Dupont", Gender: domain.GenderMale},
			domain.KindSon)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestResolveAcceptPersistsAndNotifiesOnce() {
	s.load()
	res, err := s.service.AddLinkRequest(s.ctx, "1001", models.IdentityKey{SSN: "1001"},
		models.PersonAttributes{GivenName: "Paul", FamilyName: "Dupont", Gender: domain.GenderMale},
		domain.KindSon)
	s.Require().NoError(err)

	s.persons.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	s.links.EXPECT().SaveLinks(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	s.notifier.EXPECT().Send(gomock.Any(), "Jean@Dupont.test", gomock.Any(), gomock.Any()).Return(nil).Times(1)

	req, err := s.service.Resolve(s.ctx, "9000", res.Request.ID, true)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, req.Status)

	s.Run("second resolution changes nothing", func() {
		_, err := s.service.Resolve(s.ctx, "9000", res.Request.ID, false)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestResolveRejectModifyInfo() {
	owner, _ := s.load()
	name := "Jeannot"
	req, err := s.service.RequestInfoChange(s.ctx, "1001", owner.Identity(), models.InfoChanges{GivenName: &name})
	s.Require().NoError(err)
	s.Equal(models.RequestModifyInfo, req.Type)

	s.notifier.EXPECT().Send(gomock.Any(), "Jean@Dupont.test", gomock.Any(), gomock.Any()).Return(nil).Times(1)

	resolved, err := s.service.Resolve(s.ctx, "9000", req.ID, false)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, resolved.Status)
	s.Equal("Jean", owner.GivenName)
	s.Empty(s.service.Pending(s.ctx))
}

func (s *ServiceSuite) TestNotificationFailureDoesNotFailResolution() {
	owner, _ := s.load()
	nat := "FR"
	req, err := s.service.RequestInfoChange(s.ctx, "1001", owner.Identity(), models.InfoChanges{Nationality: &nat})
	s.Require().NoError(err)

	s.persons.EXPECT().Update(gomock.Any(), owner.Identity(), gomock.Any()).Return(errors.New("read-only file"))
	s.notifier.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("relay down"))

	resolved, err := s.service.Resolve(s.ctx, "9000", req.ID, true)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, resolved.Status)
	s.Equal("FR", owner.Nationality, "mutation is not rolled back")
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.NotificationFailures))
}

func (s *ServiceSuite) TestResolveRequiresAdministrator() {
	owner, _ := s.load()
	nat := "FR"
	req, err := s.service.RequestInfoChange(s.ctx, "1001", owner.Identity(), models.InfoChanges{Nationality: &nat})
	s.Require().NoError(err)

	_, err = s.service.Resolve(s.ctx, "1001", req.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	_, err = s.service.Resolve(s.ctx, "nobody", req.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Len(s.service.Pending(s.ctx), 1)
	s.True(s.service.IsAdmin(s.ctx, "9000"))
	s.False(s.service.IsAdmin(s.ctx, "1001"))
}

func (s *ServiceSuite) TestRemoveNode() {
	_, father := s.load()
	s.links.EXPECT().SaveLinks(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, links []models.LinkRecord) error {
			s.Empty(links)
			return nil
		})

	res, err := s.service.RemoveNode(s.ctx, "1001", father.Identity())
	s.Require().NoError(err)
	s.Equal(tree.OutcomeApplied, res.Outcome)

	_, err = s.service.RemoveNode(s.ctx, "1001", models.IdentityKey{SSN: "1001"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ServiceSuite) TestRequestRemoval() {
	s.load()
	req, err := s.service.RequestRemoval(s.ctx, "1001", models.IdentityKey{SSN: "1001"})
	s.Require().NoError(err)

	s.persons.EXPECT().Delete(gomock.Any(), models.IdentityKey{SSN: "1001"}).Return(nil)
	s.links.EXPECT().SaveLinks(gomock.Any(), gomock.Any()).Return(nil)
	s.notifier.EXPECT().Send(gomock.Any(), "Jean@Dupont.test", gomock.Any(), gomock.Any()).Return(nil)

	resolved, err := s.service.Resolve(s.ctx, "9000", req.ID, true)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, resolved.Status)

	_, err = s.service.Verify(s.ctx, "1001")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRequestNewRelative() {
	s.load()
	req, err := s.service.RequestNewRelative(s.ctx, "1001",
		models.PersonAttributes{GivenName: "Odette", FamilyName: "Durand", Gender: domain.GenderFemale},
		domain.KindMother)
	s.Require().NoError(err)
	s.Equal(models.RequestAddPerson, req.Type)

	_, err = s.service.RequestNewRelative(s.ctx, "1001",
		models.PersonAttributes{GivenName: "Louis", FamilyName: "Dupont", Gender: domain.GenderMale, BirthDate: testutil.Born(1930, 2, 2)},
		domain.KindFather)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.service.RequestNewRelative(s.ctx, "1001",
		models.PersonAttributes{GivenName: "Jules", FamilyName: "Dupont", Gender: domain.GenderMale},
		domain.KindUncle)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidRelation))
}

func (s *ServiceSuite) TestViewFiltersAndRecords() {
	owner, father := s.load()
	father.Visibility = domain.VisibilityPrivate

	s.consultations.EXPECT().Record(gomock.Any(), owner.Tree.ID, "9000", testutil.FixedTime).Return(nil)
	all, err := s.service.View(s.ctx, "1001", "9000")
	s.Require().NoError(err)
	s.Len(all, 2, "administrators see everything")

	s.consultations.EXPECT().Record(gomock.Any(), owner.Tree.ID, "1001", testutil.FixedTime).Return(errors.New("locked"))
	mine, err := s.service.View(s.ctx, "1001", "1001")
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal("1001", mine[0].SSN)
}

func (s *ServiceSuite) TestVerify() {
	owner, father := s.load()
	father.BirthDate = testutil.Born(2000, 1, 1)
	owner.BirthDate = testutil.Born(1960, 1, 1)

	report, err := s.service.Verify(s.ctx, "1001")
	s.Require().NoError(err)
	s.False(report.OK())

	reports := s.service.VerifyAll(s.ctx)
	s.Len(reports, 2)
	s.Equal(1.0+1.0, promtestutil.ToFloat64(s.metrics.ConsistencyViolations.WithLabelValues("temporal_order")))
}

func (s *ServiceSuite) TestCommonMembers() {
	s.load()
	common, err := s.service.CommonMembers(s.ctx, "1001", "9000")
	s.Require().NoError(err)
	s.Empty(common)
}
