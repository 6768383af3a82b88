package csv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"famtree/internal/genealogy/models"
	"famtree/pkg/domain"
	"famtree/pkg/platform/sentinel"
	"famtree/pkg/testutil"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	dir   string
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
	var err error
	s.store, err = New(s.dir, "persons.csv", "links.csv")
	s.Require().NoError(err)
}

func (s *StoreSuite) write(name, content string) {
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0o600))
}

func (s *StoreSuite) TestMissingFilesAreEmpty() {
	persons, err := s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(persons)

	links, err := s.store.LoadLinks(s.ctx)
	s.Require().NoError(err)
	s.Empty(links)
}

func (s *StoreSuite) TestAppendThenLoad() {
	owner := testutil.Registered(s.T(), "1001", "Jean", "Dupont", domain.GenderMale)
	owner.AdminValidated = true
	owner.Account.LoginEnabled = true
	owner.BirthDate = testutil.Born(1960, 4, 12)
	child := testutil.Placeholder(s.T(), "Paul", "Dupont", domain.GenderMale, testutil.Born(1990, 1, 1))

	s.Require().NoError(s.store.Append(s.ctx, owner))
	s.Require().NoError(s.store.Append(s.ctx, child))

	persons, err := s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(persons, 2)

	got := persons[0]
	s.Equal(owner.Identity(), got.Identity())
	s.True(got.SameAttributes(owner))
	s.True(got.Registered)
	s.True(got.AdminValidated)
	s.Require().NotNil(got.Account)
	s.True(got.Account.LoginEnabled)
	s.Equal("Jean@Dupont.test", got.Account.Email)

	s.Nil(persons[1].Account, "placeholders carry no account")
	s.Equal(domain.VisibilityProtected, persons[1].Visibility)
}

func (s *StoreSuite) TestAppendExistingIdentity() {
	owner := testutil.Registered(s.T(), "1001", "Jean", "Dupont", domain.GenderMale)
	s.Require().NoError(s.store.Append(s.ctx, owner))

	again := testutil.Registered(s.T(), "1001", "Jean", "Doublon", domain.GenderMale)
	err := s.store.Append(s.ctx, again)
	s.True(errors.Is(err, sentinel.ErrConflict))

	persons, err := s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(persons, 1)
	s.Equal("Dupont", persons[0].FamilyName)
}

func (s *StoreSuite) TestMalformedRowsAreSkipped() {
	s.write("persons.csv", ""+
		"1001,Jean,Dupont,1960-04-12,FR,,jean@dupont.test,,,,MALE,1001,,USER,true,true,true,PUBLIC\n"+
		"too,few,columns\n"+
		"1002,Marie,Dupont,not-a-date,FR,,,,,,FEMALE,,,,false,false,false,\n"+
		",Lucie,Dupont,,FR,,,,,,F,,,,false,false,false,\n")

	persons, err := s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(persons, 2)
	s.Equal("1001", persons[0].SSN)
	s.Equal(domain.VisibilityPublic, persons[0].Visibility)
	s.Equal(domain.GenderFemale, persons[1].Gender, "legacy gender code accepted")
}

func (s *StoreSuite) TestUpdateAndDelete() {
	child := testutil.Placeholder(s.T(), "Paul", "Dupont", domain.GenderMale, testutil.Born(1990, 1, 1))
	other := testutil.Placeholder(s.T(), "Anne", "Dupont", domain.GenderFemale, testutil.Born(1992, 1, 1))
	s.Require().NoError(s.store.Append(s.ctx, child))
	s.Require().NoError(s.store.Append(s.ctx, other))

	prev := child.Identity()
	renamed := child.Snapshot()
	renamed.GivenName = "Pierre"
	s.Require().NoError(s.store.Update(s.ctx, prev, renamed))

	persons, err := s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(persons, 2)
	s.Equal("Pierre", persons[0].GivenName)

	s.Run("update of an unknown identity", func() {
		err := s.store.Update(s.ctx, prev, renamed)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Require().NoError(s.store.Delete(s.ctx, renamed.Identity()))
	persons, err = s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(persons, 1)
	s.Equal("Anne", persons[0].GivenName)
}

func (s *StoreSuite) TestFindByIdentifier() {
	owner := testutil.Registered(s.T(), "1001", "Jean", "Dupont", domain.GenderMale)
	s.Require().NoError(s.store.Append(s.ctx, owner))

	got, err := s.store.FindByIdentifier(s.ctx, "1001")
	s.Require().NoError(err)
	s.Equal("Jean", got.GivenName)

	_, err = s.store.FindByIdentifier(s.ctx, "404")
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *StoreSuite) TestLinks() {
	links := []models.LinkRecord{
		{Source: "1001", Target: "dupont|Paul|1990-01-01", Kind: domain.KindSon},
		{Source: "1002", Target: "1001", Kind: domain.KindFather},
	}
	s.Require().NoError(s.store.SaveLinks(s.ctx, links))

	got, err := s.store.LoadLinks(s.ctx)
	s.Require().NoError(err)
	s.Equal(links, got)

	s.write("links.csv", "1001,1002,COUSIN\n1001,1003,FILS\n1001,,SON\n")
	got, err = s.store.LoadLinks(s.ctx)
	s.Require().NoError(err)
	s.Equal([]models.LinkRecord{{Source: "1001", Target: "1003", Kind: domain.KindSon}}, got)
}
