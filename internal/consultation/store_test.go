package consultation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"famtree/internal/platform/sqlite"
	"famtree/pkg/domain"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := sqlite.Open(s.ctx, ":memory:")
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })
	s.store = New(db)
}

func (s *StoreSuite) TestRecordAndCount() {
	tree := domain.TreeIDFor("1001")
	other := domain.TreeIDFor("1002")
	t0 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Record(s.ctx, tree, "1001", t0))
	s.Require().NoError(s.store.Record(s.ctx, tree, "9000", t0.Add(time.Hour)))
	s.Require().NoError(s.store.Record(s.ctx, tree, "1001", t0.Add(2*time.Hour)))
	s.Require().NoError(s.store.Record(s.ctx, other, "1001", t0))

	n, err := s.store.CountByTree(s.ctx, tree)
	s.Require().NoError(err)
	s.Equal(3, n)

	n, err = s.store.CountByTree(s.ctx, domain.TreeIDFor("unseen"))
	s.Require().NoError(err)
	s.Zero(n)

	viewers, err := s.store.ViewersSince(s.ctx, tree, t0.Add(30*time.Minute))
	s.Require().NoError(err)
	s.Equal([]string{"1001", "9000"}, viewers)

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stats, 2)
	s.Equal(tree.String(), stats[0].TreeID)
	s.Equal(3, stats[0].Views)
	s.True(stats[0].LastViewedAt.Equal(t0.Add(2 * time.Hour)))
}

func (s *StoreSuite) TestRecordHonoursCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	err := s.store.Record(ctx, domain.TreeIDFor("1001"), "1001", time.Now())
	s.Error(err)

	n, err := s.store.CountByTree(s.ctx, domain.TreeIDFor("1001"))
	s.Require().NoError(err)
	s.Zero(n)
}
