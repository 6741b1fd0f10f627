//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/state"
	"secutoken/internal/compliance/store/postgres"
	id "secutoken/pkg/domain"
	"secutoken/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(postgres.EnsureSchema(context.Background(), s.pg.DB))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "compliance_state"))
}

var (
	walletA id.Address = "0x00000000000000000000000000000000000000a1"
	walletB id.Address = "0x00000000000000000000000000000000000000b1"
	usClass            = models.Classification{Country: "US", Region: models.RegionUS}
)

func (s *PostgresStoreSuite) TestSnapshotSurvivesReopen() {
	ctx := context.Background()
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	st, err := postgres.Open(ctx, s.pg.DB, models.DefaultConfig())
	s.Require().NoError(err)
	s.Require().NoError(st.Update(ctx, func(cur *state.State) error {
		a := state.Holder{Wallet: walletA, Investor: "inv-a", Class: usClass}
		b := state.Holder{Wallet: walletB, Investor: "inv-b", Class: usClass}
		if err := cur.Issue(a, 100, now); err != nil {
			return err
		}
		return cur.Transfer(a, b, 30, now)
	}))

	reopened, err := postgres.Open(ctx, s.pg.DB, models.DefaultConfig())
	s.Require().NoError(err)
	s.Require().NoError(reopened.View(ctx, func(cur *state.State) error {
		s.Equal(uint64(70), cur.Book.BalanceOf(walletA))
		s.Equal(uint64(30), cur.Book.BalanceOf(walletB))
		s.Equal(uint64(30), cur.Aggregates["inv-b"])
		return nil
	}))
}

// Justification: a rejected update must leave the stored snapshot untouched,
// otherwise a restart would resurrect a partial mutation.
func (s *PostgresStoreSuite) TestFailedUpdateIsNotPersisted() {
	ctx := context.Background()
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	a := state.Holder{Wallet: walletA, Investor: "inv-a", Class: usClass}

	st, err := postgres.Open(ctx, s.pg.DB, models.DefaultConfig())
	s.Require().NoError(err)
	s.Require().NoError(st.Update(ctx, func(cur *state.State) error {
		return cur.Issue(a, 10, now)
	}))

	boom := errors.New("boom")
	err = st.Update(ctx, func(cur *state.State) error {
		if err := cur.Issue(a, 500, now); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	loaded, err := postgres.Load(ctx, s.pg.DB, models.DefaultConfig())
	s.Require().NoError(err)
	s.Equal(uint64(10), loaded.Book.BalanceOf(walletA))
}
