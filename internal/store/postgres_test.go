package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodmatch/matchd/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_GetSolicitation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM solicitations WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSolicitation(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSolicitation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM solicitations WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "description", "agency", "naics_code", "set_aside_type",
			"zip_code", "lat", "lng", "posted_date", "response_deadline", "categories",
			"estimated_value", "status", "source_type", "company_name", "company_email",
			"created_by", "created_at",
		}).AddRow(
			int64(7), "Emergency Food Distribution", "Distribute meals", "FEMA", "624210", "",
			"38614", 34.2001, -90.5711, (*time.Time)(nil), (*time.Time)(nil),
			[]byte(`["fresh produce","cold storage"]`),
			250000.0, model.SolicitationOpen, model.SourceGovernment, "", "",
			int64(0), now,
		))

	sol, err := s.GetSolicitation(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Emergency Food Distribution", sol.Title)
	assert.Equal(t, []string{"fresh produce", "cold storage"}, sol.Categories)
	assert.Equal(t, model.SolicitationOpen, sol.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSolicitations_CategoryFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM solicitations WHERE status = \$1 AND jsonb_exists\(categories, \$2\)`).
		WithArgs(model.SolicitationOpen, "fresh produce").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "description", "agency", "naics_code", "set_aside_type",
			"zip_code", "lat", "lng", "posted_date", "response_deadline", "categories",
			"estimated_value", "status", "source_type", "company_name", "company_email",
			"created_by", "created_at",
		}))

	out, err := s.ListSolicitations(context.Background(), SolicitationFilter{
		Status:   model.SolicitationOpen,
		Category: "fresh produce",
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteSolicitation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM solicitations WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteSolicitation(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceMatches(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM match_results WHERE solicitation_id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO match_results`).
		WithArgs(pgxmock.AnyArg(), int64(3), int64(10), 92.8, "strong overlap",
			100.0, 60.0, 82.0, 95.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO match_results`).
		WithArgs(pgxmock.AnyArg(), int64(3), int64(11), 61.5, "partial overlap",
			50.0, 120.0, 70.0, 60.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	matches := []model.MatchResult{
		{OrganizationID: 10, Score: 92.8, Explanation: "strong overlap",
			CapabilityOverlap: 100, DistanceMiles: 60, NeedScoreComponent: 82, LLMScore: 95},
		{OrganizationID: 11, Score: 61.5, Explanation: "partial overlap",
			CapabilityOverlap: 50, DistanceMiles: 120, NeedScoreComponent: 70, LLMScore: 60},
	}
	err := s.ReplaceMatches(context.Background(), 3, matches)
	require.NoError(t, err)
	assert.NotEmpty(t, matches[0].ID)
	assert.NotEmpty(t, matches[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceMatches_RollbackOnInsertError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM match_results WHERE solicitation_id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO match_results`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.ReplaceMatches(context.Background(), 3, []model.MatchResult{{OrganizationID: 10}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateUser_DuplicateEmail(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("dup@example.org", "hash", "Dup", int64(0), false).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := s.CreateUser(context.Background(), &model.User{
		Email: "dup@example.org", PasswordHash: "hash", Name: "Dup",
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetZipNeedScore(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM zip_need_scores WHERE zip_code = \$1`).
		WithArgs("38614").
		WillReturnRows(pgxmock.NewRows([]string{
			"zip_code", "lat", "lng", "state", "city", "food_insecurity_rate",
			"population", "snap_participation_rate", "need_score",
		}).AddRow("38614", 34.2001, -90.5711, "MS", "Clarksdale", 0.28, 15000, 0.31, 82.0))

	z, err := s.GetZipNeedScore(context.Background(), "38614")
	require.NoError(t, err)
	assert.Equal(t, "MS", z.State)
	assert.InDelta(t, 82.0, z.NeedScore, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetZipNeedScore_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM zip_need_scores WHERE zip_code = \$1`).
		WithArgs("99999").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetZipNeedScore(context.Background(), "99999")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Stats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(pgxmock.NewRows([]string{
			"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9", "c10", "c11", "c12",
		}).AddRow(12, 30, 120, 61.5, 8, 4, 9, 74.2, 15, 10, 8, 12))

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, st.TotalSolicitations)
	assert.Equal(t, 9, st.OpenCount)
	assert.InDelta(t, 74.2, st.AvgMatchScore, 0.001)
	assert.Equal(t, 8, st.Distributors)
	assert.NoError(t, mock.ExpectationsWereMet())
}
