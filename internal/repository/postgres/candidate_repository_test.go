package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"go-ats-backend/internal/domain"
	"go-ats-backend/internal/repository/postgres"
	"go-ats-backend/migrations"
	"go-ats-backend/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests; they run only against a disposable database.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer sqlDB.Close()
	_, err = migrations.Apply(ctx, sqlDB)
	require.NoError(t, err)
	_, err = sqlDB.ExecContext(ctx, `TRUNCATE candidates CASCADE`)
	require.NoError(t, err)

	pool, err := database.NewPostgresConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func date(s string) time.Time {
	t, _ := time.Parse(domain.DateLayout, s)
	return t
}

func newCandidate(email string) *domain.Candidate {
	end := date("2014-06-30")
	return &domain.Candidate{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Education: []domain.Education{
			{Institution: "University of London", Degree: "BSc", FieldOfStudy: "Mathematics", StartDate: date("2010-09-01"), EndDate: &end},
		},
		WorkExperience: []domain.WorkExperience{
			{Company: "Analytical Engines", Position: "Programmer", StartDate: date("2015-01-01")},
		},
	}
}

func TestCandidateRepository_CreateAndFind(t *testing.T) {
	pool := setupDB(t)
	repo := postgres.NewCandidateRepository(pool)
	ctx := context.Background()

	c := newCandidate("ada@example.com")
	require.NoError(t, repo.Create(ctx, c))
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())
	assert.NotZero(t, c.Education[0].ID)

	found, err := repo.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, c.ID, found.ID)

	missing, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCandidateRepository_DuplicateEmail(t *testing.T) {
	pool := setupDB(t)
	repo := postgres.NewCandidateRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newCandidate("dup@example.com")))
	err := repo.Create(ctx, newCandidate("dup@example.com"))
	assert.ErrorIs(t, err, domain.ErrEmailExists)

	list, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCandidateRepository_CreateIsAtomic(t *testing.T) {
	pool := setupDB(t)
	repo := postgres.NewCandidateRepository(pool)
	ctx := context.Background()

	c := newCandidate("atomic@example.com")
	// violates the date CHECK constraint after the candidate row was inserted
	bad := date("2000-01-01")
	c.WorkExperience[0].EndDate = &bad
	require.Error(t, repo.Create(ctx, c))

	found, err := repo.FindByEmail(ctx, "atomic@example.com")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestCandidateRepository_ListAllNewestFirst(t *testing.T) {
	pool := setupDB(t)
	repo := postgres.NewCandidateRepository(pool)
	ctx := context.Background()

	a := newCandidate("a@example.com")
	require.NoError(t, repo.Create(ctx, a))
	time.Sleep(10 * time.Millisecond)
	b := newCandidate("b@example.com")
	require.NoError(t, repo.Create(ctx, b))

	list, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)

	require.Len(t, list[1].Education, 1)
	assert.Equal(t, "2010-09-01", list[1].Education[0].StartDate.Format(domain.DateLayout))
	assert.Equal(t, "2014-06-30", list[1].Education[0].EndDate.Format(domain.DateLayout))
	require.Len(t, list[1].WorkExperience, 1)
	assert.Nil(t, list[1].WorkExperience[0].EndDate)
}
