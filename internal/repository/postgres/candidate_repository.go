package postgres

import (
	"context"
	"errors"
	"fmt"

	"go-ats-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolationCode  = "23505"
	candidateEmailUnique = "candidates_email_key"
)

type candidateRepository struct {
	db *pgxpool.Pool
}

func NewCandidateRepository(db *pgxpool.Pool) domain.CandidateRepository {
	return &candidateRepository{db: db}
}

// FindByEmail loads the candidate row only; entries are not needed for the
// duplicate check.
func (r *candidateRepository) FindByEmail(ctx context.Context, email string) (*domain.Candidate, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, address,
		       cv_file_path, cv_file_name, cv_mime_type, created_at
		FROM candidates WHERE email = $1`

	var c domain.Candidate
	err := r.db.QueryRow(ctx, query, email).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address,
		&c.CVFilePath, &c.CVFileName, &c.CVMimeType, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts the candidate and all entries in one transaction.
func (r *candidateRepository) Create(ctx context.Context, c *domain.Candidate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	insertCandidate := `
		INSERT INTO candidates (
			id, first_name, last_name, email, phone, address,
			cv_file_path, cv_file_name, cv_mime_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	err = tx.QueryRow(ctx, insertCandidate,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Address,
		c.CVFilePath, c.CVFileName, c.CVMimeType,
	).Scan(&c.CreatedAt)
	if err != nil {
		if isEmailUniqueViolation(err) {
			return domain.ErrEmailExists
		}
		return fmt.Errorf("failed to insert candidate: %w", err)
	}

	eduInsert := `
		INSERT INTO education (candidate_id, institution, degree, field_of_study, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range c.Education {
		e := &c.Education[i]
		e.CandidateID = c.ID
		err := tx.QueryRow(ctx, eduInsert,
			c.ID, e.Institution, e.Degree, e.FieldOfStudy, e.StartDate, e.EndDate,
		).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("failed to insert education: %w", err)
		}
	}

	weInsert := `
		INSERT INTO work_experience (candidate_id, company, position, description, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range c.WorkExperience {
		w := &c.WorkExperience[i]
		w.CandidateID = c.ID
		err := tx.QueryRow(ctx, weInsert,
			c.ID, w.Company, w.Position, w.Description, w.StartDate, w.EndDate,
		).Scan(&w.ID)
		if err != nil {
			return fmt.Errorf("failed to insert work exp: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isEmailUniqueViolation(err) {
			return domain.ErrEmailExists
		}
		return err
	}
	return nil
}

func (r *candidateRepository) ListAll(ctx context.Context) ([]domain.Candidate, error) {
	// 1. Candidates, newest first
	query := `
		SELECT id, first_name, last_name, email, phone, address,
		       cv_file_path, cv_file_name, cv_mime_type, created_at
		FROM candidates
		ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	defer rows.Close()

	candidates := []domain.Candidate{}
	index := make(map[string]int)
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(
			&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address,
			&c.CVFilePath, &c.CVFileName, &c.CVMimeType, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		c.Education = []domain.Education{}
		c.WorkExperience = []domain.WorkExperience{}
		index[c.ID] = len(candidates)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}

	// 2. Education
	eduQuery := `
		SELECT id, candidate_id, institution, degree, field_of_study, start_date, end_date
		FROM education WHERE candidate_id = ANY($1::uuid[]) ORDER BY id`
	eRows, err := r.db.Query(ctx, eduQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch education: %w", err)
	}
	defer eRows.Close()

	for eRows.Next() {
		var e domain.Education
		if err := eRows.Scan(&e.ID, &e.CandidateID, &e.Institution, &e.Degree, &e.FieldOfStudy, &e.StartDate, &e.EndDate); err != nil {
			return nil, err
		}
		if i, ok := index[e.CandidateID]; ok {
			candidates[i].Education = append(candidates[i].Education, e)
		}
	}
	if err := eRows.Err(); err != nil {
		return nil, err
	}

	// 3. Work Experiences
	workQuery := `
		SELECT id, candidate_id, company, position, description, start_date, end_date
		FROM work_experience WHERE candidate_id = ANY($1::uuid[]) ORDER BY id`
	wRows, err := r.db.Query(ctx, workQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch work exp: %w", err)
	}
	defer wRows.Close()

	for wRows.Next() {
		var w domain.WorkExperience
		if err := wRows.Scan(&w.ID, &w.CandidateID, &w.Company, &w.Position, &w.Description, &w.StartDate, &w.EndDate); err != nil {
			return nil, err
		}
		if i, ok := index[w.CandidateID]; ok {
			candidates[i].WorkExperience = append(candidates[i].WorkExperience, w)
		}
	}
	if err := wRows.Err(); err != nil {
		return nil, err
	}

	return candidates, nil
}

func isEmailUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == uniqueViolationCode &&
		pgErr.ConstraintName == candidateEmailUnique
}
