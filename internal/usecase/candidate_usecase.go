package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-ats-backend/internal/domain"
	"go-ats-backend/pkg/apperror"
	"go-ats-backend/pkg/logger"
	"go-ats-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type candidateUsecase struct {
	repo     domain.CandidateRepository
	storage  domain.FileStorage
	validate *validator.Validate
}

func NewCandidateUsecase(repo domain.CandidateRepository, storage domain.FileStorage, validate *validator.Validate) domain.CandidateUsecase {
	return &candidateUsecase{
		repo:     repo,
		storage:  storage,
		validate: validate,
	}
}

func (u *candidateUsecase) CreateCandidate(ctx context.Context, form domain.CandidateForm, cv *domain.CVFile) (*domain.CandidateResponse, error) {
	input, err := decodeCandidateForm(form)
	if err != nil {
		return nil, err
	}

	if err := u.validate.Struct(input); err != nil {
		return nil, apperror.Validation("Invalid data", validation.FormatValidationErrors(err))
	}

	// Fast path; the UNIQUE constraint still catches concurrent submissions
	existing, err := u.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, emailExistsError()
	}

	candidate, err := buildCandidate(input)
	if err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	if cv != nil {
		path, err := u.storeCV(ctx, cv)
		if err != nil {
			return nil, err
		}
		candidate.CVFilePath = &path
		candidate.CVFileName = &cv.OriginalName
		candidate.CVMimeType = &cv.MimeType
	}

	if err := u.repo.Create(ctx, candidate); err != nil {
		u.discardCV(candidate.CVFilePath)
		if errors.Is(err, domain.ErrEmailExists) {
			return nil, emailExistsError()
		}
		return nil, fmt.Errorf("failed to create candidate: %w", err)
	}

	resp := toCandidateResponse(*candidate)
	return &resp, nil
}

func (u *candidateUsecase) GetAllCandidates(ctx context.Context) ([]domain.CandidateResponse, error) {
	candidates, err := u.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	result := make([]domain.CandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, toCandidateResponse(c))
	}
	return result, nil
}

func (u *candidateUsecase) storeCV(ctx context.Context, cv *domain.CVFile) (string, error) {
	src, err := cv.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	path, err := u.storage.Save(ctx, cv.StorageName, cv.MimeType, src)
	if err != nil {
		return "", fmt.Errorf("failed to store CV: %w", err)
	}
	return path, nil
}

// discardCV removes a stored CV whose candidate row was never written.
func (u *candidateUsecase) discardCV(path *string) {
	if path == nil {
		return
	}
	// The request context may already be cancelled at this point
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := u.storage.Delete(ctx, *path); err != nil {
		logger.Log.Error("Failed to remove orphaned CV", "path", *path, "error", err)
	}
}

func emailExistsError() *apperror.AppError {
	return apperror.Conflict("Email already exists").
		WithErrors([]string{"A candidate with this email already exists"})
}

func buildCandidate(in *domain.CreateCandidateInput) (*domain.Candidate, error) {
	c := &domain.Candidate{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		Phone:          in.Phone,
		Address:        in.Address,
		Education:      make([]domain.Education, 0, len(in.Education)),
		WorkExperience: make([]domain.WorkExperience, 0, len(in.WorkExperience)),
	}

	for _, e := range in.Education {
		start, end, err := parseDateRange(e.StartDate, e.EndDate)
		if err != nil {
			return nil, err
		}
		c.Education = append(c.Education, domain.Education{
			Institution:  e.Institution,
			Degree:       e.Degree,
			FieldOfStudy: e.FieldOfStudy,
			StartDate:    start,
			EndDate:      end,
		})
	}

	for _, w := range in.WorkExperience {
		start, end, err := parseDateRange(w.StartDate, w.EndDate)
		if err != nil {
			return nil, err
		}
		c.WorkExperience = append(c.WorkExperience, domain.WorkExperience{
			Company:     w.Company,
			Position:    w.Position,
			Description: w.Description,
			StartDate:   start,
			EndDate:     end,
		})
	}

	return c, nil
}

func parseDateRange(start string, end *string) (time.Time, *time.Time, error) {
	s, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("invalid start date %q", start)
	}
	if end == nil {
		return s, nil, nil
	}
	e, err := time.Parse(domain.DateLayout, *end)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("invalid end date %q", *end)
	}
	return s, &e, nil
}

func toCandidateResponse(c domain.Candidate) domain.CandidateResponse {
	resp := domain.CandidateResponse{
		ID:             c.ID,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		Phone:          c.Phone,
		Address:        c.Address,
		CVFileName:     c.CVFileName,
		Education:      make([]domain.EducationResponse, 0, len(c.Education)),
		WorkExperience: make([]domain.WorkExperienceResponse, 0, len(c.WorkExperience)),
		CreatedAt:      c.CreatedAt,
	}

	for _, e := range c.Education {
		resp.Education = append(resp.Education, domain.EducationResponse{
			Institution:  e.Institution,
			Degree:       e.Degree,
			FieldOfStudy: e.FieldOfStudy,
			StartDate:    formatDate(e.StartDate),
			EndDate:      formatOptionalDate(e.EndDate),
		})
	}

	for _, w := range c.WorkExperience {
		resp.WorkExperience = append(resp.WorkExperience, domain.WorkExperienceResponse{
			Company:     w.Company,
			Position:    w.Position,
			Description: w.Description,
			StartDate:   formatDate(w.StartDate),
			EndDate:     formatOptionalDate(w.EndDate),
		})
	}

	return resp
}

// formatDate renders the calendar date without shifting it into another zone.
func formatDate(t time.Time) string {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Format(domain.DateLayout)
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}
