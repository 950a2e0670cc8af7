package domain

import (
	"context"
	"errors"
	"io"
	"time"
)

// DateLayout is the calendar-date format used on the wire.
const DateLayout = "2006-01-02"

var ErrEmailExists = errors.New("candidate email already exists")

type Candidate struct {
	ID             string
	FirstName      string
	LastName       string
	Email          string
	Phone          *string
	Address        *string
	CVFilePath     *string
	CVFileName     *string
	CVMimeType     *string
	Education      []Education
	WorkExperience []WorkExperience
	CreatedAt      time.Time
}

type Education struct {
	ID           int64
	CandidateID  string
	Institution  string
	Degree       string
	FieldOfStudy string
	StartDate    time.Time
	EndDate      *time.Time
}

type WorkExperience struct {
	ID          int64
	CandidateID string
	Company     string
	Position    string
	Description *string
	StartDate   time.Time
	EndDate     *time.Time
}

// CandidateForm is the raw multipart submission. Education and WorkExperience
// carry JSON-encoded arrays.
type CandidateForm struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Address        string
	Education      string
	WorkExperience string
}

type EducationInput struct {
	Institution  string  `json:"institution" validate:"required,min=2"`
	Degree       string  `json:"degree" validate:"required,min=2"`
	FieldOfStudy string  `json:"fieldOfStudy" validate:"required,min=2"`
	StartDate    string  `json:"startDate" validate:"required,isodate"`
	EndDate      *string `json:"endDate" validate:"omitempty,isodate"`
}

type WorkExperienceInput struct {
	Company     string  `json:"company" validate:"required,min=2"`
	Position    string  `json:"position" validate:"required,min=2"`
	Description *string `json:"description"`
	StartDate   string  `json:"startDate" validate:"required,isodate"`
	EndDate     *string `json:"endDate" validate:"omitempty,isodate"`
}

// CreateCandidateInput is the decoded submission checked by the validator.
type CreateCandidateInput struct {
	FirstName      string                `json:"firstName" validate:"required,min=2"`
	LastName       string                `json:"lastName" validate:"required,min=2"`
	Email          string                `json:"email" validate:"required,email"`
	Phone          *string               `json:"phone"`
	Address        *string               `json:"address"`
	Education      []EducationInput      `json:"education" validate:"dive"`
	WorkExperience []WorkExperienceInput `json:"workExperience" validate:"dive"`
}

// CVFile describes an uploaded CV that passed the upload filter.
type CVFile struct {
	OriginalName string
	MimeType     string
	Size         int64
	StorageName  string
	Open         func() (io.ReadCloser, error)
}

type EducationResponse struct {
	Institution  string  `json:"institution"`
	Degree       string  `json:"degree"`
	FieldOfStudy string  `json:"fieldOfStudy"`
	StartDate    string  `json:"startDate"`
	EndDate      *string `json:"endDate"`
}

type WorkExperienceResponse struct {
	Company     string  `json:"company"`
	Position    string  `json:"position"`
	Description *string `json:"description,omitempty"`
	StartDate   string  `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

type CandidateResponse struct {
	ID             string                   `json:"id"`
	FirstName      string                   `json:"firstName"`
	LastName       string                   `json:"lastName"`
	Email          string                   `json:"email"`
	Phone          *string                  `json:"phone,omitempty"`
	Address        *string                  `json:"address,omitempty"`
	CVFileName     *string                  `json:"cvFileName,omitempty"`
	Education      []EducationResponse      `json:"education"`
	WorkExperience []WorkExperienceResponse `json:"workExperience"`
	CreatedAt      time.Time                `json:"createdAt"`
}

type CandidateRepository interface {
	// FindByEmail returns nil, nil when no candidate has the email.
	FindByEmail(ctx context.Context, email string) (*Candidate, error)
	// Create persists the candidate and its entries atomically. A duplicate
	// email yields ErrEmailExists.
	Create(ctx context.Context, candidate *Candidate) error
	// ListAll returns every candidate with entries, newest first.
	ListAll(ctx context.Context) ([]Candidate, error)
}

type CandidateUsecase interface {
	CreateCandidate(ctx context.Context, form CandidateForm, cv *CVFile) (*CandidateResponse, error)
	GetAllCandidates(ctx context.Context) ([]CandidateResponse, error)
}

// FileStorage stores CV contents under a generated name and returns the
// path that is persisted with the candidate.
type FileStorage interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}
