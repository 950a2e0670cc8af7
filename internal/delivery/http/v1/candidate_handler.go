package v1

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go-ats-backend/internal/delivery/http/response"
	"go-ats-backend/internal/domain"
	"go-ats-backend/pkg/apperror"
	"go-ats-backend/pkg/logger"
	"go-ats-backend/pkg/security"
	"go-ats-backend/pkg/security/antivirus"

	"github.com/gin-gonic/gin"
)

// cvFormField is the multipart field carrying the optional CV
const cvFormField = "cv"

// multipartOverhead leaves room for the text fields and part headers
// around a CV of the maximum size.
const multipartOverhead = 1 << 20

type CandidateHandler struct {
	candidateUC   domain.CandidateUsecase
	scanner       antivirus.Scanner // nil disables malware scanning
	maxUploadSize int64
}

func NewCandidateHandler(r *gin.RouterGroup, candidateUC domain.CandidateUsecase, scanner antivirus.Scanner, maxUploadSize int64, uploadLimiter gin.HandlerFunc) {
	if maxUploadSize <= 0 {
		maxUploadSize = security.DefaultMaxCVSize
	}
	handler := &CandidateHandler{candidateUC: candidateUC, scanner: scanner, maxUploadSize: maxUploadSize}

	candidates := r.Group("/candidates")
	{
		candidates.GET("", handler.GetAllCandidates)
		candidates.POST("", uploadLimiter, handler.CreateCandidate)
	}
}

// GetAllCandidates godoc
// @Summary      List candidates
// @Description  Returns every candidate with education and work experience, newest first
// @Tags         candidates
// @Produce      json
// @Success      200  {object}  response.Response{data=[]domain.CandidateResponse}
// @Failure      500  {object}  response.Response
// @Router       /candidates [get]
func (h *CandidateHandler) GetAllCandidates(c *gin.Context) {
	candidates, err := h.candidateUC.GetAllCandidates(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	response.Success(c, http.StatusOK, "Candidates retrieved successfully", candidates)
}

// CreateCandidate godoc
// @Summary      Submit a candidate
// @Description  Creates a candidate from a multipart form. education and workExperience are JSON arrays sent as text; cv is an optional PDF or DOCX up to 5MB.
// @Tags         candidates
// @Accept       multipart/form-data
// @Produce      json
// @Param        firstName       formData  string  true   "First name"
// @Param        lastName        formData  string  true   "Last name"
// @Param        email           formData  string  true   "Email"
// @Param        phone           formData  string  false  "Phone"
// @Param        address         formData  string  false  "Address"
// @Param        education       formData  string  false  "JSON array of education entries"
// @Param        workExperience  formData  string  false  "JSON array of work experience entries"
// @Param        cv              formData  file    false  "CV (PDF or DOCX)"
// @Success      201  {object}  response.Response{data=domain.CandidateResponse}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Failure      413  {object}  response.Response
// @Failure      415  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Failure      429  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Failure      503  {object}  response.Response
// @Router       /candidates [post]
func (h *CandidateHandler) CreateCandidate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)

	if err := h.parseForm(c); err != nil {
		c.Error(err)
		return
	}

	form := domain.CandidateForm{
		FirstName:      c.PostForm("firstName"),
		LastName:       c.PostForm("lastName"),
		Email:          c.PostForm("email"),
		Phone:          c.PostForm("phone"),
		Address:        c.PostForm("address"),
		Education:      c.PostForm("education"),
		WorkExperience: c.PostForm("workExperience"),
	}

	cv, err := h.readCV(c)
	if err != nil {
		c.Error(err)
		return
	}

	candidate, err := h.candidateUC.CreateCandidate(c.Request.Context(), form, cv)
	if err != nil {
		c.Error(err)
		return
	}

	response.Success(c, http.StatusCreated, "Candidate created successfully", candidate)
}

// parseForm accepts multipart bodies and falls back to urlencoded ones,
// which simply carry no CV.
func (h *CandidateHandler) parseForm(c *gin.Context) error {
	_, err := c.MultipartForm()
	if err == nil {
		return nil
	}
	if errors.Is(err, http.ErrNotMultipart) {
		if err := c.Request.ParseForm(); err != nil {
			return h.bodyError(err)
		}
		return nil
	}
	return h.bodyError(err)
}

func (h *CandidateHandler) bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		return h.tooLarge()
	}
	return apperror.New(http.StatusBadRequest, "Invalid form data", err).
		WithErrors([]string{"request body must be multipart/form-data"})
}

func (h *CandidateHandler) readCV(c *gin.Context) (*domain.CVFile, error) {
	header, err := c.FormFile(cvFormField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, h.bodyError(err)
	}

	mimeType := header.Header.Get("Content-Type")
	result, err := security.ValidateCV(header.Filename, mimeType, header.Size, h.maxUploadSize)
	switch {
	case errors.Is(err, security.ErrUnsupportedFileType):
		return nil, apperror.UnsupportedMediaType("Unsupported file type").
			WithErrors([]string{fmt.Sprintf("Only %s files are allowed", strings.Join(security.GetAllowedExtensions(), ", "))})
	case errors.Is(err, security.ErrFileTooLarge):
		return nil, h.tooLarge()
	case err != nil:
		return nil, apperror.Internal(err)
	}

	if err := h.scanCV(c, header); err != nil {
		return nil, err
	}

	return &domain.CVFile{
		OriginalName: header.Filename,
		MimeType:     mimeType,
		Size:         header.Size,
		StorageName:  result.StorageName,
		Open:         openPart(header),
	}, nil
}

func (h *CandidateHandler) scanCV(c *gin.Context, header *multipart.FileHeader) error {
	if h.scanner == nil {
		return nil
	}

	f, err := header.Open()
	if err != nil {
		return apperror.Internal(fmt.Errorf("failed to open uploaded file: %w", err))
	}
	defer f.Close()

	result, err := h.scanner.Scan(c.Request.Context(), f)
	if err != nil {
		// Fail closed
		return apperror.ServiceUnavailable("CV scanning unavailable, please try again later", err)
	}
	if result.Infected {
		logger.Log.Warn("Rejected infected CV", "scanner", h.scanner.Name(), "threat", result.ThreatName, "ip", c.ClientIP())
		return apperror.New(http.StatusUnprocessableEntity, "CV rejected", antivirus.ErrInfected).
			WithErrors([]string{"The uploaded file did not pass the malware scan"})
	}
	return nil
}

func (h *CandidateHandler) tooLarge() error {
	return apperror.PayloadTooLarge("File too large").
		WithErrors([]string{"CV must not exceed " + security.FormatSize(h.maxUploadSize)})
}

func openPart(header *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return header.Open()
	}
}
