package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go-ats-backend/config"
	v1 "go-ats-backend/internal/delivery/http/v1"
	"go-ats-backend/internal/domain"
	"go-ats-backend/internal/usecase"
	"go-ats-backend/pkg/security/antivirus"
	"go-ats-backend/pkg/storage"
	"go-ats-backend/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// memoryRepo keeps candidates in memory and stamps increasing creation times.
type memoryRepo struct {
	mu    sync.Mutex
	items []domain.Candidate
	clock time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (*domain.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].Email == email {
			c := r.items[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) Create(ctx context.Context, candidate *domain.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Email == candidate.Email {
			return domain.ErrEmailExists
		}
	}
	candidate.ID = uuid.NewString()
	r.clock = r.clock.Add(time.Second)
	candidate.CreatedAt = r.clock
	r.items = append(r.items, *candidate)
	return nil
}

func (r *memoryRepo) ListAll(ctx context.Context) ([]domain.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.Candidate(nil), r.items...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// stubScanner returns a fixed verdict and records what it scanned.
type stubScanner struct {
	result  antivirus.ScanResult
	err     error
	scanned []byte
}

func (s *stubScanner) Scan(ctx context.Context, data io.Reader) (antivirus.ScanResult, error) {
	s.scanned, _ = io.ReadAll(data)
	return s.result, s.err
}

func (s *stubScanner) Name() string { return "stub" }

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Errors    json.RawMessage `json:"errors"`
	RequestID string          `json:"request_id"`
}

type filePart struct {
	filename    string
	contentType string
	content     []byte
}

type testServer struct {
	router    *gin.Engine
	uploadDir string
}

func newTestServer(t *testing.T, uploadsPerMinute int) *testServer {
	t.Helper()
	return newTestServerWithScanner(t, uploadsPerMinute, nil)
}

func newTestServerWithScanner(t *testing.T, uploadsPerMinute int, scanner antivirus.Scanner) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	store := storage.NewLocalStorage(dir)
	require.NoError(t, store.EnsureDir())

	uc := usecase.NewCandidateUsecase(newMemoryRepo(), store, validation.New())
	router := v1.NewRouter(v1.RouterDeps{
		CandidateUC: uc,
		Scanner:     scanner,
		Config: &config.Config{
			MaxUploadSizeBytes:       5 * 1024 * 1024,
			RateLimitUploadPerMinute: uploadsPerMinute,
			CORSAllowedOrigins:       []string{"*"},
		},
	})
	return &testServer{router: router, uploadDir: dir}
}

func (s *testServer) do(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func candidateFields(email string) map[string]string {
	return map[string]string{
		"firstName":      "Ada",
		"lastName":       "Lovelace",
		"email":          email,
		"education":      `[{"institution":"University of London","degree":"BSc","fieldOfStudy":"Mathematics","startDate":"2015-09-01","endDate":"2019-06-30"}]`,
		"workExperience": `[]`,
	}
}

func multipartRequest(t *testing.T, fields map[string]string, file *filePart) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="cv"; filename="%s"`, file.filename))
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/candidates", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCreateCandidate_WithDocx(t *testing.T) {
	s := newTestServer(t, 10)

	req := multipartRequest(t, candidateFields("ada@example.com"), &filePart{
		filename:    "Resume.DOCX",
		contentType: docxMIME,
		content:     bytes.Repeat([]byte("x"), 1024),
	})
	w, env := s.do(req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)

	var created domain.CandidateResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Email)
	require.NotNil(t, created.CVFileName)
	assert.Equal(t, "Resume.DOCX", *created.CVFileName)
	require.Len(t, created.Education, 1)
	assert.Equal(t, "2019-06-30", *created.Education[0].EndDate)

	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^cv-\d+-\d+\.docx$`, entries[0].Name())

	stored, err := os.ReadFile(filepath.Join(s.uploadDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Len(t, stored, 1024)
}

func TestCreateCandidate_URLEncodedWithoutCV(t *testing.T) {
	s := newTestServer(t, 10)

	form := url.Values{}
	for k, v := range candidateFields("noreply@example.com") {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/candidates", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w, env := s.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created domain.CandidateResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Nil(t, created.CVFileName)
}

func TestCreateCandidate_MalformedJSON(t *testing.T) {
	s := newTestServer(t, 10)

	fields := candidateFields("ada@example.com")
	fields["workExperience"] = `[{"company":`
	w, env := s.do(multipartRequest(t, fields, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid JSON data", env.Message)
}

func TestCreateCandidate_ValidationErrors(t *testing.T) {
	s := newTestServer(t, 10)

	fields := candidateFields("not-an-email")
	fields["firstName"] = "A"
	w, env := s.do(multipartRequest(t, fields, nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var errs []validation.FieldError
	require.NoError(t, json.Unmarshal(env.Errors, &errs))
	assert.Equal(t, []validation.FieldError{
		{Field: "firstName", Message: "First name must be at least 2 characters"},
		{Field: "email", Message: "Invalid email format"},
	}, errs)
}

func TestCreateCandidate_DuplicateEmail(t *testing.T) {
	s := newTestServer(t, 10)

	w, _ := s.do(multipartRequest(t, candidateFields("dup@example.com"), nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := s.do(multipartRequest(t, candidateFields("dup@example.com"), nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already exists", env.Message)
}

func TestCreateCandidate_RejectsExecutable(t *testing.T) {
	s := newTestServer(t, 10)

	req := multipartRequest(t, candidateFields("exe@example.com"), &filePart{
		filename:    "resume.exe",
		contentType: "application/pdf",
		content:     []byte("MZ"),
	})
	w, env := s.do(req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.False(t, env.Success)

	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateCandidate_RejectsOversizedPDF(t *testing.T) {
	s := newTestServer(t, 10)

	req := multipartRequest(t, candidateFields("big@example.com"), &filePart{
		filename:    "resume.pdf",
		contentType: "application/pdf",
		content:     bytes.Repeat([]byte("a"), 6*1024*1024),
	})
	w, env := s.do(req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, env.Success)
}

func TestCreateCandidate_RejectsPDFJustOverLimit(t *testing.T) {
	s := newTestServer(t, 10)

	req := multipartRequest(t, candidateFields("edge@example.com"), &filePart{
		filename:    "resume.pdf",
		contentType: "application/pdf",
		content:     bytes.Repeat([]byte("a"), 5*1024*1024+1),
	})
	w, _ := s.do(req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestGetAllCandidates_NewestFirst(t *testing.T) {
	s := newTestServer(t, 10)

	w, env := s.do(httptest.NewRequest(http.MethodGet, "/api/candidates", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	for _, email := range []string{"a@example.com", "b@example.com"} {
		w, _ := s.do(multipartRequest(t, candidateFields(email), nil))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, env = s.do(httptest.NewRequest(http.MethodGet, "/api/candidates", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Candidates retrieved successfully", env.Message)

	var list []domain.CandidateResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "b@example.com", list[0].Email)
	assert.Equal(t, "a@example.com", list[1].Email)
}

func TestCreateCandidate_RateLimited(t *testing.T) {
	s := newTestServer(t, 2)

	fields := candidateFields("ada@example.com")
	fields["education"] = "{"
	for i := 0; i < 2; i++ {
		w, _ := s.do(multipartRequest(t, fields, nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
	}

	w, env := s.do(multipartRequest(t, fields, nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Reads are not limited
	w, _ = s.do(httptest.NewRequest(http.MethodGet, "/api/candidates", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndRoot(t *testing.T) {
	s := newTestServer(t, 10)

	w, env := s.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "System operational", env.Message)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace-123", w.Header().Get("X-Request-ID"))
}

func TestCreateCandidate_ScannerVerdicts(t *testing.T) {
	pdf := &filePart{filename: "resume.pdf", contentType: "application/pdf", content: []byte("%PDF-1.7 body")}

	t.Run("clean file is stored", func(t *testing.T) {
		scanner := &stubScanner{}
		s := newTestServerWithScanner(t, 10, scanner)

		w, _ := s.do(multipartRequest(t, candidateFields("clean@example.com"), pdf))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, pdf.content, scanner.scanned)
	})

	t.Run("infected file is rejected", func(t *testing.T) {
		s := newTestServerWithScanner(t, 10, &stubScanner{result: antivirus.ScanResult{Infected: true, ThreatName: "Eicar"}})

		w, env := s.do(multipartRequest(t, candidateFields("bad@example.com"), pdf))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "CV rejected", env.Message)

		entries, err := os.ReadDir(s.uploadDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("scanner failure fails closed", func(t *testing.T) {
		s := newTestServerWithScanner(t, 10, &stubScanner{err: errors.New("clamd down")})

		w, env := s.do(multipartRequest(t, candidateFields("down@example.com"), pdf))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, env.Message, "clamd")
	})
}

type fixedHealth struct {
	status  map[string]string
	healthy bool
}

func (f fixedHealth) Check(ctx context.Context) (map[string]string, bool) {
	return f.status, f.healthy
}

func TestHealth_Degraded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := v1.NewRouter(v1.RouterDeps{
		CandidateUC: usecase.NewCandidateUsecase(newMemoryRepo(), storage.NewLocalStorage(t.TempDir()), validation.New()),
		HealthUC:    fixedHealth{status: map[string]string{"database": "unavailable"}, healthy: false},
		Config:      &config.Config{CORSAllowedOrigins: []string{"*"}},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"System degraded","data":{"database":"unavailable"}}`, w.Body.String())
}

func TestCreateCandidate_TooLargeMessageUsesExactLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := v1.NewRouter(v1.RouterDeps{
		CandidateUC: usecase.NewCandidateUsecase(newMemoryRepo(), storage.NewLocalStorage(t.TempDir()), validation.New()),
		Config: &config.Config{
			MaxUploadSizeBytes: 512 * 1024,
			CORSAllowedOrigins: []string{"*"},
		},
	})

	req := multipartRequest(t, candidateFields("small@example.com"), &filePart{
		filename:    "resume.pdf",
		contentType: "application/pdf",
		content:     bytes.Repeat([]byte("a"), 600*1024),
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.JSONEq(t, `["CV must not exceed 512 KB"]`, string(env.Errors))
}
