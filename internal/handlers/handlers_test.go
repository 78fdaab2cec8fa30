package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeVerifier maps tokens to Casdoor users
type fakeVerifier map[string]casdoorsdk.User

func (f fakeVerifier) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	user, ok := f[token]
	if !ok {
		return nil, errors.New("signature is invalid")
	}
	return &casdoorsdk.Claims{User: user}, nil
}

var testTokens = fakeVerifier{
	"teacher-token": {Id: "teacher-1", Type: "teacher"},
	"student-token": {Id: "student-1"},
	"admin-token":   {Id: "admin-1", IsAdmin: true},
}

// Fakes embed the interface and override only what a test exercises

type fakeAssessmentService struct {
	services.AssessmentService
	create  func(actor services.Actor, req *services.CreateAssessmentRequest) (*models.Assessment, error)
	getFull func(actor services.Actor, id uint) (*models.Assessment, error)
}

func (f *fakeAssessmentService) Create(ctx context.Context, actor services.Actor, req *services.CreateAssessmentRequest) (*models.Assessment, error) {
	return f.create(actor, req)
}

func (f *fakeAssessmentService) GetFull(ctx context.Context, actor services.Actor, id uint) (*models.Assessment, error) {
	return f.getFull(actor, id)
}

type fakeAttemptService struct {
	services.AttemptService
	submit func(actor services.Actor, id uint, req *services.SubmitAttemptRequest) (*services.AttemptResult, error)
}

func (f *fakeAttemptService) Submit(ctx context.Context, actor services.Actor, id uint, req *services.SubmitAttemptRequest) (*services.AttemptResult, error) {
	return f.submit(actor, id, req)
}

type fakeReportService struct {
	services.ReportService
}

func (fakeReportService) ExportResults(ctx context.Context, actor services.Actor, id uint) (*services.ResultsExport, error) {
	return &services.ResultsExport{
		FileName:    fmt.Sprintf("assessment-%d-results.xlsx", id),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     []byte("PK"),
	}, nil
}

type fakeManager struct {
	services.ServiceManager
	assessment services.AssessmentService
	attempt    services.AttemptService
	report     services.ReportService
}

func (m *fakeManager) Assessment() services.AssessmentService     { return m.assessment }
func (m *fakeManager) Delivery() services.DeliveryService         { return nil }
func (m *fakeManager) Attempt() services.AttemptService           { return m.attempt }
func (m *fakeManager) Integrity() services.IntegrityService       { return nil }
func (m *fakeManager) Report() services.ReportService             { return m.report }
func (m *fakeManager) QuestionBank() services.QuestionBankService { return nil }

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(ctx context.Context) error { return f.err }

func newTestRouter(manager *fakeManager, health HealthChecker) *gin.Engine {
	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := gin.New()
	SetupMiddleware(router, logger, []string{"*"})
	NewHandlerManager(manager, logger, testTokens, health, nil).SetupRoutes(router)
	return router
}

func doRequest(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestAuthMiddleware(t *testing.T) {
	manager := &fakeManager{
		assessment: &fakeAssessmentService{
			getFull: func(actor services.Actor, id uint) (*models.Assessment, error) {
				return &models.Assessment{ID: id, InstructorID: actor.ID}, nil
			},
		},
	}
	router := newTestRouter(manager, nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic teacher-token", http.StatusUnauthorized},
		{"unknown token", "Bearer forged", http.StatusUnauthorized},
		{"student on staff route", "Bearer student-token", http.StatusForbidden},
		{"teacher", "Bearer teacher-token", http.StatusOK},
		{"admin passes role check", "Bearer admin-token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/7", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCreateAssessmentPassesActor(t *testing.T) {
	var got services.Actor
	manager := &fakeManager{
		assessment: &fakeAssessmentService{
			create: func(actor services.Actor, req *services.CreateAssessmentRequest) (*models.Assessment, error) {
				got = actor
				return &models.Assessment{ID: 1, Title: req.Title, Kind: req.Kind}, nil
			},
		},
	}
	router := newTestRouter(manager, nil)

	body := map[string]interface{}{"kind": "exam", "course_id": 1, "title": "Midterm", "duration": 60}
	rec := doRequest(router, http.MethodPost, "/api/v1/assessments", "teacher-token", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got.ID != "teacher-1" || got.Role != models.RoleTeacher {
		t.Errorf("actor = %+v", got)
	}

	rec = doRequest(router, http.MethodPost, "/api/v1/assessments", "teacher-token", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want 400", rec.Code)
	}
}

func TestSubmitErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"already submitted", services.NewPolicyViolation(services.ReasonAlreadySubmitted, "attempt already submitted"), http.StatusConflict, "already_submitted"},
		{"outside window", services.NewPolicyViolation(services.ReasonOutsideWindow, "closed"), http.StatusUnprocessableEntity, "outside_window"},
		{"not found", fmt.Errorf("load: %w", services.ErrAttemptNotFound), http.StatusNotFound, ""},
		{"not owner", services.NewPermissionError("student-1", "attempt", 3, "submit", "not the attempt owner"), http.StatusForbidden, ""},
		{"validation", services.ValidationErrors{{Field: "time_spent", Message: "must be 0 or greater"}}, http.StatusBadRequest, ""},
		{"feed down", cache.ErrCacheNotAvailable, http.StatusServiceUnavailable, ""},
		{"database", errors.New("connection reset"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := &fakeManager{
				attempt: &fakeAttemptService{
					submit: func(services.Actor, uint, *services.SubmitAttemptRequest) (*services.AttemptResult, error) {
						return nil, tt.err
					},
				},
			}
			router := newTestRouter(manager, nil)

			rec := doRequest(router, http.MethodPost, "/api/v1/attempts/3/submit", "student-token", services.SubmitAttemptRequest{})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decodeError(t, rec)
			if resp.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", resp.Reason, tt.wantReason)
			}
			if tt.wantStatus == http.StatusInternalServerError && resp.Message != "internal server error" {
				t.Errorf("internal error leaked: %q", resp.Message)
			}
		})
	}
}

func TestSubmitRejectsBadID(t *testing.T) {
	router := newTestRouter(&fakeManager{attempt: &fakeAttemptService{}}, nil)

	rec := doRequest(router, http.MethodPost, "/api/v1/attempts/abc/submit", "student-token", services.SubmitAttemptRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSubmitBindsAnswers(t *testing.T) {
	var got *services.SubmitAttemptRequest
	score := 1.5
	manager := &fakeManager{
		attempt: &fakeAttemptService{
			submit: func(actor services.Actor, id uint, req *services.SubmitAttemptRequest) (*services.AttemptResult, error) {
				got = req
				return &services.AttemptResult{AttemptID: id, Score: &score}, nil
			},
		},
	}
	router := newTestRouter(manager, nil)

	body := services.SubmitAttemptRequest{
		TimeSpent: 90,
		Answers:   []validator.AnswerRequest{{QuestionID: 4, SelectedOptionID: "b"}},
	}
	rec := doRequest(router, http.MethodPost, "/api/v1/attempts/9/submit", "student-token", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got == nil || got.TimeSpent != 90 || len(got.Answers) != 1 || got.Answers[0].SelectedOptionID != "b" {
		t.Errorf("bound request = %+v", got)
	}

	var result services.AttemptResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.AttemptID != 9 || result.Score == nil || *result.Score != 1.5 {
		t.Errorf("result = %+v", result)
	}
}

func TestExportResultsAttachment(t *testing.T) {
	router := newTestRouter(&fakeManager{report: fakeReportService{}}, nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/assessments/5/results/export", "teacher-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="assessment-5-results.xlsx"` {
		t.Errorf("content disposition = %q", got)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"healthy", nil, http.StatusOK},
		{"database down", errors.New("dial tcp: connection refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeManager{}, fakeHealth{err: tt.err})
			rec := doRequest(router, http.MethodGet, "/health", "", nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
