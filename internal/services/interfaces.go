package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

type CreateAssessmentRequest = validator.AssessmentCreateRequest
type UpdateAssessmentRequest = validator.AssessmentUpdateRequest
type QuestionRequest = validator.QuestionRequest
type SubmitAttemptRequest = validator.SubmitAttemptRequest
type QuestionBankRequest = validator.QuestionBankRequest
type BankQuestionsRequest = validator.BankQuestionsRequest
type GenerateQuestionsRequest = validator.GenerateQuestionsRequest
type ImportQuestionsRequest = validator.ImportQuestionsRequest

// Actor is the authenticated caller as resolved by the auth middleware
type Actor struct {
	ID   string
	Role models.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Owns reports whether the actor may manage the assessment
func (a Actor) Owns(assessment *models.Assessment) bool {
	return a.IsAdmin() || assessment.IsOwnedBy(a.ID)
}

type AssessmentListResponse struct {
	Assessments []*models.Assessment `json:"assessments"`
	Total       int64                `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

type SafeAssessmentResponse struct {
	*AssessmentView
	RemainingAttempts int `json:"remaining_attempts"`
	AttemptsUsed      int `json:"attempts_used"`
}

type StartAttemptResponse struct {
	AttemptID     uint                  `json:"attempt_id"`
	AttemptNumber int                   `json:"attempt_number"`
	AssessmentID  uint                  `json:"assessment_id"`
	Kind          models.AssessmentKind `json:"kind"`
	StartedAt     time.Time             `json:"started_at"`
	Duration      int                   `json:"duration"`
}

// AttemptResult is what a test-taker sees after submit and in their report.
// Score fields are nil while results are withheld.
type AttemptResult struct {
	AttemptID       uint                 `json:"attempt_id"`
	AssessmentID    uint                 `json:"assessment_id"`
	AttemptNumber   int                  `json:"attempt_number"`
	Status          models.AttemptStatus `json:"status"`
	StartedAt       time.Time            `json:"started_at"`
	SubmittedAt     *time.Time           `json:"submitted_at,omitempty"`
	TimeSpent       int                  `json:"time_spent"`
	ResultsWithheld bool                 `json:"results_withheld"`
	Score           *float64             `json:"score,omitempty"`
	TotalMarks      int                  `json:"total_marks"`
	Percentage      *int                 `json:"percentage,omitempty"`
	Passed          *bool                `json:"passed,omitempty"`
	Percentile      *int                 `json:"percentile,omitempty"`
	CorrectCount    *int                 `json:"correct_count,omitempty"`
	IncorrectCount  *int                 `json:"incorrect_count,omitempty"`
	UnansweredCount *int                 `json:"unanswered_count,omitempty"`
	Review          []ReviewItem         `json:"review,omitempty"`
}

// AttemptReport is the owner's view including the integrity log
type AttemptReport struct {
	Attempt *models.Attempt `json:"attempt"`
	Review  []ReviewItem    `json:"review"`
	Student *models.User    `json:"student,omitempty"`
}

// AttemptReportResponse carries exactly one of the two views
type AttemptReportResponse struct {
	Owner  *AttemptReport `json:"owner_report,omitempty"`
	Result *AttemptResult `json:"result,omitempty"`
}

type TabSwitchResponse struct {
	AttemptID      uint      `json:"attempt_id"`
	TabSwitchCount int       `json:"tab_switch_count"`
	RecordedAt     time.Time `json:"recorded_at"`
	Warning        string    `json:"warning"`
}

type AssessmentStatistics struct {
	AssessmentID      uint    `json:"assessment_id"`
	SubmittedAttempts int     `json:"submitted_attempts"`
	InProgress        int     `json:"in_progress"`
	AverageScore      float64 `json:"average_score"`
	HighestScore      float64 `json:"highest_score"`
	LowestScore       float64 `json:"lowest_score"`
	PassedCount       int     `json:"passed_count"`
	PassRate          float64 `json:"pass_rate"`
	AverageTimeSpent  int     `json:"average_time_spent"`
	TotalMarks        int     `json:"total_marks"`
}

type ResultsExport struct {
	FileName    string
	ContentType string
	Content     []byte
}

type QuestionBankListResponse struct {
	Banks  []*models.QuestionBank `json:"banks"`
	Total  int64                  `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

type GenerateQuestionsResponse struct {
	Added    []*models.BankQuestion `json:"added"`
	Rejected int                    `json:"rejected"`
}

// ===== SERVICE INTERFACES =====

type AssessmentService interface {
	Create(ctx context.Context, actor Actor, req *CreateAssessmentRequest) (*models.Assessment, error)
	Update(ctx context.Context, actor Actor, id uint, req *UpdateAssessmentRequest) (*models.Assessment, error)
	Publish(ctx context.Context, actor Actor, id uint) (*models.Assessment, error)
	Unpublish(ctx context.Context, actor Actor, id uint) (*models.Assessment, error)
	Archive(ctx context.Context, actor Actor, id uint) (*models.Assessment, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	GetFull(ctx context.Context, actor Actor, id uint) (*models.Assessment, error)
	List(ctx context.Context, actor Actor, filters repositories.AssessmentFilters) (*AssessmentListResponse, error)
}

type DeliveryService interface {
	GetSafeAssessment(ctx context.Context, actor Actor, id uint) (*SafeAssessmentResponse, error)
}

type AttemptService interface {
	Start(ctx context.Context, actor Actor, assessmentID uint) (*StartAttemptResponse, error)
	Submit(ctx context.Context, actor Actor, attemptID uint, req *SubmitAttemptRequest) (*AttemptResult, error)
	GetReport(ctx context.Context, actor Actor, attemptID uint) (*AttemptReportResponse, error)
	ListMine(ctx context.Context, actor Actor, assessmentID uint) ([]*AttemptResult, error)
}

type IntegrityService interface {
	RecordTabSwitch(ctx context.Context, actor Actor, attemptID uint) (*TabSwitchResponse, error)
	// Watch streams integrity notices of one assessment to its owner
	Watch(ctx context.Context, actor Actor, assessmentID uint) (<-chan cache.IntegrityNotice, error)
}

type ReportService interface {
	GetStatistics(ctx context.Context, actor Actor, assessmentID uint) (*AssessmentStatistics, error)
	ExportResults(ctx context.Context, actor Actor, assessmentID uint) (*ResultsExport, error)
}

type QuestionBankService interface {
	Create(ctx context.Context, actor Actor, req *QuestionBankRequest) (*models.QuestionBank, error)
	Get(ctx context.Context, actor Actor, id uint) (*models.QuestionBank, error)
	List(ctx context.Context, actor Actor, filters repositories.QuestionBankFilters) (*QuestionBankListResponse, error)
	Update(ctx context.Context, actor Actor, id uint, req *QuestionBankRequest) (*models.QuestionBank, error)
	Delete(ctx context.Context, actor Actor, id uint) error

	AddQuestions(ctx context.Context, actor Actor, bankID uint, req *BankQuestionsRequest) ([]*models.BankQuestion, error)
	RemoveQuestion(ctx context.Context, actor Actor, bankID, questionID uint) error
	Generate(ctx context.Context, actor Actor, bankID uint, req *GenerateQuestionsRequest) (*GenerateQuestionsResponse, error)
	ImportIntoAssessment(ctx context.Context, actor Actor, bankID, assessmentID uint, req *ImportQuestionsRequest) (*models.Assessment, error)
}

// ServiceManager wires every service over one repository
type ServiceManager interface {
	Assessment() AssessmentService
	Delivery() DeliveryService
	Attempt() AttemptService
	Integrity() IntegrityService
	Report() ReportService
	QuestionBank() QuestionBankService

	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
