package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type AssessmentFilters struct {
	Status       *models.AssessmentStatus `json:"status"`
	Kind         *models.AssessmentKind   `json:"kind"`
	InstructorID *string                  `json:"instructor_id"`
	CourseID     *uint                    `json:"course_id"`
	Limit        int                      `json:"limit"`
	Offset       int                      `json:"offset"`
	SortBy       string                   `json:"sort_by"`    // "created_at", "title", "start_date"
	SortOrder    string                   `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	AssessmentID *uint                 `json:"assessment_id"`
	StudentID    *string               `json:"student_id"`
	Status       *models.AttemptStatus `json:"status"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
	SortBy       string                `json:"sort_by"`
	SortOrder    string                `json:"sort_order"`
}

type QuestionBankFilters struct {
	InstructorID  *string `json:"instructor_id"`
	IncludePublic bool    `json:"include_public"`
	Name          *string `json:"name"`
	Limit         int     `json:"limit"`
	Offset        int     `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type AttemptStats struct {
	SubmittedAttempts int     `json:"submitted_attempts"`
	InProgress        int     `json:"in_progress"`
	AverageScore      float64 `json:"average_score"`
	HighestScore      float64 `json:"highest_score"`
	LowestScore       float64 `json:"lowest_score"`
	PassedCount       int     `json:"passed_count"`
	AverageTimeSpent  int     `json:"average_time_spent"`
}

// ===== REPOSITORY INTERFACES =====

// Every method takes an optional tx; nil means the repository's own handle.

type AssessmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error)
	Update(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error
	ReplaceQuestions(ctx context.Context, tx *gorm.DB, assessmentID uint, questions []models.Question) error
	AppendQuestions(ctx context.Context, tx *gorm.DB, assessmentID uint, questions []models.Question) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AssessmentStatus, publishedAt *time.Time) error
	UpdateStatistics(ctx context.Context, tx *gorm.DB, id uint, attemptCount int, averageScore float64) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters AssessmentFilters) ([]*models.Assessment, int64, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.Attempt, int64, error)
	CountByStudent(ctx context.Context, tx *gorm.DB, studentID string, assessmentID uint) (int64, error)

	// MarkSubmitted persists the graded attempt only if it is still in progress.
	// It returns false when another request already submitted it.
	MarkSubmitted(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) (bool, error)
	SetPercentile(ctx context.Context, tx *gorm.DB, id uint, percentile int) error
	SubmittedScores(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]float64, error)

	// RecordTabSwitch appends an integrity event to an in-progress attempt and
	// returns the new count.
	RecordTabSwitch(ctx context.Context, tx *gorm.DB, id uint, at time.Time) (int, error)

	DeleteByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) error
	GetStats(ctx context.Context, tx *gorm.DB, assessmentID uint) (*AttemptStats, error)
}

type QuestionBankRepository interface {
	Create(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionBank, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionBank, error)
	Update(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters QuestionBankFilters) ([]*models.QuestionBank, int64, error)

	AddQuestions(ctx context.Context, tx *gorm.DB, bankID uint, questions []*models.BankQuestion) error
	GetQuestions(ctx context.Context, tx *gorm.DB, bankID uint, ids []uint) ([]*models.BankQuestion, error)
	RemoveQuestion(ctx context.Context, tx *gorm.DB, bankID, questionID uint) error
}

// CatalogRepository reads course ownership and enrollment owned by the course
// service.
type CatalogRepository interface {
	IsCourseOwner(ctx context.Context, courseID uint, instructorID string) (bool, error)
	GetLessonCourseID(ctx context.Context, lessonID uint) (uint, error)
	IsActivelyEnrolled(ctx context.Context, studentID string, courseID uint) (bool, error)
}
