package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type AssessmentPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAssessmentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AssessmentRepository {
	return &AssessmentPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (a *AssessmentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// Create inserts the assessment together with its questions
func (a *AssessmentPostgreSQL) Create(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(assessment).Error; err != nil {
		return handleDBError(err, "create assessment")
	}
	cache.SafeInvalidatePattern(ctx, a.cacheManager.Assessment, fmt.Sprintf("instructor:%s:*", assessment.InstructorID))
	return nil
}

func (a *AssessmentPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) {
	db := a.getDB(tx)
	var assessment models.Assessment
	if err := db.WithContext(ctx).First(&assessment, id).Error; err != nil {
		return nil, handleDBError(err, "get assessment")
	}
	return &assessment, nil
}

// GetByIDWithQuestions loads the definition with ordered questions. Reads outside
// a transaction go through the definition cache.
func (a *AssessmentPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) {
	load := func(db *gorm.DB) (*models.Assessment, error) {
		var assessment models.Assessment
		err := db.WithContext(ctx).
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("position ASC, id ASC")
			}).
			First(&assessment, id).Error
		if err != nil {
			return nil, handleDBError(err, "get assessment with questions")
		}
		return &assessment, nil
	}

	if tx != nil {
		return load(tx)
	}

	var assessment models.Assessment
	err := a.cacheManager.Assessment.CacheOrExecute(ctx, cache.DefinitionKey(id), &assessment, cache.AssessmentCacheConfig.TTL, func() (interface{}, error) {
		return load(a.db)
	})
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

// Update writes the scalar fields. Status, statistics and questions have their
// own methods.
func (a *AssessmentPostgreSQL) Update(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error {
	db := a.getDB(tx)
	err := db.WithContext(ctx).Model(&models.Assessment{}).Where("id = ?", assessment.ID).Updates(map[string]interface{}{
		"title":                   assessment.Title,
		"description":             assessment.Description,
		"instructions":            assessment.Instructions,
		"duration":                assessment.Duration,
		"total_marks":             assessment.TotalMarks,
		"passing_marks":           assessment.PassingMarks,
		"passing_percentage":      assessment.PassingPercentage,
		"shuffle_questions":       assessment.ShuffleQuestions,
		"shuffle_options":         assessment.ShuffleOptions,
		"show_result_immediately": assessment.ShowResultImmediately,
		"show_correct_answers":    assessment.ShowCorrectAnswers,
		"allow_retake":            assessment.AllowRetake,
		"max_attempts":            assessment.MaxAttempts,
		"negative_marking":        assessment.NegativeMarking,
		"is_free":                 assessment.IsFree,
		"start_date":              assessment.StartDate,
		"end_date":                assessment.EndDate,
		"updated_at":              time.Now(),
	}).Error
	if err != nil {
		return handleDBError(err, "update assessment")
	}

	cache.InvalidateAssessmentCache(ctx, a.cacheManager, assessment.ID, assessment.InstructorID)
	return nil
}

// ReplaceQuestions swaps the whole question set of an assessment
func (a *AssessmentPostgreSQL) ReplaceQuestions(ctx context.Context, tx *gorm.DB, assessmentID uint, questions []models.Question) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Where("assessment_id = ?", assessmentID).Delete(&models.Question{}).Error; err != nil {
		return handleDBError(err, "delete questions")
	}
	if err := a.AppendQuestions(ctx, db, assessmentID, questions); err != nil {
		return err
	}
	return nil
}

func (a *AssessmentPostgreSQL) AppendQuestions(ctx context.Context, tx *gorm.DB, assessmentID uint, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	db := a.getDB(tx)
	for i := range questions {
		questions[i].ID = 0
		questions[i].AssessmentID = assessmentID
	}
	if err := db.WithContext(ctx).Create(&questions).Error; err != nil {
		return handleDBError(err, "create questions")
	}
	cache.SafeDelete(ctx, a.cacheManager.Assessment, cache.DefinitionKey(assessmentID))
	return nil
}

func (a *AssessmentPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AssessmentStatus, publishedAt *time.Time) error {
	db := a.getDB(tx)
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if publishedAt != nil {
		updates["published_at"] = publishedAt
	}
	result := db.WithContext(ctx).Model(&models.Assessment{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return handleDBError(result.Error, "update assessment status")
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cache.SafeDelete(ctx, a.cacheManager.Assessment, cache.DefinitionKey(id))
	return nil
}

// UpdateStatistics overwrites the running statistics with a fresh computation
func (a *AssessmentPostgreSQL) UpdateStatistics(ctx context.Context, tx *gorm.DB, id uint, attemptCount int, averageScore float64) error {
	db := a.getDB(tx)
	err := db.WithContext(ctx).Model(&models.Assessment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"attempt_count": attemptCount,
		"average_score": averageScore,
	}).Error
	if err != nil {
		return handleDBError(err, "update assessment statistics")
	}

	cache.SafeDelete(ctx, a.cacheManager.Assessment, cache.DefinitionKey(id))
	cache.SafeInvalidatePattern(ctx, a.cacheManager.Stats, fmt.Sprintf("assessment:%d:*", id))
	return nil
}

// Delete removes the assessment. Questions and attempts go with it through
// ON DELETE CASCADE.
func (a *AssessmentPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := a.getDB(tx)

	var assessment models.Assessment
	if err := db.WithContext(ctx).Select("id, instructor_id").First(&assessment, id).Error; err != nil {
		return handleDBError(err, "get assessment before delete")
	}

	if err := db.WithContext(ctx).Where("assessment_id = ?", id).Delete(&models.Question{}).Error; err != nil {
		return handleDBError(err, "delete questions")
	}
	if err := db.WithContext(ctx).Delete(&models.Assessment{}, id).Error; err != nil {
		return handleDBError(err, "delete assessment")
	}

	cache.InvalidateAssessmentCache(ctx, a.cacheManager, id, assessment.InstructorID)
	return nil
}

// List retrieves assessments with filters and pagination
func (a *AssessmentPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	db := a.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Assessment{})
	query = a.helpers.ApplyAssessmentFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count assessments")
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var assessments []*models.Assessment
	if err := query.Find(&assessments).Error; err != nil {
		return nil, 0, handleDBError(err, "list assessments")
	}

	return assessments, total, nil
}
