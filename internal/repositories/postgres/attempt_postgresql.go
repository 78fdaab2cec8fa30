package postgres

import (
	"context"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// Create inserts a new attempt. A duplicate (student, assessment, number)
// surfaces as gorm.ErrDuplicatedKey.
func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(attempt).Error; err != nil {
		return handleDBError(err, "create attempt")
	}
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, handleDBError(err, "get attempt")
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	db := a.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Attempt{})
	query = a.helpers.ApplyAttemptFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count attempts")
	}

	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "attempt_number"
	}
	query = a.helpers.ApplyPaginationAndSort(query, sortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var attempts []*models.Attempt
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, handleDBError(err, "list attempts")
	}
	return attempts, total, nil
}

// CountByStudent counts every attempt the student has made, submitted or not
func (a *AttemptPostgreSQL) CountByStudent(ctx context.Context, tx *gorm.DB, studentID string, assessmentID uint) (int64, error) {
	db := a.getDB(tx)
	var count int64
	err := db.WithContext(ctx).Model(&models.Attempt{}).
		Where("student_id = ? AND assessment_id = ?", studentID, assessmentID).
		Count(&count).Error
	if err != nil {
		return 0, handleDBError(err, "count student attempts")
	}
	return count, nil
}

func (a *AttemptPostgreSQL) MarkSubmitted(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) (bool, error) {
	db := a.getDB(tx)
	result := db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND status = ?", attempt.ID, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":           models.AttemptSubmitted,
			"answers":          attempt.Answers,
			"score":            attempt.Score,
			"total_marks":      attempt.TotalMarks,
			"percentage":       attempt.Percentage,
			"passed":           attempt.Passed,
			"correct_count":    attempt.CorrectCount,
			"incorrect_count":  attempt.IncorrectCount,
			"unanswered_count": attempt.UnansweredCount,
			"submitted_at":     attempt.SubmittedAt,
			"time_spent":       attempt.TimeSpent,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return false, handleDBError(result.Error, "submit attempt")
	}
	return result.RowsAffected == 1, nil
}

func (a *AttemptPostgreSQL) SetPercentile(ctx context.Context, tx *gorm.DB, id uint, percentile int) error {
	db := a.getDB(tx)
	err := db.WithContext(ctx).Model(&models.Attempt{}).Where("id = ?", id).
		Update("percentile", percentile).Error
	return handleDBError(err, "set attempt percentile")
}

// SubmittedScores returns the score of every submitted attempt of an assessment
func (a *AttemptPostgreSQL) SubmittedScores(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]float64, error) {
	db := a.getDB(tx)
	var scores []float64
	err := db.WithContext(ctx).Model(&models.Attempt{}).
		Where("assessment_id = ? AND status = ?", assessmentID, models.AttemptSubmitted).
		Pluck("score", &scores).Error
	if err != nil {
		return nil, handleDBError(err, "load submitted scores")
	}
	return scores, nil
}

func (a *AttemptPostgreSQL) RecordTabSwitch(ctx context.Context, tx *gorm.DB, id uint, at time.Time) (int, error) {
	record := func(db *gorm.DB) (int, error) {
		var attempt models.Attempt
		err := db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id, status, tab_switch_count, tab_switch_events").
			First(&attempt, id).Error
		if err != nil {
			return 0, handleDBError(err, "lock attempt")
		}
		if attempt.Status != models.AttemptInProgress {
			return attempt.TabSwitchCount, repositories.ErrAttemptNotActive
		}

		events := append(datatypes.JSONSlice[time.Time]{}, attempt.TabSwitchEvents...)
		events = append(events, at)
		count := attempt.TabSwitchCount + 1

		err = db.WithContext(ctx).Model(&models.Attempt{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"tab_switch_events": events,
				"tab_switch_count":  count,
				"updated_at":        time.Now(),
			}).Error
		if err != nil {
			return 0, handleDBError(err, "record tab switch")
		}
		return count, nil
	}

	if tx != nil {
		return record(tx)
	}

	var count int
	err := a.db.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		var err error
		count, err = record(inner)
		return err
	})
	return count, err
}

func (a *AttemptPostgreSQL) DeleteByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) error {
	db := a.getDB(tx)
	err := db.WithContext(ctx).Where("assessment_id = ?", assessmentID).Delete(&models.Attempt{}).Error
	return handleDBError(err, "delete attempts")
}

// GetStats aggregates attempt figures for one assessment
func (a *AttemptPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, assessmentID uint) (*repositories.AttemptStats, error) {
	db := a.getDB(tx)
	load := func() (*repositories.AttemptStats, error) {
		var row struct {
			Submitted    int
			InProgress   int
			AverageScore float64
			HighestScore float64
			LowestScore  float64
			PassedCount  int
			AverageTime  float64
		}
		err := db.WithContext(ctx).Model(&models.Attempt{}).
			Select(`
				COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS submitted,
				COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS in_progress,
				COALESCE(AVG(CASE WHEN status = ? THEN score END), 0) AS average_score,
				COALESCE(MAX(CASE WHEN status = ? THEN score END), 0) AS highest_score,
				COALESCE(MIN(CASE WHEN status = ? THEN score END), 0) AS lowest_score,
				COALESCE(SUM(CASE WHEN status = ? AND passed THEN 1 ELSE 0 END), 0) AS passed_count,
				COALESCE(AVG(CASE WHEN status = ? THEN time_spent END), 0) AS average_time`,
				models.AttemptSubmitted, models.AttemptInProgress,
				models.AttemptSubmitted, models.AttemptSubmitted, models.AttemptSubmitted,
				models.AttemptSubmitted, models.AttemptSubmitted).
			Where("assessment_id = ?", assessmentID).
			Scan(&row).Error
		if err != nil {
			return nil, handleDBError(err, "aggregate attempt stats")
		}
		return &repositories.AttemptStats{
			SubmittedAttempts: row.Submitted,
			InProgress:        row.InProgress,
			AverageScore:      row.AverageScore,
			HighestScore:      row.HighestScore,
			LowestScore:       row.LowestScore,
			PassedCount:       row.PassedCount,
			AverageTimeSpent:  int(row.AverageTime),
		}, nil
	}

	if tx != nil {
		return load()
	}

	var stats repositories.AttemptStats
	err := a.cacheManager.Stats.CacheOrExecute(ctx, cache.StatsKey(assessmentID), &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
