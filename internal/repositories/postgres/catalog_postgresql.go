package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CatalogPostgreSQL reads the course service tables. Positive answers are
// cached briefly since they are checked on every start.
type CatalogPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewCatalogPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.CatalogRepository {
	return &CatalogPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (c *CatalogPostgreSQL) IsCourseOwner(ctx context.Context, courseID uint, instructorID string) (bool, error) {
	key := fmt.Sprintf("course_owner:%d:%s", courseID, instructorID)
	return c.exists(ctx, key, func() (int64, error) {
		var count int64
		err := c.db.WithContext(ctx).Model(&models.Course{}).
			Where("id = ? AND instructor_id = ?", courseID, instructorID).
			Count(&count).Error
		return count, err
	})
}

// GetLessonCourseID returns gorm.ErrRecordNotFound for an unknown lesson
func (c *CatalogPostgreSQL) GetLessonCourseID(ctx context.Context, lessonID uint) (uint, error) {
	var lesson models.Lesson
	err := c.cacheManager.Exists.CacheOrExecute(ctx, fmt.Sprintf("lesson:%d", lessonID), &lesson, cache.ExistsCacheConfig.TTL, func() (interface{}, error) {
		var row models.Lesson
		if err := c.db.WithContext(ctx).Select("id, course_id").First(&row, lessonID).Error; err != nil {
			return nil, handleDBError(err, "get lesson")
		}
		return &row, nil
	})
	if err != nil {
		return 0, err
	}
	return lesson.CourseID, nil
}

func (c *CatalogPostgreSQL) IsActivelyEnrolled(ctx context.Context, studentID string, courseID uint) (bool, error) {
	key := fmt.Sprintf("enrolled:%d:%s", courseID, studentID)
	return c.exists(ctx, key, func() (int64, error) {
		var count int64
		err := c.db.WithContext(ctx).Model(&models.Enrollment{}).
			Where("course_id = ? AND student_id = ? AND status = ?", courseID, studentID, models.EnrollmentActive).
			Count(&count).Error
		return count, err
	})
}

// exists caches only positive answers, so a new enrollment or course
// assignment is visible on the next request.
func (c *CatalogPostgreSQL) exists(ctx context.Context, key string, count func() (int64, error)) (bool, error) {
	var found bool
	if err := c.cacheManager.Exists.Get(ctx, key, &found); err == nil && found {
		return true, nil
	}

	n, err := count()
	if err != nil {
		return false, handleDBError(err, "catalog lookup")
	}
	if n == 0 {
		return false, nil
	}
	cache.SafeSet(ctx, c.cacheManager.Exists, key, true, cache.ExistsCacheConfig.TTL)
	return true, nil
}
