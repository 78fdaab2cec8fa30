package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Key builders shared by repositories and services

func DefinitionKey(assessmentID uint) string {
	return fmt.Sprintf("definition:%d", assessmentID)
}

func StatsKey(assessmentID uint) string {
	return fmt.Sprintf("assessment:%d:summary", assessmentID)
}

func BankKey(bankID uint) string {
	return fmt.Sprintf("id:%d", bankID)
}

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeSet stores a value and logs instead of failing the caller
func SafeSet(ctx context.Context, helper *CacheHelper, key string, value interface{}, ttl time.Duration) {
	if err := helper.Set(ctx, key, value, ttl); err != nil {
		slog.ErrorContext(ctx, "Failed to set cache key",
			"error", err,
			"key", key)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateAssessmentCache drops the cached definition, the instructor's
// listings and the statistics of one assessment.
func InvalidateAssessmentCache(ctx context.Context, cm *CacheManager, assessmentID uint, instructorID string) {
	SafeDelete(ctx, cm.Assessment, DefinitionKey(assessmentID))
	SafeInvalidatePattern(ctx, cm.Assessment, fmt.Sprintf("instructor:%s:*", instructorID))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("assessment:%d:*", assessmentID))
}
