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

type questionBankRepository struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuestionBankRepository(db *gorm.DB, redisClient *redis.Client) repositories.QuestionBankRepository {
	return &questionBankRepository{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// ===== BASIC CRUD OPERATIONS =====

func (r *questionBankRepository) Create(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(bank).Error; err != nil {
		return handleDBError(err, "create question bank")
	}
	return nil
}

func (r *questionBankRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionBank, error) {
	db := r.getDB(tx)
	var bank models.QuestionBank
	if err := db.WithContext(ctx).First(&bank, id).Error; err != nil {
		return nil, handleDBError(err, "get question bank by id")
	}
	if err := r.countQuestions(ctx, db, []*models.QuestionBank{&bank}); err != nil {
		return nil, err
	}
	return &bank, nil
}

func (r *questionBankRepository) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionBank, error) {
	load := func(db *gorm.DB) (*models.QuestionBank, error) {
		var bank models.QuestionBank
		err := db.WithContext(ctx).
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("id ASC")
			}).
			First(&bank, id).Error
		if err != nil {
			return nil, handleDBError(err, "get question bank with questions")
		}
		bank.QuestionCount = len(bank.Questions)
		return &bank, nil
	}

	if tx != nil {
		return load(tx)
	}

	var bank models.QuestionBank
	err := r.cacheManager.QuestionBank.CacheOrExecute(ctx, cache.BankKey(id), &bank, cache.QuestionBankCacheConfig.TTL, func() (interface{}, error) {
		return load(r.db)
	})
	if err != nil {
		return nil, err
	}
	return &bank, nil
}

func (r *questionBankRepository) Update(ctx context.Context, tx *gorm.DB, bank *models.QuestionBank) error {
	db := r.getDB(tx)
	err := db.WithContext(ctx).Model(&models.QuestionBank{}).Where("id = ?", bank.ID).
		Updates(map[string]interface{}{
			"name":        bank.Name,
			"description": bank.Description,
			"is_public":   bank.IsPublic,
		}).Error
	if err != nil {
		return handleDBError(err, "update question bank")
	}
	cache.SafeDelete(ctx, r.cacheManager.QuestionBank, cache.BankKey(bank.ID))
	return nil
}

func (r *questionBankRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Where("bank_id = ?", id).Delete(&models.BankQuestion{}).Error; err != nil {
		return handleDBError(err, "delete bank questions")
	}
	result := db.WithContext(ctx).Delete(&models.QuestionBank{}, id)
	if result.Error != nil {
		return handleDBError(result.Error, "delete question bank")
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.SafeDelete(ctx, r.cacheManager.QuestionBank, cache.BankKey(id))
	return nil
}

// ===== QUERY OPERATIONS =====

// List returns the instructor's banks, plus public ones when IncludePublic is set
func (r *questionBankRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionBankFilters) ([]*models.QuestionBank, int64, error) {
	db := r.getDB(tx)
	query := db.WithContext(ctx).Model(&models.QuestionBank{})

	if filters.InstructorID != nil {
		if filters.IncludePublic {
			query = query.Where("instructor_id = ? OR is_public = ?", *filters.InstructorID, true)
		} else {
			query = query.Where("instructor_id = ?", *filters.InstructorID)
		}
	} else if filters.IncludePublic {
		query = query.Where("is_public = ?", true)
	}
	if filters.Name != nil && *filters.Name != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+*filters.Name+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count question banks")
	}

	query = r.helpers.ApplyPaginationAndSort(query, "name", "asc", filters.Limit, filters.Offset)

	var banks []*models.QuestionBank
	if err := query.Find(&banks).Error; err != nil {
		return nil, 0, handleDBError(err, "list question banks")
	}
	if err := r.countQuestions(ctx, db, banks); err != nil {
		return nil, 0, err
	}

	return banks, total, nil
}

// ===== QUESTION OPERATIONS =====

func (r *questionBankRepository) AddQuestions(ctx context.Context, tx *gorm.DB, bankID uint, questions []*models.BankQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	db := r.getDB(tx)
	for _, q := range questions {
		q.ID = 0
		q.BankID = bankID
	}
	if err := db.WithContext(ctx).Create(&questions).Error; err != nil {
		return handleDBError(err, "add bank questions")
	}
	cache.SafeDelete(ctx, r.cacheManager.QuestionBank, cache.BankKey(bankID))
	return nil
}

// GetQuestions returns the selected questions of a bank in the requested order.
// An empty ids slice selects every question.
func (r *questionBankRepository) GetQuestions(ctx context.Context, tx *gorm.DB, bankID uint, ids []uint) ([]*models.BankQuestion, error) {
	db := r.getDB(tx)
	query := db.WithContext(ctx).Where("bank_id = ?", bankID)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	var questions []*models.BankQuestion
	if err := query.Order("id ASC").Find(&questions).Error; err != nil {
		return nil, handleDBError(err, "get bank questions")
	}

	if len(ids) == 0 {
		return questions, nil
	}
	if len(questions) != len(uniqueIDs(ids)) {
		return nil, fmt.Errorf("get bank questions failed: %w", gorm.ErrRecordNotFound)
	}

	byID := make(map[uint]*models.BankQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]*models.BankQuestion, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, byID[id])
	}
	return ordered, nil
}

func (r *questionBankRepository) RemoveQuestion(ctx context.Context, tx *gorm.DB, bankID, questionID uint) error {
	db := r.getDB(tx)
	result := db.WithContext(ctx).Where("bank_id = ? AND id = ?", bankID, questionID).Delete(&models.BankQuestion{})
	if result.Error != nil {
		return handleDBError(result.Error, "remove bank question")
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.SafeDelete(ctx, r.cacheManager.QuestionBank, cache.BankKey(bankID))
	return nil
}

// ===== HELPER METHODS =====

func (r *questionBankRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *questionBankRepository) countQuestions(ctx context.Context, db *gorm.DB, banks []*models.QuestionBank) error {
	if len(banks) == 0 {
		return nil
	}
	ids := make([]uint, len(banks))
	for i, b := range banks {
		ids[i] = b.ID
	}

	var rows []struct {
		BankID uint
		Total  int
	}
	err := db.WithContext(ctx).Model(&models.BankQuestion{}).
		Select("bank_id, COUNT(*) AS total").
		Where("bank_id IN ?", ids).
		Group("bank_id").
		Scan(&rows).Error
	if err != nil {
		return handleDBError(err, "count bank questions")
	}

	counts := make(map[uint]int, len(rows))
	for _, row := range rows {
		counts[row.BankID] = row.Total
	}
	for _, b := range banks {
		b.QuestionCount = counts[b.ID]
	}
	return nil
}

func uniqueIDs(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
