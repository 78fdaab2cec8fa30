package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/assessment-engine/internal/ai"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
)

type questionBankService struct {
	serviceCore
	validator *validator.Validator
	generator ai.QuestionGenerator
}

func NewQuestionBankService(core serviceCore, validator *validator.Validator, generator ai.QuestionGenerator) QuestionBankService {
	return &questionBankService{serviceCore: core, validator: validator, generator: generator}
}

// ===== CORE CRUD OPERATIONS =====

func (s *questionBankService) Create(ctx context.Context, actor Actor, req *QuestionBankRequest) (*models.QuestionBank, error) {
	s.logger.Info("Creating question bank", "actor_id", actor.ID, "name", req.Name)

	if !actor.Role.IsStaff() {
		return nil, NewPermissionError(actor.ID, "question_bank", 0, "create", "insufficient role permissions")
	}
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	bank := &models.QuestionBank{
		Name:         req.Name,
		Description:  req.Description,
		IsPublic:     req.IsPublic,
		InstructorID: actor.ID,
	}
	if err := s.repo.QuestionBank().Create(ctx, nil, bank); err != nil {
		return nil, fmt.Errorf("failed to create question bank: %w", err)
	}

	s.logger.Info("Question bank created successfully", "bank_id", bank.ID)
	return bank, nil
}

func (s *questionBankService) Get(ctx context.Context, actor Actor, id uint) (*models.QuestionBank, error) {
	bank, err := s.repo.QuestionBank().GetByIDWithQuestions(ctx, nil, id)
	if err != nil {
		return nil, bankError(err)
	}
	if !canReadBank(actor, bank) {
		return nil, NewPermissionError(actor.ID, "question_bank", id, "read", "not owner and bank is not public")
	}
	return bank, nil
}

func (s *questionBankService) List(ctx context.Context, actor Actor, filters repositories.QuestionBankFilters) (*QuestionBankListResponse, error) {
	if !actor.Role.IsStaff() {
		return nil, NewPermissionError(actor.ID, "question_bank", 0, "list", "insufficient role permissions")
	}
	if !actor.IsAdmin() {
		filters.InstructorID = &actor.ID
		filters.IncludePublic = true
	}
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	banks, total, err := s.repo.QuestionBank().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list question banks: %w", err)
	}
	return &QuestionBankListResponse{Banks: banks, Total: total, Limit: filters.Limit, Offset: filters.Offset}, nil
}

func (s *questionBankService) Update(ctx context.Context, actor Actor, id uint, req *QuestionBankRequest) (*models.QuestionBank, error) {
	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}
	bank, err := s.ownedBank(ctx, actor, id, "update")
	if err != nil {
		return nil, err
	}

	bank.Name = req.Name
	bank.Description = req.Description
	bank.IsPublic = req.IsPublic
	if err := s.repo.QuestionBank().Update(ctx, nil, bank); err != nil {
		return nil, fmt.Errorf("failed to update question bank: %w", err)
	}

	s.logger.Info("Question bank updated successfully", "bank_id", id)
	return bank, nil
}

func (s *questionBankService) Delete(ctx context.Context, actor Actor, id uint) error {
	if _, err := s.ownedBank(ctx, actor, id, "delete"); err != nil {
		return err
	}
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		return s.repo.QuestionBank().Delete(ctx, tx, id)
	})
	if err != nil {
		return bankError(err)
	}
	s.logger.Info("Question bank deleted successfully", "bank_id", id)
	return nil
}

// ===== QUESTION MANAGEMENT =====

func (s *questionBankService) AddQuestions(ctx context.Context, actor Actor, bankID uint, req *BankQuestionsRequest) ([]*models.BankQuestion, error) {
	if _, err := s.ownedBank(ctx, actor, bankID, "add questions"); err != nil {
		return nil, err
	}

	errs := s.validator.Validate(req)
	errs = append(errs, s.validator.ValidateQuestions(req.Questions)...)
	if len(errs) > 0 {
		return nil, errs
	}

	questions := toBankQuestions(req.Questions, models.SourceManual)
	if err := s.repo.QuestionBank().AddQuestions(ctx, nil, bankID, questions); err != nil {
		return nil, fmt.Errorf("failed to add questions: %w", err)
	}

	s.logger.Info("Questions added to bank", "bank_id", bankID, "count", len(questions))
	return questions, nil
}

func (s *questionBankService) RemoveQuestion(ctx context.Context, actor Actor, bankID, questionID uint) error {
	if _, err := s.ownedBank(ctx, actor, bankID, "remove question"); err != nil {
		return err
	}
	if err := s.repo.QuestionBank().RemoveQuestion(ctx, nil, bankID, questionID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to remove question: %w", err)
	}
	return nil
}

// Generate drafts questions with the configured generator. Drafts that fail
// question validation are dropped; only valid ones enter the bank.
func (s *questionBankService) Generate(ctx context.Context, actor Actor, bankID uint, req *GenerateQuestionsRequest) (*GenerateQuestionsResponse, error) {
	s.logger.Info("Generating questions", "bank_id", bankID, "topic", req.Topic, "count", req.Count)

	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}
	if _, err := s.ownedBank(ctx, actor, bankID, "generate questions"); err != nil {
		return nil, err
	}
	if s.generator == nil || !s.generator.Enabled() {
		return nil, ErrGeneratorUnavailable
	}

	drafts, err := s.generator.Generate(ctx, ai.GenerateParams{
		Topic:      req.Topic,
		Count:      req.Count,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			return nil, ErrGeneratorUnavailable
		}
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}
	if len(drafts) > req.Count {
		drafts = drafts[:req.Count]
	}

	var valid []QuestionRequest
	for i := range drafts {
		errs := s.validator.Validate(&drafts[i])
		errs = append(errs, s.validator.ValidateQuestion(&drafts[i], "")...)
		if len(errs) > 0 {
			s.logger.Debug("Dropping invalid generated question", "index", i, "error", errs.Error())
			continue
		}
		valid = append(valid, drafts[i])
	}
	if len(valid) == 0 {
		return nil, NewBusinessRuleError("generated_questions", "no generated question passed validation",
			map[string]interface{}{"received": len(drafts)})
	}

	questions := toBankQuestions(valid, models.SourceGenerated)
	if err := s.repo.QuestionBank().AddQuestions(ctx, nil, bankID, questions); err != nil {
		return nil, fmt.Errorf("failed to add generated questions: %w", err)
	}

	s.logger.Info("Generated questions added", "bank_id", bankID, "added", len(questions), "rejected", len(drafts)-len(valid))
	return &GenerateQuestionsResponse{Added: questions, Rejected: len(drafts) - len(valid)}, nil
}

// ImportIntoAssessment copies bank questions to the end of a draft
// assessment. Later bank edits do not affect the copies.
func (s *questionBankService) ImportIntoAssessment(ctx context.Context, actor Actor, bankID, assessmentID uint, req *ImportQuestionsRequest) (*models.Assessment, error) {
	s.logger.Info("Importing bank questions", "bank_id", bankID, "assessment_id", assessmentID, "actor_id", actor.ID)

	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}
	bank, err := s.repo.QuestionBank().GetByID(ctx, nil, bankID)
	if err != nil {
		return nil, bankError(err)
	}
	if !canReadBank(actor, bank) {
		return nil, NewPermissionError(actor.ID, "question_bank", bankID, "import", "not owner and bank is not public")
	}

	var assessment *models.Assessment
	err = s.withTx(ctx, func(tx *gorm.DB) error {
		source, err := s.repo.QuestionBank().GetQuestions(ctx, tx, bankID, req.QuestionIDs)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuestionNotFound
			}
			return fmt.Errorf("failed to load bank questions: %w", err)
		}
		if len(source) == 0 {
			return NewBusinessRuleError("empty_import", "the bank has no questions to import", nil)
		}

		assessment, err = s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, assessment, "import questions"); err != nil {
			return err
		}
		if assessment.Status != models.StatusDraft {
			return NewPolicyViolation(ReasonNotEditable, "questions can only be changed while the assessment is a draft")
		}

		start := len(assessment.Questions)
		copies := make([]models.Question, 0, len(source))
		for i, bq := range source {
			copies = append(copies, bq.ToQuestion(assessmentID, start+i))
		}
		if err := s.repo.Assessment().AppendQuestions(ctx, tx, assessmentID, copies); err != nil {
			return fmt.Errorf("failed to append questions: %w", err)
		}

		assessment.Questions = append(assessment.Questions, copies...)
		RecomputeDerivedFields(assessment)
		if err := s.repo.Assessment().Update(ctx, tx, assessment); err != nil {
			return fmt.Errorf("failed to update totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, assessment)
	s.logger.Info("Bank questions imported", "assessment_id", assessmentID, "total_marks", assessment.TotalMarks)
	return s.loadAssessment(ctx, nil, assessmentID)
}

// ===== HELPERS =====

func (s *questionBankService) ownedBank(ctx context.Context, actor Actor, id uint, action string) (*models.QuestionBank, error) {
	bank, err := s.repo.QuestionBank().GetByID(ctx, nil, id)
	if err != nil {
		return nil, bankError(err)
	}
	if !actor.IsAdmin() && bank.InstructorID != actor.ID {
		return nil, NewPermissionError(actor.ID, "question_bank", id, action, "not the owner of this bank")
	}
	return bank, nil
}

func canReadBank(actor Actor, bank *models.QuestionBank) bool {
	return actor.IsAdmin() || bank.InstructorID == actor.ID || (bank.IsPublic && actor.Role.IsStaff())
}

func bankError(err error) error {
	if repositories.IsNotFoundError(err) {
		return ErrQuestionBankNotFound
	}
	return fmt.Errorf("question bank lookup failed: %w", err)
}

func toBankQuestions(reqs []QuestionRequest, source models.QuestionSource) []*models.BankQuestion {
	built := buildQuestions(reqs, 0)
	questions := make([]*models.BankQuestion, len(built))
	for i, q := range built {
		questions[i] = &models.BankQuestion{
			Stem:        q.Stem,
			Options:     q.Options,
			Explanation: q.Explanation,
			Points:      q.Points,
			Difficulty:  q.Difficulty,
			Tags:        q.Tags,
			Source:      source,
		}
	}
	return questions
}
