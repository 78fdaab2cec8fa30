package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/events"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories/postgres"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
)

var dbCounter atomic.Int64

var (
	teacher  = Actor{ID: "teacher-1", Role: models.RoleTeacher}
	outsider = Actor{ID: "teacher-2", Role: models.RoleTeacher}
	student  = Actor{ID: "student-1", Role: models.RoleStudent}
	stranger = Actor{ID: "student-2", Role: models.RoleStudent}
)

const (
	courseID = uint(1)
	lessonID = uint(10)
)

// fakeUsers stands in for the identity provider
type fakeUsers struct{}

func (fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, FullName: "User " + id, Role: models.RoleStudent}, nil
}

func (f fakeUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		u, _ := f.GetByID(ctx, id)
		users = append(users, u)
	}
	return users, nil
}

type testEnv struct {
	db        *gorm.DB
	repo      repositories.Repository
	manager   ServiceManager
	publisher *events.MockEventPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRedis(t, nil)
}

// newTestEnvWithRedis wires the definition and catalog caches to client
func newTestEnvWithRedis(t *testing.T, client *redis.Client) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:engine_%d?mode=memory&cache=shared&_foreign_keys=on", dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.Course{}, &models.Lesson{}, &models.Enrollment{},
		&models.Assessment{}, &models.Question{}, &models.Attempt{},
		&models.QuestionBank{}, &models.BankQuestion{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	seed := []interface{}{
		&models.Course{ID: courseID, InstructorID: teacher.ID, Title: "Go 101"},
		&models.Lesson{ID: lessonID, CourseID: courseID, Title: "Slices"},
		&models.Enrollment{CourseID: courseID, StudentID: student.ID, Status: models.EnrollmentActive},
	}
	for _, row := range seed {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db, RedisClient: client, UserRepository: fakeUsers{}})
	publisher := events.NewMockEventPublisher(log)

	manager := NewServiceManager(ServiceManagerConfig{
		DB:          db,
		Repo:        repo,
		Logger:      log,
		Validator:   validator.New(),
		RedisClient: client,
		Publisher:   publisher,
	})
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	return &testEnv{db: db, repo: repo, manager: manager, publisher: publisher}
}

func twoQuestionRequests() []QuestionRequest {
	return []QuestionRequest{
		{Stem: "2 + 2", Points: 1, Options: []validator.OptionRequest{
			{ID: "q1-a", Text: "4", IsCorrect: true}, {ID: "q1-b", Text: "5"},
		}},
		{Stem: "3 + 3", Points: 1, Options: []validator.OptionRequest{
			{ID: "q2-a", Text: "5"}, {ID: "q2-b", Text: "6", IsCorrect: true},
		}},
	}
}

func examRequest(mutate func(*CreateAssessmentRequest)) *CreateAssessmentRequest {
	req := &CreateAssessmentRequest{
		Kind:     models.KindExam,
		CourseID: courseID,
		AssessmentUpdateRequest: validator.AssessmentUpdateRequest{
			Title:        "Arithmetic",
			Duration:     30,
			PassingMarks: 1,
			Questions:    twoQuestionRequests(),
		},
	}
	if mutate != nil {
		mutate(req)
	}
	return req
}

func (e *testEnv) publishedExam(t *testing.T, mutate func(*CreateAssessmentRequest)) *models.Assessment {
	t.Helper()
	ctx := context.Background()
	a, err := e.manager.Assessment().Create(ctx, teacher, examRequest(mutate))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a, err = e.manager.Assessment().Publish(ctx, teacher, a.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return a
}

func answers(pairs ...interface{}) *SubmitAttemptRequest {
	req := &SubmitAttemptRequest{TimeSpent: 120}
	for i := 0; i < len(pairs); i += 2 {
		req.Answers = append(req.Answers, validator.AnswerRequest{
			QuestionID:       pairs[i].(uint),
			SelectedOptionID: pairs[i+1].(string),
		})
	}
	return req
}

func TestCreateRecomputesDerivedFields(t *testing.T) {
	env := newTestEnv(t)
	bogus := 999

	a, err := env.manager.Assessment().Create(context.Background(), teacher, examRequest(func(r *CreateAssessmentRequest) {
		r.Questions[0].Points = 2
		r.Questions[1].Points = 3
		r.PassingMarks = 4
		r.TotalMarks = &bogus
		r.PassingPercentage = &bogus
	}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.TotalMarks != 5 {
		t.Errorf("total marks = %d, want 5", a.TotalMarks)
	}
	if a.PassingPercentage != 80 {
		t.Errorf("passing percentage = %d, want 80", a.PassingPercentage)
	}
	if a.Status != models.StatusDraft {
		t.Errorf("status = %s, want draft", a.Status)
	}
	if !a.ShowResultImmediately || a.MaxAttempts != 1 {
		t.Errorf("defaults not applied: show=%v max=%d", a.ShowResultImmediately, a.MaxAttempts)
	}
}

func TestCreateRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		actor  Actor
		mutate func(*CreateAssessmentRequest)
		check  func(error) bool
	}{
		{
			name:  "student cannot author",
			actor: student,
			check: func(err error) bool { var pe *PermissionError; return errors.As(err, &pe) },
		},
		{
			name:  "not the course instructor",
			actor: outsider,
			check: func(err error) bool { var pe *PermissionError; return errors.As(err, &pe) },
		},
		{
			name:   "no questions",
			actor:  teacher,
			mutate: func(r *CreateAssessmentRequest) { r.Questions = nil },
			check:  func(err error) bool { var ve ValidationErrors; return errors.As(err, &ve) },
		},
		{
			name:  "no correct option",
			actor: teacher,
			mutate: func(r *CreateAssessmentRequest) {
				r.Questions[0].Options[0].IsCorrect = false
			},
			check: func(err error) bool { var ve ValidationErrors; return errors.As(err, &ve) },
		},
		{
			name:  "unknown lesson",
			actor: teacher,
			mutate: func(r *CreateAssessmentRequest) {
				r.Kind = models.KindQuiz
				r.LessonID = uintPtr(404)
			},
			check: func(err error) bool { return errors.Is(err, ErrLessonNotFound) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.manager.Assessment().Create(ctx, tt.actor, examRequest(tt.mutate))
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSubmitGradesAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.publishedExam(t, func(r *CreateAssessmentRequest) {
		r.Settings.NegativeMarking = true
		r.Settings.ShowCorrectAnswers = true
	})

	started, err := env.manager.Attempt().Start(ctx, student, a.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.AttemptNumber != 1 {
		t.Errorf("attempt number = %d, want 1", started.AttemptNumber)
	}

	q1, q2 := a.Questions[0].ID, a.Questions[1].ID
	result, err := env.manager.Attempt().Submit(ctx, student, started.AttemptID, answers(q1, "q1-a", q2, "q2-a"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score == nil || *result.Score != 0.75 {
		t.Fatalf("score = %v, want 0.75", result.Score)
	}
	if *result.Percentage != 38 {
		t.Errorf("percentage = %d, want 38", *result.Percentage)
	}
	if *result.Passed != false {
		t.Error("0.75 marks should not pass a passing mark of 1")
	}
	if result.Percentile == nil || *result.Percentile != 0 {
		t.Errorf("percentile = %v, want 0", result.Percentile)
	}
	if len(result.Review) != 2 {
		t.Errorf("review items = %d, want 2", len(result.Review))
	}

	_, err = env.manager.Attempt().Submit(ctx, student, started.AttemptID, answers(q1, "q1-a", q2, "q2-b"))
	if !IsPolicyViolation(err, ReasonAlreadySubmitted) {
		t.Fatalf("second submit: got %v, want already_submitted", err)
	}

	stored, err := env.repo.Attempt().GetByID(ctx, nil, started.AttemptID)
	if err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if stored.Score != 0.75 || stored.SubmittedAt == nil || stored.TimeSpent != 120 {
		t.Errorf("stored attempt = score %v submitted %v time %d", stored.Score, stored.SubmittedAt, stored.TimeSpent)
	}
	for _, rec := range stored.Answers {
		if rec.Snapshot == nil {
			t.Error("exam answer stored without snapshot")
		}
	}

	def, err := env.repo.Assessment().GetByID(ctx, nil, a.ID)
	if err != nil {
		t.Fatalf("reload assessment: %v", err)
	}
	if def.AttemptCount != 1 || def.AverageScore != 0.75 {
		t.Errorf("statistics = %d / %v, want 1 / 0.75", def.AttemptCount, def.AverageScore)
	}

	if n := len(env.publisher.EventsOfType(events.AttemptSubmitted)); n != 1 {
		t.Errorf("attempt.submitted events = %d, want 1", n)
	}
	if n := len(env.publisher.EventsOfType(events.AssessmentPublished)); n != 1 {
		t.Errorf("assessment.published events = %d, want 1", n)
	}
}

func TestRetakePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("retake not allowed", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.publishedExam(t, nil)
		if _, err := env.manager.Attempt().Start(ctx, student, a.ID); err != nil {
			t.Fatalf("first start: %v", err)
		}
		_, err := env.manager.Attempt().Start(ctx, student, a.ID)
		if !IsPolicyViolation(err, ReasonRetakeNotAllowed) {
			t.Fatalf("got %v, want retake_not_allowed", err)
		}
	})

	t.Run("max attempts reached", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.publishedExam(t, func(r *CreateAssessmentRequest) {
			r.Settings.AllowRetake = true
			r.Settings.MaxAttempts = 2
		})
		for i := 1; i <= 2; i++ {
			started, err := env.manager.Attempt().Start(ctx, student, a.ID)
			if err != nil {
				t.Fatalf("start %d: %v", i, err)
			}
			if started.AttemptNumber != i {
				t.Errorf("attempt number = %d, want %d", started.AttemptNumber, i)
			}
		}
		_, err := env.manager.Attempt().Start(ctx, student, a.ID)
		if !IsPolicyViolation(err, ReasonMaxAttemptsReached) {
			t.Fatalf("got %v, want max_attempts_reached", err)
		}
	})
}

func TestAttemptSequenceIsUnique(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.publishedExam(t, nil)

	for i := 0; i < 2; i++ {
		err := env.repo.Attempt().Create(ctx, nil, &models.Attempt{
			Kind:          models.KindExam,
			StudentID:     student.ID,
			AssessmentID:  a.ID,
			AttemptNumber: 1,
			CourseID:      courseID,
			Status:        models.AttemptInProgress,
			StartedAt:     time.Now(),
		})
		if i == 1 && !repositories.IsUniqueViolation(err) {
			t.Fatalf("duplicate attempt number: got %v, want unique violation", err)
		}
	}
}

func TestStartChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("future start date", func(t *testing.T) {
		env := newTestEnv(t)
		start := time.Now().Add(24 * time.Hour)
		end := start.Add(2 * time.Hour)
		a := env.publishedExam(t, func(r *CreateAssessmentRequest) {
			r.StartDate = &start
			r.EndDate = &end
		})
		_, err := env.manager.Attempt().Start(ctx, student, a.ID)
		if !IsPolicyViolation(err, ReasonOutsideWindow) {
			t.Fatalf("got %v, want outside_window", err)
		}
	})

	t.Run("not published", func(t *testing.T) {
		env := newTestEnv(t)
		a, err := env.manager.Assessment().Create(ctx, teacher, examRequest(nil))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		_, err = env.manager.Attempt().Start(ctx, student, a.ID)
		if !IsPolicyViolation(err, ReasonNotPublished) {
			t.Fatalf("got %v, want not_published", err)
		}
	})

	t.Run("not enrolled", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.publishedExam(t, nil)
		_, err := env.manager.Attempt().Start(ctx, stranger, a.ID)
		if !IsPolicyViolation(err, ReasonNotEnrolled) {
			t.Fatalf("got %v, want not_enrolled", err)
		}
	})

	t.Run("free quiz needs no enrollment", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.publishedExam(t, func(r *CreateAssessmentRequest) {
			r.Kind = models.KindQuiz
			r.CourseID = 0
			r.LessonID = uintPtr(lessonID)
			r.Settings.IsFree = true
		})
		if a.CourseID != courseID {
			t.Errorf("quiz course = %d, want lesson's course %d", a.CourseID, courseID)
		}
		if _, err := env.manager.Attempt().Start(ctx, stranger, a.ID); err != nil {
			t.Fatalf("start free quiz: %v", err)
		}
	})
}

func TestQuizPassesOnPercentage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.publishedExam(t, func(r *CreateAssessmentRequest) {
		r.Kind = models.KindQuiz
		r.LessonID = uintPtr(lessonID)
		r.PassingMarks = 1
	})

	started, err := env.manager.Attempt().Start(ctx, student, a.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	result, err := env.manager.Attempt().Submit(ctx, student, started.AttemptID, answers(a.Questions[0].ID, "q1-a"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !*result.Passed {
		t.Errorf("50%% should meet a 50%% passing percentage")
	}
	if result.Percentile != nil {
		t.Error("quizzes are not ranked")
	}

	_, err = env.manager.Integrity().RecordTabSwitch(ctx, student, started.AttemptID)
	if !IsPolicyViolation(err, ReasonIntegrityNotTracked) {
		t.Fatalf("got %v, want integrity_not_tracked", err)
	}
}

func TestResultsWithheld(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hidden := false
	a := env.publishedExam(t, func(r *CreateAssessmentRequest) {
		r.Settings.ShowResultImmediately = &hidden
		r.Settings.ShowCorrectAnswers = true
	})

	started, err := env.manager.Attempt().Start(ctx, student, a.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	result, err := env.manager.Attempt().Submit(ctx, student, started.AttemptID, answers(a.Questions[0].ID, "q1-a"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.ResultsWithheld || result.Score != nil || result.Review != nil {
		t.Fatalf("results leaked: %+v", result)
	}

	report, err := env.manager.Attempt().GetReport(ctx, teacher, started.AttemptID)
	if err != nil {
		t.Fatalf("owner report: %v", err)
	}
	if report.Owner == nil || report.Owner.Attempt.Score != 1 {
		t.Fatalf("owner should see the score: %+v", report)
	}

	if _, err := env.manager.Assessment().Archive(ctx, teacher, a.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	report, err = env.manager.Attempt().GetReport(ctx, student, started.AttemptID)
	if err != nil {
		t.Fatalf("student report: %v", err)
	}
	if report.Result == nil || report.Result.Score == nil {
		t.Fatal("archived assessment should release the score")
	}

	if _, err := env.manager.Attempt().GetReport(ctx, stranger, started.AttemptID); err == nil {
		t.Fatal("another student read the report")
	}
}

func TestIntegrityTabSwitch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.publishedExam(t, nil)

	started, err := env.manager.Attempt().Start(ctx, student, a.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for want := 1; want <= 2; want++ {
		resp, err := env.manager.Integrity().RecordTabSwitch(ctx, student, started.AttemptID)
		if err != nil {
			t.Fatalf("tab switch: %v", err)
		}
		if resp.TabSwitchCount != want {
			t.Errorf("count = %d, want %d", resp.TabSwitchCount, want)
		}
	}

	if _, err := env.manager.Integrity().RecordTabSwitch(ctx, stranger, started.AttemptID); err == nil {
		t.Error("another student recorded an event")
	}

	if _, err := env.manager.Attempt().Submit(ctx, student, started.AttemptID, answers()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = env.manager.Integrity().RecordTabSwitch(ctx, student, started.AttemptID)
	if !IsPolicyViolation(err, ReasonAttemptNotActive) {
		t.Fatalf("got %v, want attempt_not_active", err)
	}

	stored, err := env.repo.Attempt().GetByID(ctx, nil, started.AttemptID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.TabSwitchCount != 2 || len(stored.TabSwitchEvents) != 2 {
		t.Errorf("stored %d switches with %d timestamps", stored.TabSwitchCount, len(stored.TabSwitchEvents))
	}
	if n := len(env.publisher.EventsOfType(events.IntegrityTabSwitch)); n != 2 {
		t.Errorf("integrity events = %d, want 2", n)
	}
}

func TestSafeAssessment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.publishedExam(t, func(r *CreateAssessmentRequest) {
		r.Settings.ShuffleOptions = true
	})

	safe, err := env.manager.Delivery().GetSafeAssessment(ctx, student, a.ID)
	if err != nil {
		t.Fatalf("safe view: %v", err)
	}
	if !safe.Redacted || safe.RemainingAttempts != 1 {
		t.Errorf("redacted=%v remaining=%d", safe.Redacted, safe.RemainingAttempts)
	}
	for _, q := range safe.Questions {
		if q.Explanation != nil {
			t.Error("explanation delivered")
		}
		for _, o := range q.Options {
			if o.IsCorrect != nil {
				t.Error("correct flag delivered")
			}
		}
	}

	full, err := env.manager.Delivery().GetSafeAssessment(ctx, teacher, a.ID)
	if err != nil {
		t.Fatalf("owner view: %v", err)
	}
	if full.Redacted || full.Questions[0].Options[0].IsCorrect == nil {
		t.Error("owner view was redacted")
	}

	if _, err := env.manager.Delivery().GetSafeAssessment(ctx, stranger, a.ID); !IsPolicyViolation(err, ReasonNotEnrolled) {
		t.Errorf("got %v, want not_enrolled", err)
	}
}

func TestUpdateRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.publishedExam(t, nil)

	update := examRequest(nil).AssessmentUpdateRequest
	update.Title = "Renamed"
	update.Questions = nil
	got, err := env.manager.Assessment().Update(ctx, teacher, a.ID, &update)
	if err != nil {
		t.Fatalf("metadata update: %v", err)
	}
	if got.Title != "Renamed" || got.TotalMarks != 2 {
		t.Errorf("title=%q total=%d", got.Title, got.TotalMarks)
	}

	update.Questions = twoQuestionRequests()[:1]
	update.PassingMarks = 0
	if _, err := env.manager.Assessment().Update(ctx, teacher, a.ID, &update); !IsPolicyViolation(err, ReasonNotEditable) {
		t.Fatalf("question change after publish: got %v", err)
	}

	if _, err := env.manager.Assessment().Unpublish(ctx, teacher, a.ID); err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	got, err = env.manager.Assessment().Update(ctx, teacher, a.ID, &update)
	if err != nil {
		t.Fatalf("draft question update: %v", err)
	}
	if got.TotalMarks != 1 || len(got.Questions) != 1 {
		t.Errorf("total=%d questions=%d after replace", got.TotalMarks, len(got.Questions))
	}

	if _, err := env.manager.Assessment().Update(ctx, outsider, a.ID, &update); err == nil {
		t.Error("non-owner updated the assessment")
	}

	if _, err := env.manager.Assessment().Archive(ctx, teacher, a.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := env.manager.Assessment().Publish(ctx, teacher, a.ID); !IsPolicyViolation(err, ReasonInvalidTransition) {
		t.Errorf("publish archived: got %v", err)
	}
}

func TestPublishRejectsEndedWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := time.Now().Add(-48 * time.Hour)
	end := time.Now().Add(-24 * time.Hour)

	a, err := env.manager.Assessment().Create(ctx, teacher, examRequest(func(r *CreateAssessmentRequest) {
		r.StartDate = &start
		r.EndDate = &end
	}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.manager.Assessment().Publish(ctx, teacher, a.ID); !IsPolicyViolation(err, ReasonInvalidWindow) {
		t.Fatalf("got %v, want invalid_window", err)
	}
}

func TestDeleteCascadesToAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.publishedExam(t, nil)

	if _, err := env.manager.Attempt().Start(ctx, student, a.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.manager.Assessment().Delete(ctx, outsider, a.ID); err == nil {
		t.Fatal("non-owner deleted the assessment")
	}
	if err := env.manager.Assessment().Delete(ctx, teacher, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var attempts, questions int64
	env.db.Model(&models.Attempt{}).Where("assessment_id = ?", a.ID).Count(&attempts)
	env.db.Model(&models.Question{}).Where("assessment_id = ?", a.ID).Count(&questions)
	if attempts != 0 || questions != 0 {
		t.Errorf("left %d attempts and %d questions", attempts, questions)
	}
	if _, err := env.manager.Assessment().GetFull(ctx, teacher, a.ID); !errors.Is(err, ErrAssessmentNotFound) {
		t.Errorf("got %v, want ErrAssessmentNotFound", err)
	}
}

func TestStatisticsAndExport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.publishedExam(t, nil)

	if err := env.db.Create(&models.Enrollment{CourseID: courseID, StudentID: stranger.ID, Status: models.EnrollmentActive}).Error; err != nil {
		t.Fatalf("enroll: %v", err)
	}

	q1, q2 := a.Questions[0].ID, a.Questions[1].ID
	submissions := []struct {
		actor Actor
		req   *SubmitAttemptRequest
	}{
		{student, answers(q1, "q1-a", q2, "q2-b")},
		{stranger, answers(q1, "q1-b")},
	}
	var last *AttemptResult
	for _, s := range submissions {
		started, err := env.manager.Attempt().Start(ctx, s.actor, a.ID)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		last, err = env.manager.Attempt().Submit(ctx, s.actor, started.AttemptID, s.req)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if *last.Percentile != 0 {
		t.Errorf("lowest score percentile = %d, want 0", *last.Percentile)
	}

	stats, err := env.manager.Report().GetStatistics(ctx, teacher, a.ID)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.SubmittedAttempts != 2 || stats.AverageScore != 1 || stats.HighestScore != 2 || stats.PassRate != 50 {
		t.Errorf("stats = %+v", stats)
	}

	if _, err := env.manager.Report().GetStatistics(ctx, student, a.ID); err == nil {
		t.Error("student read statistics")
	}

	export, err := env.manager.Report().ExportResults(ctx, teacher, a.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(export.Content) == 0 || export.FileName == "" {
		t.Error("empty export")
	}
}

func TestQuestionBankImport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	banks := env.manager.QuestionBank()

	bank, err := banks.Create(ctx, teacher, &QuestionBankRequest{Name: "Arithmetic"})
	if err != nil {
		t.Fatalf("create bank: %v", err)
	}
	added, err := banks.AddQuestions(ctx, teacher, bank.ID, &BankQuestionsRequest{Questions: twoQuestionRequests()})
	if err != nil {
		t.Fatalf("add questions: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("added %d, want 2", len(added))
	}

	if _, err := banks.Get(ctx, outsider, bank.ID); err == nil {
		t.Error("private bank readable by another instructor")
	}

	a, err := env.manager.Assessment().Create(ctx, teacher, examRequest(nil))
	if err != nil {
		t.Fatalf("create assessment: %v", err)
	}
	imported, err := banks.ImportIntoAssessment(ctx, teacher, bank.ID, a.ID, &ImportQuestionsRequest{QuestionIDs: []uint{added[1].ID}})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported.Questions) != 3 || imported.TotalMarks != 3 {
		t.Errorf("questions=%d total=%d after import", len(imported.Questions), imported.TotalMarks)
	}
	if imported.Questions[2].Stem != "3 + 3" || imported.Questions[2].Position != 2 {
		t.Errorf("imported question = %+v", imported.Questions[2])
	}

	if _, err := banks.Generate(ctx, teacher, bank.ID, &GenerateQuestionsRequest{Topic: "fractions", Count: 2}); !errors.Is(err, ErrGeneratorUnavailable) {
		t.Errorf("got %v, want ErrGeneratorUnavailable", err)
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStartRereadsDefinition(t *testing.T) {
	client := newTestRedis(t)
	env := newTestEnvWithRedis(t, client)
	ctx := context.Background()

	published := env.publishedExam(t, nil)
	if _, err := env.manager.Assessment().Unpublish(ctx, teacher, published.ID); err != nil {
		t.Fatalf("unpublish: %v", err)
	}

	// A read that raced the unpublish left the published row in the cache
	definitions := cache.NewCacheHelper(client, cache.AssessmentCacheConfig.Prefix)
	if err := definitions.Set(ctx, cache.DefinitionKey(published.ID), published, time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	_, err := env.manager.Attempt().Start(ctx, student, published.ID)
	if !IsPolicyViolation(err, ReasonNotPublished) {
		t.Fatalf("got %v, want not_published", err)
	}

	var count int64
	env.db.Model(&models.Attempt{}).Where("assessment_id = ?", published.ID).Count(&count)
	if count != 0 {
		t.Errorf("%d attempts stored for an unpublished assessment", count)
	}
}

func TestEnrollmentVisibleImmediately(t *testing.T) {
	env := newTestEnvWithRedis(t, newTestRedis(t))
	ctx := context.Background()
	a := env.publishedExam(t, nil)

	_, err := env.manager.Attempt().Start(ctx, stranger, a.ID)
	if !IsPolicyViolation(err, ReasonNotEnrolled) {
		t.Fatalf("got %v, want not_enrolled", err)
	}

	enrollment := &models.Enrollment{CourseID: courseID, StudentID: stranger.ID, Status: models.EnrollmentActive}
	if err := env.db.Create(enrollment).Error; err != nil {
		t.Fatalf("enroll: %v", err)
	}
	// Give a background cache write from the first start time to land
	time.Sleep(50 * time.Millisecond)

	if _, err := env.manager.Attempt().Start(ctx, stranger, a.ID); err != nil {
		t.Fatalf("start after enrolling: %v", err)
	}
}
