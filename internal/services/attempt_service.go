package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/medjeex/exam-engine/internal/events"
	"github.com/medjeex/exam-engine/internal/models"
	"github.com/medjeex/exam-engine/internal/repositories"
	"github.com/medjeex/exam-engine/internal/timing"
	"github.com/medjeex/exam-engine/internal/utils"
)

// DeadlineScheduler arms the one-shot auto-submit action for an open
// session. Arming is fire-and-forget; a timer outliving its session is
// harmless because the fire path re-checks state before acting.
type DeadlineScheduler interface {
	Arm(key models.AttemptKey, fireAt time.Time)
}

// AttemptRef identifies the session an operation targets.
type AttemptRef struct {
	UserID       string `json:"user_id" validate:"required"`
	TestSeriesID string `json:"test_series_id" validate:"required"`
	TestPaperID  string `json:"test_paper_id" validate:"required"`
}

func (r AttemptRef) Key() models.AttemptKey {
	return models.AttemptKey{
		UserID:       r.UserID,
		TestSeriesID: r.TestSeriesID,
		TestPaperID:  r.TestPaperID,
	}
}

type StartAttemptRequest struct {
	AttemptRef
	// RequestedStartTime is the instant the candidate pressed start.
	// Nil means "now". It is validated against the paper's start window
	// and recorded as the session's StartedAt.
	RequestedStartTime *time.Time `json:"requested_start_time"`
}

type SaveAnswerRequest struct {
	AttemptRef
	QuestionID     string `json:"question_id" validate:"required"`
	SelectedAnswer string `json:"selected_answer" validate:"required"`
}

type ClearAnswerRequest struct {
	AttemptRef
	QuestionID string `json:"question_id" validate:"required"`
}

type MarkForReviewRequest struct {
	AttemptRef
	QuestionID      string `json:"question_id" validate:"required"`
	MarkedForReview bool   `json:"marked_for_review"`
}

type SaveAndMarkRequest struct {
	AttemptRef
	QuestionID      string `json:"question_id" validate:"required"`
	SelectedAnswer  string `json:"selected_answer" validate:"required"`
	MarkedForReview bool   `json:"marked_for_review"`
}

type StartAttemptResponse struct {
	AttemptID uint       `json:"attempt_id"`
	StartedAt time.Time  `json:"started_at"`
	Deadline  *time.Time `json:"deadline,omitempty"`
}

type SubmitAttemptResponse struct {
	AttemptID    uint      `json:"attempt_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
	AttemptCount int       `json:"attempt_count"`
	EndReason    string    `json:"end_reason"`
}

type AttemptViewResponse struct {
	AttemptID   uint                  `json:"attempt_id"`
	StartedAt   time.Time             `json:"started_at"`
	Deadline    *time.Time            `json:"deadline,omitempty"`
	IsSubmitted bool                  `json:"is_submitted"`
	Subjects    []models.SubjectGroup `json:"subjects"`
}

// AttemptService drives the attempt session lifecycle:
// Start → per-question mutation → Submit (candidate or deadline).
type AttemptService interface {
	Start(ctx context.Context, req *StartAttemptRequest) (*StartAttemptResponse, error)
	SaveAnswer(ctx context.Context, req *SaveAnswerRequest) error
	ClearAnswer(ctx context.Context, req *ClearAnswerRequest) error
	MarkForReview(ctx context.Context, req *MarkForReviewRequest) error
	SaveAndMark(ctx context.Context, req *SaveAndMarkRequest) error
	Submit(ctx context.Context, key models.AttemptKey) (*SubmitAttemptResponse, error)
	GetAttemptView(ctx context.Context, key models.AttemptKey) (*AttemptViewResponse, error)

	// ForceSubmit is the deadline scheduler's fire path: finalize the
	// session for key if it is still open, no-op otherwise.
	ForceSubmit(ctx context.Context, key models.AttemptKey) error

	// RearmOpenSessions re-arms auto-submit timers for every open
	// session after a restart. Sessions already past their deadline are
	// finalized on the spot.
	RearmOpenSessions(ctx context.Context) error
}

type attemptService struct {
	repo      repositories.Repository
	snapshots SnapshotService
	scheduler DeadlineScheduler
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *utils.Validator
	now       func() time.Time
}

func NewAttemptService(
	repo repositories.Repository,
	snapshots SnapshotService,
	scheduler DeadlineScheduler,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *utils.Validator,
) AttemptService {
	return &attemptService{
		repo:      repo,
		snapshots: snapshots,
		scheduler: scheduler,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
}

// ===== START =====

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest) (*StartAttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	key := req.Key()
	startedAt := s.now()
	if req.RequestedStartTime != nil {
		startedAt = *req.RequestedStartTime
	}

	s.logger.Info("Starting attempt",
		"user_id", key.UserID,
		"test_paper_id", key.TestPaperID)

	paper, err := s.repo.TestPaper().GetByID(ctx, nil, key.TestPaperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestPaperNotFound
		}
		return nil, NewStorageError("load test paper", err)
	}
	if paper.TestSeriesID != key.TestSeriesID {
		return nil, ErrTestPaperNotFound
	}

	purchased, err := s.repo.Entitlement().IsPurchased(ctx, nil, key.UserID, key.TestSeriesID)
	if err != nil {
		return nil, NewStorageError("check purchase", err)
	}
	if !purchased {
		return nil, ErrNotPurchased
	}

	if !timing.CanStart(startedAt, paper.TestStartTime) {
		return nil, ErrWindowClosed
	}

	if paper.TotalAttempts > 0 {
		finalized, err := s.repo.Attempt().CountFinalized(ctx, nil, key)
		if err != nil {
			return nil, NewStorageError("count attempts", err)
		}
		if finalized >= paper.TotalAttempts {
			return nil, ErrAttemptLimitReached
		}
	}

	seed, err := s.snapshots.SeedQuestions(ctx, key.TestPaperID)
	if err != nil {
		return nil, err
	}

	session := &models.AttemptSession{
		UserID:       key.UserID,
		TestSeriesID: key.TestSeriesID,
		TestPaperID:  key.TestPaperID,
		StartedAt:    startedAt,
		Questions:    seed,
	}

	if err := s.repo.Attempt().Create(ctx, nil, session); err != nil {
		if errors.Is(err, repositories.ErrDuplicateOpenAttempt) {
			return nil, ErrAttemptAlreadyOpen
		}
		return nil, NewStorageError("create attempt", err)
	}

	resp := &StartAttemptResponse{
		AttemptID: session.ID,
		StartedAt: session.StartedAt,
	}

	if fireAt, ok := timing.Deadline(paper.TestEndTime); ok {
		s.scheduler.Arm(key, fireAt)
		resp.Deadline = &fireAt
	}

	s.publishStarted(ctx, session, resp.Deadline)

	s.logger.Info("Attempt started",
		"attempt_id", session.ID,
		"user_id", key.UserID,
		"test_paper_id", key.TestPaperID)

	return resp, nil
}

// ===== PER-QUESTION MUTATIONS =====

func (s *attemptService) SaveAnswer(ctx context.Context, req *SaveAnswerRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	saved := true
	return s.mutateQuestion(ctx, req.Key(), req.QuestionID, repositories.QuestionStateUpdate{
		SelectedAnswer: &req.SelectedAnswer,
		IsSaved:        &saved,
	})
}

func (s *attemptService) ClearAnswer(ctx context.Context, req *ClearAnswerRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	blank := ""
	saved := false
	return s.mutateQuestion(ctx, req.Key(), req.QuestionID, repositories.QuestionStateUpdate{
		SelectedAnswer: &blank,
		IsSaved:        &saved,
	})
}

func (s *attemptService) MarkForReview(ctx context.Context, req *MarkForReviewRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	return s.mutateQuestion(ctx, req.Key(), req.QuestionID, repositories.QuestionStateUpdate{
		MarkedForReview: &req.MarkedForReview,
	})
}

func (s *attemptService) SaveAndMark(ctx context.Context, req *SaveAndMarkRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	saved := true
	return s.mutateQuestion(ctx, req.Key(), req.QuestionID, repositories.QuestionStateUpdate{
		SelectedAnswer:  &req.SelectedAnswer,
		MarkedForReview: &req.MarkedForReview,
		IsSaved:         &saved,
	})
}

// mutateQuestion applies one conditional single-entry update and maps
// the storage outcome onto the service error taxonomy.
func (s *attemptService) mutateQuestion(ctx context.Context, key models.AttemptKey, questionID string, update repositories.QuestionStateUpdate) error {
	outcome, err := s.repo.Attempt().UpdateQuestionState(ctx, nil, key, questionID, update)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return NewStorageError("update question state", err)
	}

	switch outcome {
	case repositories.MutationApplied:
		return nil
	case repositories.MutationNoSuchEntry:
		return ErrQuestionNotInAttempt
	case repositories.MutationSessionFinalized:
		return ErrAttemptSubmitted
	default:
		return ErrInternalError
	}
}

// ===== SUBMIT =====

func (s *attemptService) Submit(ctx context.Context, key models.AttemptKey) (*SubmitAttemptResponse, error) {
	if err := s.validator.Validate(&key); err != nil {
		return nil, err
	}
	return s.finalize(ctx, key, models.EndReasonCandidate)
}

func (s *attemptService) ForceSubmit(ctx context.Context, key models.AttemptKey) error {
	_, err := s.repo.Attempt().GetOpen(ctx, nil, key)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			// Candidate beat the deadline; nothing to do.
			return nil
		}
		return NewStorageError("load attempt", err)
	}

	s.logger.Info("Deadline reached, force-submitting attempt",
		"user_id", key.UserID,
		"test_paper_id", key.TestPaperID)

	_, err = s.finalize(ctx, key, models.EndReasonDeadline)
	if errors.Is(err, ErrAttemptNotFound) {
		return nil
	}
	return err
}

// finalize performs the terminal transition. Concurrent candidate and
// deadline submits converge here: the compare-and-set in the repository
// lets exactly one caller transition the session; the loser observes the
// already-finalized record and reports success without further mutation.
func (s *attemptService) finalize(ctx context.Context, key models.AttemptKey, endReason string) (*SubmitAttemptResponse, error) {
	submittedAt := s.now()

	session, transitioned, err := s.repo.Attempt().Finalize(ctx, nil, key, submittedAt, endReason)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, NewStorageError("finalize attempt", err)
	}

	if transitioned {
		s.publishSubmitted(ctx, session)
		s.logger.Info("Attempt finalized",
			"attempt_id", session.ID,
			"end_reason", endReason,
			"attempt_count", session.AttemptCount)
	}

	resp := &SubmitAttemptResponse{
		AttemptID:    session.ID,
		AttemptCount: session.AttemptCount,
	}
	if session.SubmittedAt != nil {
		resp.SubmittedAt = *session.SubmittedAt
	}
	if session.EndReason != nil {
		resp.EndReason = *session.EndReason
	}
	return resp, nil
}

// ===== VIEWS =====

func (s *attemptService) GetAttemptView(ctx context.Context, key models.AttemptKey) (*AttemptViewResponse, error) {
	if err := s.validator.Validate(&key); err != nil {
		return nil, err
	}

	session, err := s.repo.Attempt().GetOpenWithQuestions(ctx, nil, key)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, NewStorageError("load attempt", err)
	}

	subjects, err := s.snapshots.AttemptView(ctx, session)
	if err != nil {
		return nil, err
	}

	resp := &AttemptViewResponse{
		AttemptID:   session.ID,
		StartedAt:   session.StartedAt,
		IsSubmitted: session.IsSubmitted,
		Subjects:    subjects,
	}

	paper, err := s.repo.TestPaper().GetByID(ctx, nil, key.TestPaperID)
	if err == nil {
		if fireAt, ok := timing.Deadline(paper.TestEndTime); ok {
			resp.Deadline = &fireAt
		}
	}
	return resp, nil
}

// ===== STARTUP RECOVERY =====

func (s *attemptService) RearmOpenSessions(ctx context.Context) error {
	sessions, err := s.repo.Attempt().OpenSessions(ctx, nil)
	if err != nil {
		return NewStorageError("list open attempts", err)
	}

	now := s.now()
	rearmed := 0
	for _, session := range sessions {
		paper, err := s.repo.TestPaper().GetByID(ctx, nil, session.TestPaperID)
		if err != nil {
			s.logger.Error("Cannot resolve paper for open attempt",
				"attempt_id", session.ID,
				"test_paper_id", session.TestPaperID,
				"error", err)
			continue
		}

		fireAt, ok := timing.Deadline(paper.TestEndTime)
		if !ok {
			continue // untimed paper, never auto-submitted
		}

		if !fireAt.After(now) {
			if err := s.ForceSubmit(ctx, session.Key()); err != nil {
				s.logger.Error("Failed to finalize overdue attempt",
					"attempt_id", session.ID, "error", err)
			}
			continue
		}

		s.scheduler.Arm(session.Key(), fireAt)
		rearmed++
	}

	s.logger.Info("Re-armed auto-submit timers",
		"open_sessions", len(sessions),
		"rearmed", rearmed)
	return nil
}

// ===== EVENTS =====

func (s *attemptService) publishStarted(ctx context.Context, session *models.AttemptSession, deadline *time.Time) {
	if s.publisher == nil {
		return
	}
	event := events.NewAttemptStartedEvent(
		uintToID(session.ID), session.UserID, session.TestSeriesID, session.TestPaperID,
		session.StartedAt, deadline)
	if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish attempt.started event",
			"attempt_id", session.ID, "error", err)
	}
}

func (s *attemptService) publishSubmitted(ctx context.Context, session *models.AttemptSession) {
	if s.publisher == nil {
		return
	}
	submittedAt := s.now()
	if session.SubmittedAt != nil {
		submittedAt = *session.SubmittedAt
	}
	endReason := ""
	if session.EndReason != nil {
		endReason = *session.EndReason
	}
	event := events.NewAttemptSubmittedEvent(
		uintToID(session.ID), session.UserID, session.TestSeriesID, session.TestPaperID,
		submittedAt, endReason)
	if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish attempt.submitted event",
			"attempt_id", session.ID, "error", err)
	}
}
