package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/medjeex/exam-engine/internal/cache"
	"github.com/medjeex/exam-engine/internal/models"
	"github.com/medjeex/exam-engine/internal/repositories"
)

const snapshotCacheTTL = 10 * time.Minute

// SnapshotService builds the subject-grouped question views of a test
// paper: the blank snapshot shown before an attempt and the
// attempt-context view with the session's per-question state overlaid.
type SnapshotService interface {
	// BlankSnapshot returns the paper's questions grouped by subject
	// with blank answer state. Correct answers are never included.
	BlankSnapshot(ctx context.Context, testPaperID string) ([]models.SubjectGroup, error)

	// AttemptView overlays the session's selected answers, review marks
	// and saved flags onto the paper's questions. A content question
	// with no matching session entry is an integrity fault and is
	// reported, never silently defaulted.
	AttemptView(ctx context.Context, session *models.AttemptSession) ([]models.SubjectGroup, error)

	// SeedQuestions produces the blank per-question entries a new
	// session is created with, in snapshot order.
	SeedQuestions(ctx context.Context, testPaperID string) ([]models.AttemptQuestion, error)
}

type snapshotService struct {
	repo   repositories.Repository
	cache  cache.CacheService
	logger *slog.Logger
}

func NewSnapshotService(repo repositories.Repository, cacheService cache.CacheService, logger *slog.Logger) SnapshotService {
	return &snapshotService{
		repo:   repo,
		cache:  cacheService,
		logger: logger,
	}
}

func snapshotCacheKey(testPaperID string) string {
	return "exam-engine:questions:" + testPaperID
}

// paperQuestions loads the paper's question content, store order
// preserved, through the cache.
func (s *snapshotService) paperQuestions(ctx context.Context, testPaperID string) ([]*models.Question, error) {
	key := snapshotCacheKey(testPaperID)

	var cached []*models.Question
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("question cache read failed, falling back to store",
				"test_paper_id", testPaperID, "error", err)
		}
	}

	questions, err := s.repo.Question().GetByPaper(ctx, nil, testPaperID)
	if err != nil {
		return nil, NewStorageError("load questions", err)
	}

	if s.cache != nil && len(questions) > 0 {
		if err := s.cache.Set(ctx, key, questions, snapshotCacheTTL); err != nil {
			s.logger.Warn("question cache write failed",
				"test_paper_id", testPaperID, "error", err)
		}
	}
	return questions, nil
}

func (s *snapshotService) BlankSnapshot(ctx context.Context, testPaperID string) ([]models.SubjectGroup, error) {
	questions, err := s.paperQuestions(ctx, testPaperID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return groupBySubject(questions, nil)
}

func (s *snapshotService) AttemptView(ctx context.Context, session *models.AttemptSession) ([]models.SubjectGroup, error) {
	questions, err := s.paperQuestions(ctx, session.TestPaperID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	state := make(map[string]*models.AttemptQuestion, len(session.Questions))
	for i := range session.Questions {
		state[session.Questions[i].QuestionID] = &session.Questions[i]
	}
	return groupBySubject(questions, state)
}

func (s *snapshotService) SeedQuestions(ctx context.Context, testPaperID string) ([]models.AttemptQuestion, error) {
	questions, err := s.paperQuestions(ctx, testPaperID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	seed := make([]models.AttemptQuestion, len(questions))
	for i, q := range questions {
		seed[i] = models.AttemptQuestion{
			QuestionID:      q.QuestionID,
			Subject:         q.Subject,
			Position:        i,
			SelectedAnswer:  "",
			MarkedForReview: false,
			IsSaved:         false,
		}
	}
	return seed, nil
}

// groupBySubject groups questions by subject in order of first
// appearance, preserving store order within each group. When state is
// non-nil, every question must have a matching session entry.
func groupBySubject(questions []*models.Question, state map[string]*models.AttemptQuestion) ([]models.SubjectGroup, error) {
	var groups []models.SubjectGroup
	index := make(map[string]int)

	for _, q := range questions {
		view := models.QuestionView{
			QuestionID:      q.QuestionID,
			QuestionType:    q.QuestionType,
			QuestionFormat:  q.QuestionFormat,
			Question:        q.Question,
			Options:         q.Options,
			Marks:           q.Marks,
			NegativeMarking: q.NegativeMarking,
		}

		if state != nil {
			entry, ok := state[q.QuestionID]
			if !ok {
				return nil, fmt.Errorf("%w: question %s", ErrSnapshotIntegrity, q.QuestionID)
			}
			view.SelectedAnswer = entry.SelectedAnswer
			view.MarkedForReview = entry.MarkedForReview
			view.IsSaved = entry.IsSaved
		}

		i, ok := index[q.Subject]
		if !ok {
			i = len(groups)
			index[q.Subject] = i
			groups = append(groups, models.SubjectGroup{Subject: q.Subject})
		}
		groups[i].Questions = append(groups[i].Questions, view)
	}
	return groups, nil
}
