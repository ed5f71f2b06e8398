package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/medjeex/exam-engine/internal/models"
	"github.com/medjeex/exam-engine/internal/repositories"
	"github.com/medjeex/exam-engine/internal/timing"
	"github.com/medjeex/exam-engine/internal/utils"
)

type SeriesPapersRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	TestSeriesID string `json:"test_series_id" validate:"required"`
}

type SeriesPapersResponse struct {
	TestSeriesID string                   `json:"test_series_id"`
	IsPurchased  bool                     `json:"is_purchased"`
	Papers       []models.TaggedTestPaper `json:"papers"`
}

// PaperService serves the candidate-facing catalog views of a test
// series: the tagged paper list and the blank question snapshot.
type PaperService interface {
	ListSeriesPapers(ctx context.Context, req *SeriesPapersRequest) (*SeriesPapersResponse, error)
	GetBlankSnapshot(ctx context.Context, testPaperID string) ([]models.SubjectGroup, error)
}

type paperService struct {
	repo      repositories.Repository
	snapshots SnapshotService
	logger    *slog.Logger
	validator *utils.Validator
	now       func() time.Time
}

func NewPaperService(repo repositories.Repository, snapshots SnapshotService, logger *slog.Logger, validator *utils.Validator) PaperService {
	return &paperService{
		repo:      repo,
		snapshots: snapshots,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
}

func (s *paperService) ListSeriesPapers(ctx context.Context, req *SeriesPapersRequest) (*SeriesPapersResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	papers, err := s.repo.TestPaper().GetBySeries(ctx, nil, req.TestSeriesID)
	if err != nil {
		return nil, NewStorageError("load series papers", err)
	}
	if len(papers) == 0 {
		return nil, ErrTestSeriesNotFound
	}

	purchased, err := s.repo.Entitlement().IsPurchased(ctx, nil, req.UserID, req.TestSeriesID)
	if err != nil {
		return nil, NewStorageError("check purchase", err)
	}

	attempted, err := s.repo.Attempt().FinalizedPaperIDs(ctx, nil, req.UserID, req.TestSeriesID)
	if err != nil {
		return nil, NewStorageError("load attempted papers", err)
	}
	attemptedSet := make(map[string]bool, len(attempted))
	for _, id := range attempted {
		attemptedSet[id] = true
	}

	now := s.now()
	tagged := make([]models.TaggedTestPaper, 0, len(papers))
	for _, paper := range papers {
		tagged = append(tagged, models.TaggedTestPaper{
			TestPaper:  *paper,
			StatusTags: statusTags(paper, now, attemptedSet[paper.TestPaperID]),
		})
	}

	return &SeriesPapersResponse{
		TestSeriesID: req.TestSeriesID,
		IsPurchased:  purchased,
		Papers:       tagged,
	}, nil
}

func (s *paperService) GetBlankSnapshot(ctx context.Context, testPaperID string) ([]models.SubjectGroup, error) {
	if testPaperID == "" {
		return nil, ErrValidationFailed
	}

	if _, err := s.repo.TestPaper().GetByID(ctx, nil, testPaperID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestPaperNotFound
		}
		return nil, NewStorageError("load test paper", err)
	}

	return s.snapshots.BlankSnapshot(ctx, testPaperID)
}

// statusTags derives the candidate-facing tags of one paper. Untimed
// mock papers are never live, upcoming or missed.
func statusTags(paper *models.TestPaper, now time.Time, attempted bool) []string {
	tags := []string{models.TagAll}

	if attempted {
		tags = append(tags, models.TagAttempted)
	} else {
		tags = append(tags, models.TagNotAttempted)
	}

	if !paper.IsTimed() {
		return tags
	}

	deadline, _ := timing.Deadline(paper.TestEndTime)
	switch {
	case paper.TestStartTime != nil && now.Before(*paper.TestStartTime):
		tags = append(tags, models.TagUpcoming)
	case !now.After(deadline):
		tags = append(tags, models.TagLive)
	case !attempted:
		tags = append(tags, models.TagMissed)
	}
	return tags
}
