package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/medjeex/exam-engine/internal/events"
	"github.com/medjeex/exam-engine/internal/models"
	"github.com/medjeex/exam-engine/internal/repositories"
	"github.com/medjeex/exam-engine/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ===== IN-MEMORY FAKES =====

type fakeAttemptRepo struct {
	mu       sync.Mutex
	nextID   uint
	sessions []*models.AttemptSession
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{nextID: 1}
}

func (f *fakeAttemptRepo) open(key models.AttemptKey) *models.AttemptSession {
	for _, s := range f.sessions {
		if !s.IsSubmitted && s.Key() == key {
			return s
		}
	}
	return nil
}

func (f *fakeAttemptRepo) any(key models.AttemptKey) *models.AttemptSession {
	for i := len(f.sessions) - 1; i >= 0; i-- {
		if f.sessions[i].Key() == key {
			return f.sessions[i]
		}
	}
	return nil
}

func (f *fakeAttemptRepo) Create(ctx context.Context, tx *gorm.DB, session *models.AttemptSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open(session.Key()) != nil {
		return repositories.ErrDuplicateOpenAttempt
	}
	session.ID = f.nextID
	f.nextID++
	f.sessions = append(f.sessions, session)
	return nil
}

func (f *fakeAttemptRepo) GetOpen(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (*models.AttemptSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.open(key); s != nil {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAttemptRepo) GetOpenWithQuestions(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (*models.AttemptSession, error) {
	return f.GetOpen(ctx, tx, key)
}

func (f *fakeAttemptRepo) HasOpen(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open(key) != nil, nil
}

func (f *fakeAttemptRepo) UpdateQuestionState(ctx context.Context, tx *gorm.DB, key models.AttemptKey, questionID string, update repositories.QuestionStateUpdate) (repositories.MutationOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session := f.open(key)
	if session == nil {
		if f.any(key) != nil {
			return repositories.MutationSessionFinalized, nil
		}
		return 0, gorm.ErrRecordNotFound
	}

	for i := range session.Questions {
		entry := &session.Questions[i]
		if entry.QuestionID != questionID {
			continue
		}
		if update.SelectedAnswer != nil {
			entry.SelectedAnswer = *update.SelectedAnswer
		}
		if update.MarkedForReview != nil {
			entry.MarkedForReview = *update.MarkedForReview
		}
		if update.IsSaved != nil {
			entry.IsSaved = *update.IsSaved
		}
		return repositories.MutationApplied, nil
	}
	return repositories.MutationNoSuchEntry, nil
}

func (f *fakeAttemptRepo) Finalize(ctx context.Context, tx *gorm.DB, key models.AttemptKey, submittedAt time.Time, endReason string) (*models.AttemptSession, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if session := f.open(key); session != nil {
		session.IsSubmitted = true
		session.SubmittedAt = &submittedAt
		reason := endReason
		session.EndReason = &reason
		session.AttemptCount++
		return session, true, nil
	}
	if session := f.any(key); session != nil {
		return session, false, nil
	}
	return nil, false, gorm.ErrRecordNotFound
}

func (f *fakeAttemptRepo) CountFinalized(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, s := range f.sessions {
		if s.IsSubmitted && s.Key() == key {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttemptRepo) FinalizedPaperIDs(ctx context.Context, tx *gorm.DB, userID, testSeriesID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, s := range f.sessions {
		if s.IsSubmitted && s.UserID == userID && s.TestSeriesID == testSeriesID && !seen[s.TestPaperID] {
			seen[s.TestPaperID] = true
			ids = append(ids, s.TestPaperID)
		}
	}
	return ids, nil
}

func (f *fakeAttemptRepo) OpenSessions(ctx context.Context, tx *gorm.DB) ([]*models.AttemptSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var open []*models.AttemptSession
	for _, s := range f.sessions {
		if !s.IsSubmitted {
			open = append(open, s)
		}
	}
	return open, nil
}

type fakeQuestionRepo struct {
	byPaper map[string][]*models.Question
}

func (f *fakeQuestionRepo) GetByPaper(ctx context.Context, tx *gorm.DB, testPaperID string) ([]*models.Question, error) {
	return f.byPaper[testPaperID], nil
}

func (f *fakeQuestionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if f.byPaper == nil {
		f.byPaper = map[string][]*models.Question{}
	}
	for _, q := range questions {
		f.byPaper[q.TestPaperID] = append(f.byPaper[q.TestPaperID], q)
	}
	return nil
}

type fakeTestPaperRepo struct {
	papers map[string]*models.TestPaper
}

func (f *fakeTestPaperRepo) GetByID(ctx context.Context, tx *gorm.DB, testPaperID string) (*models.TestPaper, error) {
	if p, ok := f.papers[testPaperID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTestPaperRepo) GetBySeries(ctx context.Context, tx *gorm.DB, testSeriesID string) ([]*models.TestPaper, error) {
	var papers []*models.TestPaper
	for _, p := range f.papers {
		if p.TestSeriesID == testSeriesID {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

type fakeEntitlementRepo struct {
	purchased map[string]bool // userID + "/" + seriesID
}

func (f *fakeEntitlementRepo) IsPurchased(ctx context.Context, tx *gorm.DB, userID, testSeriesID string) (bool, error) {
	return f.purchased[userID+"/"+testSeriesID], nil
}

type fakeRepository struct {
	attempt     *fakeAttemptRepo
	question    *fakeQuestionRepo
	testPaper   *fakeTestPaperRepo
	entitlement *fakeEntitlementRepo
}

func (f *fakeRepository) Attempt() repositories.AttemptRepository         { return f.attempt }
func (f *fakeRepository) Question() repositories.QuestionRepository       { return f.question }
func (f *fakeRepository) TestPaper() repositories.TestPaperRepository     { return f.testPaper }
func (f *fakeRepository) Entitlement() repositories.EntitlementRepository { return f.entitlement }
func (f *fakeRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
func (f *fakeRepository) Ping(ctx context.Context) error { return nil }
func (f *fakeRepository) Close() error                   { return nil }

type recordingScheduler struct {
	mu    sync.Mutex
	armed []time.Time
}

func (r *recordingScheduler) Arm(key models.AttemptKey, fireAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = append(r.armed, fireAt)
}

func (r *recordingScheduler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.armed)
}

// ===== FIXTURE =====

var (
	testStart = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	testEnd   = testStart.Add(3 * time.Hour)
)

type attemptFixture struct {
	repo      *fakeRepository
	scheduler *recordingScheduler
	publisher *events.MockEventPublisher
	service   AttemptService
}

func newAttemptFixture(t *testing.T, paper *models.TestPaper) *attemptFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := &fakeRepository{
		attempt:     newFakeAttemptRepo(),
		question:    &fakeQuestionRepo{byPaper: map[string][]*models.Question{}},
		testPaper:   &fakeTestPaperRepo{papers: map[string]*models.TestPaper{}},
		entitlement: &fakeEntitlementRepo{purchased: map[string]bool{"u1/s1": true}},
	}

	if paper != nil {
		repo.testPaper.papers[paper.TestPaperID] = paper
		repo.question.byPaper[paper.TestPaperID] = []*models.Question{
			{QuestionID: "q1", TestPaperID: paper.TestPaperID, Subject: models.SubjectPhysics, Position: 0},
			{QuestionID: "q2", TestPaperID: paper.TestPaperID, Subject: models.SubjectPhysics, Position: 1},
			{QuestionID: "q3", TestPaperID: paper.TestPaperID, Subject: models.SubjectChemistry, Position: 2},
		}
	}

	scheduler := &recordingScheduler{}
	publisher := events.NewMockEventPublisher(logger)
	snapshots := NewSnapshotService(repo, nil, logger)
	service := NewAttemptService(repo, snapshots, scheduler, publisher, logger, utils.NewValidator())
	service.(*attemptService).now = func() time.Time { return testStart.Add(2 * time.Hour) }

	return &attemptFixture{
		repo:      repo,
		scheduler: scheduler,
		publisher: publisher,
		service:   service,
	}
}

func timedPaper() *models.TestPaper {
	start, end := testStart, testEnd
	return &models.TestPaper{
		TestPaperID:   "p1",
		TestSeriesID:  "s1",
		TestName:      "Mock JEE Paper 1",
		TotalAttempts: 1,
		TestStartTime: &start,
		TestEndTime:   &end,
	}
}

func untimedPaper() *models.TestPaper {
	return &models.TestPaper{
		TestPaperID:   "p1",
		TestSeriesID:  "s1",
		TestName:      "Practice Paper",
		TotalAttempts: 3,
	}
}

func ref() AttemptRef {
	return AttemptRef{UserID: "u1", TestSeriesID: "s1", TestPaperID: "p1"}
}

func startAt(at time.Time) *StartAttemptRequest {
	return &StartAttemptRequest{AttemptRef: ref(), RequestedStartTime: &at}
}

// ===== START =====

func TestAttemptService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("opens session and arms deadline", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())

		resp, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)
		assert.Equal(t, testStart, resp.StartedAt)
		require.NotNil(t, resp.Deadline)
		assert.Equal(t, testEnd.Add(15*time.Minute), *resp.Deadline)
		assert.Equal(t, 1, fx.scheduler.count())

		session := fx.repo.attempt.sessions[0]
		assert.False(t, session.IsSubmitted)
		require.Len(t, session.Questions, 3)
		for _, q := range session.Questions {
			assert.Empty(t, q.SelectedAnswer)
			assert.False(t, q.MarkedForReview)
			assert.False(t, q.IsSaved)
		}

		published := fx.publisher.GetPublishedEvents()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventAttemptStarted, published[0].Type)
	})

	t.Run("allows starting within the grace window", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())

		_, err := fx.service.Start(ctx, startAt(testStart.Add(14*time.Minute)))
		assert.NoError(t, err)
	})

	t.Run("rejects starting past the grace window", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())

		_, err := fx.service.Start(ctx, startAt(testStart.Add(16*time.Minute)))
		assert.ErrorIs(t, err, ErrWindowClosed)
		assert.Equal(t, 0, fx.scheduler.count())
		assert.Empty(t, fx.publisher.GetPublishedEvents())
	})

	t.Run("untimed paper starts anytime without a deadline", func(t *testing.T) {
		fx := newAttemptFixture(t, untimedPaper())

		resp, err := fx.service.Start(ctx, startAt(testStart.Add(100*24*time.Hour)))
		require.NoError(t, err)
		assert.Nil(t, resp.Deadline)
		assert.Equal(t, 0, fx.scheduler.count())
	})

	t.Run("rejects a second open attempt for the same identity", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())

		_, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)

		_, err = fx.service.Start(ctx, startAt(testStart.Add(time.Minute)))
		assert.ErrorIs(t, err, ErrAttemptAlreadyOpen)
		assert.Len(t, fx.repo.attempt.sessions, 1)
	})

	t.Run("allows a new attempt after the prior one finalized", func(t *testing.T) {
		fx := newAttemptFixture(t, untimedPaper())

		_, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)
		_, err = fx.service.Submit(ctx, ref().Key())
		require.NoError(t, err)

		_, err = fx.service.Start(ctx, startAt(testStart.Add(time.Hour)))
		assert.NoError(t, err)
	})

	t.Run("rejects unpurchased series", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		fx.repo.entitlement.purchased = map[string]bool{}

		_, err := fx.service.Start(ctx, startAt(testStart))
		assert.ErrorIs(t, err, ErrNotPurchased)
	})

	t.Run("rejects unknown paper", func(t *testing.T) {
		fx := newAttemptFixture(t, nil)

		_, err := fx.service.Start(ctx, startAt(testStart))
		assert.ErrorIs(t, err, ErrTestPaperNotFound)
	})

	t.Run("rejects paper with no questions", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		fx.repo.question.byPaper["p1"] = nil

		_, err := fx.service.Start(ctx, startAt(testStart))
		assert.ErrorIs(t, err, ErrNoQuestions)
	})

	t.Run("enforces the attempt limit", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper()) // TotalAttempts: 1

		_, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)
		_, err = fx.service.Submit(ctx, ref().Key())
		require.NoError(t, err)

		_, err = fx.service.Start(ctx, startAt(testStart.Add(time.Minute)))
		assert.ErrorIs(t, err, ErrAttemptLimitReached)
	})

	t.Run("rejects missing identity fields", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())

		_, err := fx.service.Start(ctx, &StartAttemptRequest{
			AttemptRef: AttemptRef{UserID: "u1"},
		})
		assert.True(t, IsValidation(err))
	})
}

// ===== PER-QUESTION MUTATIONS =====

func TestAttemptService_QuestionMutations(t *testing.T) {
	ctx := context.Background()

	start := func(t *testing.T, fx *attemptFixture) {
		t.Helper()
		_, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)
	}
	entry := func(fx *attemptFixture, questionID string) *models.AttemptQuestion {
		session := fx.repo.attempt.sessions[0]
		for i := range session.Questions {
			if session.Questions[i].QuestionID == questionID {
				return &session.Questions[i]
			}
		}
		return nil
	}

	t.Run("save answer touches only the targeted entry", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		start(t, fx)

		err := fx.service.SaveAnswer(ctx, &SaveAnswerRequest{
			AttemptRef: ref(), QuestionID: "q2", SelectedAnswer: "1",
		})
		require.NoError(t, err)

		q2 := entry(fx, "q2")
		assert.Equal(t, "1", q2.SelectedAnswer)
		assert.True(t, q2.IsSaved)
		assert.False(t, q2.MarkedForReview)

		for _, other := range []string{"q1", "q3"} {
			q := entry(fx, other)
			assert.Empty(t, q.SelectedAnswer)
			assert.False(t, q.IsSaved)
		}
	})

	t.Run("clear answer resets answer and saved flag", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		start(t, fx)

		require.NoError(t, fx.service.SaveAnswer(ctx, &SaveAnswerRequest{
			AttemptRef: ref(), QuestionID: "q1", SelectedAnswer: "2",
		}))
		require.NoError(t, fx.service.MarkForReview(ctx, &MarkForReviewRequest{
			AttemptRef: ref(), QuestionID: "q1", MarkedForReview: true,
		}))
		require.NoError(t, fx.service.ClearAnswer(ctx, &ClearAnswerRequest{
			AttemptRef: ref(), QuestionID: "q1",
		}))

		q1 := entry(fx, "q1")
		assert.Empty(t, q1.SelectedAnswer)
		assert.False(t, q1.IsSaved)
		// Clearing the answer leaves the review mark alone.
		assert.True(t, q1.MarkedForReview)
	})

	t.Run("mark for review is independent of answer state", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		start(t, fx)

		require.NoError(t, fx.service.MarkForReview(ctx, &MarkForReviewRequest{
			AttemptRef: ref(), QuestionID: "q3", MarkedForReview: true,
		}))

		q3 := entry(fx, "q3")
		assert.True(t, q3.MarkedForReview)
		assert.Empty(t, q3.SelectedAnswer)
		assert.False(t, q3.IsSaved)
	})

	t.Run("save and mark applies both in one update", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		start(t, fx)

		require.NoError(t, fx.service.SaveAndMark(ctx, &SaveAndMarkRequest{
			AttemptRef: ref(), QuestionID: "q1", SelectedAnswer: "0,2", MarkedForReview: true,
		}))

		q1 := entry(fx, "q1")
		assert.Equal(t, "0,2", q1.SelectedAnswer)
		assert.True(t, q1.IsSaved)
		assert.True(t, q1.MarkedForReview)
	})

	t.Run("rejects question not in the attempt", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		start(t, fx)

		err := fx.service.SaveAnswer(ctx, &SaveAnswerRequest{
			AttemptRef: ref(), QuestionID: "q99", SelectedAnswer: "1",
		})
		assert.ErrorIs(t, err, ErrQuestionNotInAttempt)
	})

	t.Run("rejects mutation without an open session", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())

		err := fx.service.SaveAnswer(ctx, &SaveAnswerRequest{
			AttemptRef: ref(), QuestionID: "q1", SelectedAnswer: "1",
		})
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})

	t.Run("rejects mutation after submit", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		start(t, fx)

		_, err := fx.service.Submit(ctx, ref().Key())
		require.NoError(t, err)

		err = fx.service.SaveAnswer(ctx, &SaveAnswerRequest{
			AttemptRef: ref(), QuestionID: "q1", SelectedAnswer: "1",
		})
		assert.ErrorIs(t, err, ErrAttemptSubmitted)

		err = fx.service.ClearAnswer(ctx, &ClearAnswerRequest{
			AttemptRef: ref(), QuestionID: "q1",
		})
		assert.ErrorIs(t, err, ErrAttemptSubmitted)

		err = fx.service.MarkForReview(ctx, &MarkForReviewRequest{
			AttemptRef: ref(), QuestionID: "q1", MarkedForReview: true,
		})
		assert.ErrorIs(t, err, ErrAttemptSubmitted)
	})
}

// ===== SUBMIT =====

func TestAttemptService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("finalizes the open session", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		_, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)

		resp, err := fx.service.Submit(ctx, ref().Key())
		require.NoError(t, err)
		assert.Equal(t, 1, resp.AttemptCount)
		assert.Equal(t, models.EndReasonCandidate, resp.EndReason)

		session := fx.repo.attempt.sessions[0]
		assert.True(t, session.IsSubmitted)
		require.NotNil(t, session.SubmittedAt)
		assert.False(t, session.SubmittedAt.Before(session.StartedAt))

		published := fx.publisher.GetPublishedEvents()
		require.Len(t, published, 2) // started + submitted
		assert.Equal(t, events.EventAttemptSubmitted, published[1].Type)
	})

	t.Run("second submit is a no-op success", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		_, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)

		first, err := fx.service.Submit(ctx, ref().Key())
		require.NoError(t, err)

		second, err := fx.service.Submit(ctx, ref().Key())
		require.NoError(t, err)
		assert.Equal(t, first.SubmittedAt, second.SubmittedAt)
		assert.Equal(t, first.AttemptCount, second.AttemptCount)
		assert.Equal(t, models.EndReasonCandidate, second.EndReason)

		// Only one submitted event for the single effective transition.
		submitted := 0
		for _, e := range fx.publisher.GetPublishedEvents() {
			if e.Type == events.EventAttemptSubmitted {
				submitted++
			}
		}
		assert.Equal(t, 1, submitted)
	})

	t.Run("submit without a session fails", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())

		_, err := fx.service.Submit(ctx, ref().Key())
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})
}

// ===== DEADLINE FORCE-SUBMIT =====

func TestAttemptService_ForceSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("finalizes an open session with deadline reason", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		_, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)

		require.NoError(t, fx.service.ForceSubmit(ctx, ref().Key()))

		session := fx.repo.attempt.sessions[0]
		assert.True(t, session.IsSubmitted)
		require.NotNil(t, session.EndReason)
		assert.Equal(t, models.EndReasonDeadline, *session.EndReason)
		assert.Equal(t, 1, session.AttemptCount)
	})

	t.Run("no-op when the candidate already submitted", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		_, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)
		_, err = fx.service.Submit(ctx, ref().Key())
		require.NoError(t, err)

		require.NoError(t, fx.service.ForceSubmit(ctx, ref().Key()))

		session := fx.repo.attempt.sessions[0]
		assert.Equal(t, models.EndReasonCandidate, *session.EndReason)
		assert.Equal(t, 1, session.AttemptCount)
	})

	t.Run("no-op when no session exists", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		assert.NoError(t, fx.service.ForceSubmit(ctx, ref().Key()))
	})
}

// ===== STARTUP RECOVERY =====

func TestAttemptService_RearmOpenSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("re-arms future deadlines and finalizes overdue sessions", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())

		// Open session created before a "restart".
		_, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)
		armedBefore := fx.scheduler.count()

		svc := fx.service.(*attemptService)

		// Clock inside the window: the timer is re-armed.
		svc.now = func() time.Time { return testStart.Add(time.Hour) }
		require.NoError(t, fx.service.RearmOpenSessions(ctx))
		assert.Equal(t, armedBefore+1, fx.scheduler.count())
		assert.False(t, fx.repo.attempt.sessions[0].IsSubmitted)

		// Clock past the deadline: the session is finalized on the spot.
		svc.now = func() time.Time { return testEnd.Add(20 * time.Minute) }
		require.NoError(t, fx.service.RearmOpenSessions(ctx))

		session := fx.repo.attempt.sessions[0]
		assert.True(t, session.IsSubmitted)
		assert.Equal(t, models.EndReasonDeadline, *session.EndReason)
	})

	t.Run("skips untimed papers", func(t *testing.T) {
		fx := newAttemptFixture(t, untimedPaper())

		_, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)
		armedBefore := fx.scheduler.count()

		require.NoError(t, fx.service.RearmOpenSessions(ctx))
		assert.Equal(t, armedBefore, fx.scheduler.count())
		assert.False(t, fx.repo.attempt.sessions[0].IsSubmitted)
	})
}

// ===== ATTEMPT VIEW =====

func TestAttemptService_GetAttemptView(t *testing.T) {
	ctx := context.Background()

	t.Run("overlays session state grouped by subject", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())
		_, err := fx.service.Start(ctx, startAt(testStart))
		require.NoError(t, err)

		require.NoError(t, fx.service.SaveAndMark(ctx, &SaveAndMarkRequest{
			AttemptRef: ref(), QuestionID: "q2", SelectedAnswer: "3", MarkedForReview: true,
		}))

		view, err := fx.service.GetAttemptView(ctx, ref().Key())
		require.NoError(t, err)
		assert.False(t, view.IsSubmitted)
		require.NotNil(t, view.Deadline)

		// Subjects appear in order of first appearance in the paper.
		require.Len(t, view.Subjects, 2)
		assert.Equal(t, models.SubjectPhysics, view.Subjects[0].Subject)
		assert.Equal(t, models.SubjectChemistry, view.Subjects[1].Subject)
		require.Len(t, view.Subjects[0].Questions, 2)

		q2 := view.Subjects[0].Questions[1]
		assert.Equal(t, "q2", q2.QuestionID)
		assert.Equal(t, "3", q2.SelectedAnswer)
		assert.True(t, q2.MarkedForReview)
		assert.True(t, q2.IsSaved)
	})

	t.Run("fails without an open session", func(t *testing.T) {
		fx := newAttemptFixture(t, timedPaper())

		_, err := fx.service.GetAttemptView(ctx, ref().Key())
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})
}
