package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/medjeex/exam-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshotFixture(questions []*models.Question) (SnapshotService, *fakeRepository) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &fakeRepository{
		attempt:     newFakeAttemptRepo(),
		question:    &fakeQuestionRepo{byPaper: map[string][]*models.Question{"p1": questions}},
		testPaper:   &fakeTestPaperRepo{papers: map[string]*models.TestPaper{}},
		entitlement: &fakeEntitlementRepo{},
	}
	return NewSnapshotService(repo, nil, logger), repo
}

func snapshotQuestions() []*models.Question {
	return []*models.Question{
		{QuestionID: "q1", TestPaperID: "p1", Subject: models.SubjectPhysics, Question: "F = ?", Position: 0},
		{QuestionID: "q2", TestPaperID: "p1", Subject: models.SubjectChemistry, Question: "pH of water?", Position: 1},
		{QuestionID: "q3", TestPaperID: "p1", Subject: models.SubjectPhysics, Question: "v = ?", Position: 2},
	}
}

func TestSnapshotService_BlankSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("groups by subject in order of first appearance", func(t *testing.T) {
		svc, _ := newSnapshotFixture(snapshotQuestions())

		groups, err := svc.BlankSnapshot(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, groups, 2)

		assert.Equal(t, models.SubjectPhysics, groups[0].Subject)
		require.Len(t, groups[0].Questions, 2)
		assert.Equal(t, "q1", groups[0].Questions[0].QuestionID)
		assert.Equal(t, "q3", groups[0].Questions[1].QuestionID)

		assert.Equal(t, models.SubjectChemistry, groups[1].Subject)
		require.Len(t, groups[1].Questions, 1)

		// Blank overlay throughout.
		for _, group := range groups {
			for _, q := range group.Questions {
				assert.Empty(t, q.SelectedAnswer)
				assert.False(t, q.MarkedForReview)
				assert.False(t, q.IsSaved)
			}
		}
	})

	t.Run("empty paper fails", func(t *testing.T) {
		svc, _ := newSnapshotFixture(nil)

		_, err := svc.BlankSnapshot(ctx, "p1")
		assert.ErrorIs(t, err, ErrNoQuestions)
	})
}

func TestSnapshotService_SeedQuestions(t *testing.T) {
	svc, _ := newSnapshotFixture(snapshotQuestions())

	seed, err := svc.SeedQuestions(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, seed, 3)

	for i, entry := range seed {
		assert.Equal(t, i, entry.Position)
		assert.Empty(t, entry.SelectedAnswer)
		assert.False(t, entry.MarkedForReview)
		assert.False(t, entry.IsSaved)
	}
	assert.Equal(t, models.SubjectChemistry, seed[1].Subject)
}

func TestSnapshotService_AttemptView(t *testing.T) {
	ctx := context.Background()

	t.Run("overlays per-question state", func(t *testing.T) {
		svc, _ := newSnapshotFixture(snapshotQuestions())

		session := &models.AttemptSession{
			TestPaperID: "p1",
			Questions: []models.AttemptQuestion{
				{QuestionID: "q1", SelectedAnswer: "2", IsSaved: true},
				{QuestionID: "q2", MarkedForReview: true},
				{QuestionID: "q3"},
			},
		}

		groups, err := svc.AttemptView(ctx, session)
		require.NoError(t, err)

		q1 := groups[0].Questions[0]
		assert.Equal(t, "2", q1.SelectedAnswer)
		assert.True(t, q1.IsSaved)

		q2 := groups[1].Questions[0]
		assert.True(t, q2.MarkedForReview)
		assert.Empty(t, q2.SelectedAnswer)
	})

	t.Run("content question missing from session state is an integrity fault", func(t *testing.T) {
		svc, _ := newSnapshotFixture(snapshotQuestions())

		session := &models.AttemptSession{
			TestPaperID: "p1",
			Questions: []models.AttemptQuestion{
				{QuestionID: "q1"},
				// q2 and q3 missing
			},
		}

		_, err := svc.AttemptView(ctx, session)
		assert.ErrorIs(t, err, ErrSnapshotIntegrity)
	})
}
