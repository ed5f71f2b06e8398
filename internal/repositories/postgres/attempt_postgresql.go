package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/medjeex/exam-engine/internal/models"
	"github.com/medjeex/exam-engine/internal/repositories"
	"gorm.io/gorm"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, session *models.AttemptSession) error {
	err := conn(a.db, tx).WithContext(ctx).Create(session).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		// Partial unique index on (user_id, test_paper_id) where
		// is_submitted = false.
		return repositories.ErrDuplicateOpenAttempt
	}
	return err
}

func (a *AttemptPostgreSQL) GetOpen(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (*models.AttemptSession, error) {
	var session models.AttemptSession
	if err := a.openScope(conn(a.db, tx).WithContext(ctx), key).
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (a *AttemptPostgreSQL) GetOpenWithQuestions(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (*models.AttemptSession, error) {
	var session models.AttemptSession
	if err := a.openScope(conn(a.db, tx).WithContext(ctx), key).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (a *AttemptPostgreSQL) HasOpen(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (bool, error) {
	var count int64
	if err := a.openScope(conn(a.db, tx).WithContext(ctx).Model(&models.AttemptSession{}), key).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *AttemptPostgreSQL) UpdateQuestionState(ctx context.Context, tx *gorm.DB, key models.AttemptKey, questionID string, update repositories.QuestionStateUpdate) (repositories.MutationOutcome, error) {
	db := conn(a.db, tx).WithContext(ctx)

	fields := map[string]interface{}{"updated_at": time.Now()}
	if update.SelectedAnswer != nil {
		fields["selected_answer"] = *update.SelectedAnswer
	}
	if update.MarkedForReview != nil {
		fields["marked_for_review"] = *update.MarkedForReview
	}
	if update.IsSaved != nil {
		fields["is_saved"] = *update.IsSaved
	}

	// Single-row conditional UPDATE: the open-session check is part of
	// the statement, so a concurrent Submit cannot slip a write into a
	// finalized session, and writes to other entries are untouched.
	openIDs := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.AttemptSession{}).
		Select("id").
		Where("user_id = ? AND test_series_id = ? AND test_paper_id = ? AND is_submitted = false",
			key.UserID, key.TestSeriesID, key.TestPaperID)

	res := db.Model(&models.AttemptQuestion{}).
		Where("question_id = ? AND attempt_id IN (?)", questionID, openIDs).
		Updates(fields)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		return repositories.MutationApplied, nil
	}

	// Nothing written: tell the caller why.
	open, err := a.HasOpen(ctx, tx, key)
	if err != nil {
		return 0, err
	}
	if open {
		return repositories.MutationNoSuchEntry, nil
	}

	var count int64
	if err := a.keyScope(db.Session(&gorm.Session{NewDB: true}).Model(&models.AttemptSession{}), key).
		Count(&count).Error; err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return repositories.MutationSessionFinalized, nil
}

func (a *AttemptPostgreSQL) Finalize(ctx context.Context, tx *gorm.DB, key models.AttemptKey, submittedAt time.Time, endReason string) (*models.AttemptSession, bool, error) {
	db := conn(a.db, tx).WithContext(ctx)

	// Compare-and-set on is_submitted linearizes candidate submit
	// against the deadline scheduler: exactly one UPDATE wins.
	res := a.openScope(db.Model(&models.AttemptSession{}), key).
		Updates(map[string]interface{}{
			"is_submitted":  true,
			"submitted_at":  submittedAt,
			"end_reason":    endReason,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}

	var session models.AttemptSession
	if err := a.keyScope(db.Session(&gorm.Session{NewDB: true}), key).
		Order("started_at DESC").
		First(&session).Error; err != nil {
		return nil, false, err
	}
	return &session, res.RowsAffected > 0, nil
}

func (a *AttemptPostgreSQL) CountFinalized(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (int, error) {
	var count int64
	err := conn(a.db, tx).WithContext(ctx).
		Model(&models.AttemptSession{}).
		Where("user_id = ? AND test_paper_id = ? AND is_submitted = true", key.UserID, key.TestPaperID).
		Count(&count).Error
	return int(count), err
}

func (a *AttemptPostgreSQL) FinalizedPaperIDs(ctx context.Context, tx *gorm.DB, userID, testSeriesID string) ([]string, error) {
	var ids []string
	err := conn(a.db, tx).WithContext(ctx).
		Model(&models.AttemptSession{}).
		Where("user_id = ? AND test_series_id = ? AND is_submitted = true", userID, testSeriesID).
		Distinct().
		Pluck("test_paper_id", &ids).Error
	return ids, err
}

func (a *AttemptPostgreSQL) OpenSessions(ctx context.Context, tx *gorm.DB) ([]*models.AttemptSession, error) {
	var sessions []*models.AttemptSession
	err := conn(a.db, tx).WithContext(ctx).
		Where("is_submitted = false").
		Find(&sessions).Error
	return sessions, err
}

func (a *AttemptPostgreSQL) openScope(db *gorm.DB, key models.AttemptKey) *gorm.DB {
	return a.keyScope(db, key).Where("is_submitted = false")
}

func (a *AttemptPostgreSQL) keyScope(db *gorm.DB, key models.AttemptKey) *gorm.DB {
	return db.Where("user_id = ? AND test_series_id = ? AND test_paper_id = ?",
		key.UserID, key.TestSeriesID, key.TestPaperID)
}
