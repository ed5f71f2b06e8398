package postgres

import (
	"context"

	"github.com/medjeex/exam-engine/internal/models"
	"github.com/medjeex/exam-engine/internal/repositories"
	"gorm.io/gorm"
)

type TestPaperPostgreSQL struct {
	db *gorm.DB
}

func NewTestPaperPostgreSQL(db *gorm.DB) repositories.TestPaperRepository {
	return &TestPaperPostgreSQL{db: db}
}

func (t *TestPaperPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, testPaperID string) (*models.TestPaper, error) {
	var paper models.TestPaper
	if err := conn(t.db, tx).WithContext(ctx).
		Where("test_paper_id = ?", testPaperID).
		First(&paper).Error; err != nil {
		return nil, err
	}
	return &paper, nil
}

func (t *TestPaperPostgreSQL) GetBySeries(ctx context.Context, tx *gorm.DB, testSeriesID string) ([]*models.TestPaper, error) {
	var papers []*models.TestPaper
	err := conn(t.db, tx).WithContext(ctx).
		Where("test_series_id = ? AND approved = true", testSeriesID).
		Order("test_start_time ASC NULLS LAST, id ASC").
		Find(&papers).Error
	return papers, err
}

type EntitlementPostgreSQL struct {
	db *gorm.DB
}

func NewEntitlementPostgreSQL(db *gorm.DB) repositories.EntitlementRepository {
	return &EntitlementPostgreSQL{db: db}
}

func (e *EntitlementPostgreSQL) IsPurchased(ctx context.Context, tx *gorm.DB, userID, testSeriesID string) (bool, error) {
	var count int64
	err := conn(e.db, tx).WithContext(ctx).
		Model(&models.Purchase{}).
		Where("user_id = ? AND test_series_id = ?", userID, testSeriesID).
		Count(&count).Error
	return count > 0, err
}
