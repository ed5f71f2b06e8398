package postgres

import (
	"context"

	"github.com/medjeex/exam-engine/internal/models"
	"github.com/medjeex/exam-engine/internal/repositories"
	"gorm.io/gorm"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

// GetByPaper returns the paper's questions in store order. The order is
// stable: it is the order the snapshot is seeded in at Start.
func (q *QuestionPostgreSQL) GetByPaper(ctx context.Context, tx *gorm.DB, testPaperID string) ([]*models.Question, error) {
	var questions []*models.Question
	err := conn(q.db, tx).WithContext(ctx).
		Where("test_paper_id = ?", testPaperID).
		Order("position ASC, id ASC").
		Find(&questions).Error
	return questions, err
}

func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return conn(q.db, tx).WithContext(ctx).Create(questions).Error
}
