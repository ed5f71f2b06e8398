package postgres

import (
	"context"

	"github.com/medjeex/exam-engine/internal/repositories"
	"gorm.io/gorm"
)

// Repository is the PostgreSQL implementation of the aggregate
// repository interface.
type Repository struct {
	db          *gorm.DB
	attempt     repositories.AttemptRepository
	question    repositories.QuestionRepository
	testPaper   repositories.TestPaperRepository
	entitlement repositories.EntitlementRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repository{
		db:          db,
		attempt:     NewAttemptPostgreSQL(db),
		question:    NewQuestionPostgreSQL(db),
		testPaper:   NewTestPaperPostgreSQL(db),
		entitlement: NewEntitlementPostgreSQL(db),
	}
}

func (r *Repository) Attempt() repositories.AttemptRepository         { return r.attempt }
func (r *Repository) Question() repositories.QuestionRepository       { return r.question }
func (r *Repository) TestPaper() repositories.TestPaperRepository     { return r.testPaper }
func (r *Repository) Entitlement() repositories.EntitlementRepository { return r.entitlement }

func (r *Repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// conn picks the transaction handle when one is supplied.
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
