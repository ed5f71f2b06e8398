package repositories

import (
	"context"
	"time"

	"github.com/medjeex/exam-engine/internal/models"
	"gorm.io/gorm"
)

// QuestionStateUpdate is one atomic mutation of a single question entry
// inside an open attempt session. Exactly the listed fields are written;
// nil means "leave unchanged".
type QuestionStateUpdate struct {
	SelectedAnswer  *string
	MarkedForReview *bool
	IsSaved         *bool
}

// MutationOutcome distinguishes why a conditional single-entry update
// wrote no row.
type MutationOutcome int

const (
	MutationApplied MutationOutcome = iota
	MutationNoSuchEntry
	MutationSessionFinalized
)

// AttemptRepository owns the attempt session record, the only mutable
// shared resource of the engine. Conflicting writes to the same
// (attempt, question) pair are serialized at the storage layer, never by
// an in-process lock.
type AttemptRepository interface {
	// Create persists a new open session together with its seeded
	// question entries. It fails with ErrDuplicateOpenAttempt when an
	// open session already exists for the same identity triple.
	Create(ctx context.Context, tx *gorm.DB, session *models.AttemptSession) error

	GetOpen(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (*models.AttemptSession, error)
	GetOpenWithQuestions(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (*models.AttemptSession, error)
	HasOpen(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (bool, error)

	// UpdateQuestionState applies a single-row conditional UPDATE to one
	// question entry of the open session for key. It never rewrites the
	// whole session, so concurrent updates to different questions of the
	// same session cannot race each other.
	UpdateQuestionState(ctx context.Context, tx *gorm.DB, key models.AttemptKey, questionID string, update QuestionStateUpdate) (MutationOutcome, error)

	// Finalize flips the open session for key to submitted with a
	// compare-and-set on is_submitted, incrementing attempt_count in the
	// same statement. It returns the finalized session and whether this
	// call performed the transition (false when the session was already
	// finalized by a concurrent Submit).
	Finalize(ctx context.Context, tx *gorm.DB, key models.AttemptKey, submittedAt time.Time, endReason string) (*models.AttemptSession, bool, error)

	// CountFinalized returns the number of finalized attempts for key's
	// user against key's paper.
	CountFinalized(ctx context.Context, tx *gorm.DB, key models.AttemptKey) (int, error)

	// FinalizedPaperIDs returns the set of paper ids within a series the
	// user has at least one finalized attempt for.
	FinalizedPaperIDs(ctx context.Context, tx *gorm.DB, userID, testSeriesID string) ([]string, error)

	// OpenSessions lists all open sessions, used to re-arm auto-submit
	// timers after a restart.
	OpenSessions(ctx context.Context, tx *gorm.DB) ([]*models.AttemptSession, error)
}

// QuestionRepository reads the static question content store.
type QuestionRepository interface {
	GetByPaper(ctx context.Context, tx *gorm.DB, testPaperID string) ([]*models.Question, error)
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
}

// TestPaperRepository reads test paper metadata.
type TestPaperRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, testPaperID string) (*models.TestPaper, error)
	GetBySeries(ctx context.Context, tx *gorm.DB, testSeriesID string) ([]*models.TestPaper, error)
}

// EntitlementRepository answers purchase questions for the catalog
// collaborator's data. It tags papers; it never gates mutation.
type EntitlementRepository interface {
	IsPurchased(ctx context.Context, tx *gorm.DB, userID, testSeriesID string) (bool, error)
}

// Repository aggregates all repositories plus transaction support.
type Repository interface {
	Attempt() AttemptRepository
	Question() QuestionRepository
	TestPaper() TestPaperRepository
	Entitlement() EntitlementRepository

	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	Ping(ctx context.Context) error
	Close() error
}
