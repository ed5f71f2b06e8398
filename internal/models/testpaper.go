package models

import (
	"time"

	"gorm.io/datatypes"
)

type TestSeriesType string

const (
	SeriesAITS TestSeriesType = "aits" // scheduled, windowed papers
	SeriesMock TestSeriesType = "mock" // untimed practice papers
)

// TestPaper is read-only metadata about one paper of a test series.
// Papers without a start/end time are untimed mock papers.
type TestPaper struct {
	ID           uint   `json:"-" gorm:"primaryKey"`
	TestPaperID  string `json:"test_paper_id" gorm:"not null;uniqueIndex;size:255"`
	TestSeriesID string `json:"test_series_id" gorm:"not null;index;size:255"`

	TestName        string         `json:"test_name" gorm:"not null;size:200" validate:"required"`
	TestDescription string         `json:"test_description" gorm:"type:text"`
	TotalMarks      float64        `json:"total_marks" gorm:"not null" validate:"min=0"`
	TestDuration    string         `json:"test_duration" gorm:"not null;size:32"`
	TotalQuestions  int            `json:"total_questions" gorm:"not null;default:0"`
	TotalAttempts   int            `json:"total_attempts" gorm:"not null;default:1" validate:"min=1"`
	SubjectsCovered datatypes.JSON `json:"subjects_covered" gorm:"type:jsonb"`
	NegativeMarking bool           `json:"negative_marking" gorm:"not null;default:false"`
	Approved        bool           `json:"-" gorm:"not null;default:false"`

	TestStartTime *time.Time `json:"test_start_time"`
	TestEndTime   *time.Time `json:"test_end_time"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (TestPaper) TableName() string {
	return "test_papers"
}

// IsTimed reports whether the paper runs inside a scheduled window.
func (p *TestPaper) IsTimed() bool {
	return p.TestEndTime != nil
}

// Paper status tags, as shown on the candidate's paper list.
const (
	TagAll          = "all"
	TagLive         = "live"
	TagUpcoming     = "upcoming"
	TagMissed       = "missed"
	TagAttempted    = "attempted"
	TagNotAttempted = "not-attempted"
)

// TaggedTestPaper is a paper plus its status tags for one candidate.
type TaggedTestPaper struct {
	TestPaper
	StatusTags []string `json:"status_tags"`
}

// Purchase records a user's entitlement to a test series. Purchases are
// written by the catalog/payment collaborator; this service only reads
// them.
type Purchase struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_user_series"`
	TestSeriesID string    `json:"test_series_id" gorm:"not null;size:255;uniqueIndex:idx_user_series"`
	PurchasedAt  time.Time `json:"purchased_at"`
}

func (Purchase) TableName() string {
	return "purchases"
}
