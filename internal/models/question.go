package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	SingleCorrect QuestionType = "single-correct"
	MultiCorrect  QuestionType = "multi-correct"
	Integer       QuestionType = "integer"
)

type QuestionFormat string

const (
	FormatText     QuestionFormat = "text"
	FormatImageURL QuestionFormat = "imageurl"
)

// Subjects a test paper may cover.
const (
	SubjectPhysics     = "Physics"
	SubjectChemistry   = "Chemistry"
	SubjectMathematics = "Mathematics"
	SubjectBotany      = "Botany"
	SubjectScience     = "Science"
	SubjectZoology     = "Zoology"
)

// QuestionOption is one selectable option of a question.
type QuestionOption struct {
	Value  string         `json:"value"`
	Format QuestionFormat `json:"format"`
}

// Question is read-only reference content owned by the question store.
// CorrectAnswer is never serialized to candidate-facing responses.
type Question struct {
	ID          uint   `json:"-" gorm:"primaryKey"`
	QuestionID  string `json:"question_id" gorm:"not null;uniqueIndex;size:255"`
	TestPaperID string `json:"test_paper_id" gorm:"not null;index;size:255"`

	Subject        string         `json:"subject" gorm:"not null;size:64;index" validate:"required,oneof=Physics Chemistry Mathematics Botany Science Zoology"`
	QuestionType   QuestionType   `json:"question_type" gorm:"not null;size:32" validate:"required,oneof=single-correct multi-correct integer"`
	QuestionFormat QuestionFormat `json:"question_format" gorm:"not null;size:16" validate:"required,oneof=text imageurl"`
	Question       string         `json:"question" gorm:"not null;type:text" validate:"required"`
	Options        datatypes.JSON `json:"options" gorm:"type:jsonb"`

	Marks           float64 `json:"marks" gorm:"not null" validate:"min=0"`
	NegativeMarking float64 `json:"negative_marking" gorm:"not null;default:0"`
	CorrectAnswer   string  `json:"-" gorm:"not null;type:text"`

	// Position is the stable order the store returns questions in.
	Position int `json:"-" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Question) TableName() string {
	return "questions"
}

// QuestionView is a candidate-facing question descriptor, optionally
// overlaid with the session's per-question state.
type QuestionView struct {
	QuestionID     string         `json:"question_id"`
	QuestionType   QuestionType   `json:"question_type"`
	QuestionFormat QuestionFormat `json:"question_format"`
	Question       string         `json:"question"`
	Options        datatypes.JSON `json:"options"`
	Marks          float64        `json:"marks"`
	NegativeMarking float64       `json:"negative_marking"`

	// Attempt-context overlay; zero-valued in a blank snapshot.
	SelectedAnswer  string `json:"selected_answer"`
	MarkedForReview bool   `json:"marked_for_review"`
	IsSaved         bool   `json:"is_saved"`
}

// SubjectGroup is one subject's slice of the snapshot, in store order.
type SubjectGroup struct {
	Subject   string         `json:"subject"`
	Questions []QuestionView `json:"questions"`
}
