package models

import (
	"time"
)

// AttemptKey identifies one candidate's attempt at one test paper.
// At most one open (non-finalized) session may exist per key.
type AttemptKey struct {
	UserID       string `json:"user_id" validate:"required"`
	TestSeriesID string `json:"test_series_id" validate:"required"`
	TestPaperID  string `json:"test_paper_id" validate:"required"`
}

// AttemptSession is the stateful record of one candidate's progress
// through one test paper. It is created by Start, mutated per question
// while open and becomes terminal once IsSubmitted is set.
type AttemptSession struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	UserID       string `json:"user_id" gorm:"not null;size:255;index:idx_attempt_identity;uniqueIndex:idx_open_attempt,where:is_submitted = false"`
	TestSeriesID string `json:"test_series_id" gorm:"not null;size:255;index:idx_attempt_identity"`
	TestPaperID  string `json:"test_paper_id" gorm:"not null;size:255;index:idx_attempt_identity;uniqueIndex:idx_open_attempt,where:is_submitted = false"`

	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt *time.Time `json:"submitted_at"`
	IsSubmitted bool       `json:"is_submitted" gorm:"not null;default:false;index"`

	// AttemptCount is the number of finalized attempts against this paper
	// by this user, including this one once it is submitted. It is
	// incremented by the same UPDATE that sets IsSubmitted.
	AttemptCount int `json:"attempt_count" gorm:"not null;default:0"`

	// EndReason records who finalized the session: the candidate or the
	// deadline scheduler. Nil while open.
	EndReason *string `json:"end_reason" gorm:"size:32"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Questions []AttemptQuestion `json:"questions" gorm:"foreignKey:AttemptID"`
}

const (
	EndReasonCandidate = "candidate"
	EndReasonDeadline  = "deadline"
)

// Key returns the identity triple of the session.
func (a *AttemptSession) Key() AttemptKey {
	return AttemptKey{
		UserID:       a.UserID,
		TestSeriesID: a.TestSeriesID,
		TestPaperID:  a.TestPaperID,
	}
}

// AttemptQuestion is one entry of the session's per-question state.
// Entries are seeded in snapshot order at Start and only mutated in
// place afterwards; they are never added or removed.
type AttemptQuestion struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	AttemptID  uint   `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID string `json:"question_id" gorm:"not null;size:255;uniqueIndex:idx_attempt_question"`

	Subject  string `json:"subject" gorm:"not null;size:64"`
	Position int    `json:"position" gorm:"not null"` // snapshot order within the paper

	SelectedAnswer  string `json:"selected_answer" gorm:"not null;default:''"`
	MarkedForReview bool   `json:"marked_for_review" gorm:"not null;default:false"`
	IsSaved         bool   `json:"is_saved" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AttemptSession) TableName() string {
	return "attempt_sessions"
}

func (AttemptQuestion) TableName() string {
	return "attempt_questions"
}
