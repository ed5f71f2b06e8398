package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents different types of attempt lifecycle events
type EventType string

const (
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptSubmitted EventType = "attempt.submitted"
)

// AttemptEvent is the base event structure for all attempt events
type AttemptEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Attempt event payloads

type AttemptStartedEvent struct {
	AttemptID    string     `json:"attempt_id"`
	UserID       string     `json:"user_id"`
	TestSeriesID string     `json:"test_series_id"`
	TestPaperID  string     `json:"test_paper_id"`
	StartedAt    time.Time  `json:"started_at"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

type AttemptSubmittedEvent struct {
	AttemptID    string    `json:"attempt_id"`
	UserID       string    `json:"user_id"`
	TestSeriesID string    `json:"test_series_id"`
	TestPaperID  string    `json:"test_paper_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
	EndReason    string    `json:"end_reason"`
}

// Event factory functions

func NewAttemptStartedEvent(attemptID, userID, testSeriesID, testPaperID string, startedAt time.Time, deadline *time.Time) *AttemptEvent {
	return &AttemptEvent{
		ID:        generateEventID(),
		Type:      EventAttemptStarted,
		Timestamp: time.Now(),
		Source:    "exam-engine",
		Version:   "1.0",
		Data: AttemptStartedEvent{
			AttemptID:    attemptID,
			UserID:       userID,
			TestSeriesID: testSeriesID,
			TestPaperID:  testPaperID,
			StartedAt:    startedAt,
			Deadline:     deadline,
		},
	}
}

func NewAttemptSubmittedEvent(attemptID, userID, testSeriesID, testPaperID string, submittedAt time.Time, endReason string) *AttemptEvent {
	return &AttemptEvent{
		ID:        generateEventID(),
		Type:      EventAttemptSubmitted,
		Timestamp: time.Now(),
		Source:    "exam-engine",
		Version:   "1.0",
		Data: AttemptSubmittedEvent{
			AttemptID:    attemptID,
			UserID:       userID,
			TestSeriesID: testSeriesID,
			TestPaperID:  testPaperID,
			SubmittedAt:  submittedAt,
			EndReason:    endReason,
		},
	}
}

func generateEventID() string {
	return uuid.NewString()
}
