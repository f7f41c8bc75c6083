package model

import "time"

// Subject groups exam questions.  TimeMinutes is the exam duration; zero
// means "one minute per question".
type Subject struct {
	ID          uint64
	Name        string
	Description *string
	TimeMinutes int
	CreatedAt   time.Time
}

// Question is a multiple-choice question belonging to a Subject.  Options is
// stored as a JSON array column.
type Question struct {
	ID            uint64
	SubjectID     uint64
	Text          string
	Options       []string
	CorrectOption *string
	Explain       *string
}

// Subject progress states.
const (
	ProgressNotStarted = "not_started"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
)

// SubjectProgress tracks one user's progress through a subject's exam.
type SubjectProgress struct {
	ID           uint64
	UserID       uint64
	SubjectID    uint64
	Progress     int
	Status       string
	Score        *float64
	TimeSpent    int // seconds, accumulated
	CompletedAt  *time.Time
	LastAccessed time.Time
}

// Apply folds an update into the progress record: progress is clamped to
// 0..100, reaching 100 completes the subject, and moving off zero starts it.
func (p *SubjectProgress) Apply(progress *int, status *string, score *float64, timeSpent int, now time.Time) {
	if progress != nil {
		p.Progress = *progress
	}
	if p.Progress < 0 {
		p.Progress = 0
	}
	if p.Progress > 100 {
		p.Progress = 100
	}
	if status != nil && *status != "" {
		p.Status = *status
	}
	if score != nil {
		p.Score = score
	}
	if timeSpent > 0 {
		p.TimeSpent += timeSpent
	}
	switch {
	case p.Progress == 100:
		p.Status = ProgressCompleted
		if p.CompletedAt == nil {
			t := now
			p.CompletedAt = &t
		}
	case p.Progress > 0 && (p.Status == "" || p.Status == ProgressNotStarted):
		p.Status = ProgressInProgress
	case p.Status == "":
		p.Status = ProgressNotStarted
	}
	p.LastAccessed = now
}
