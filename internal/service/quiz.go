package service

import (
	"context"
	"time"

	"github.com/muluken16/E-liberary/internal/model"
)

// QuizRepo is the subject/question/progress store.
type QuizRepo interface {
	ListSubjects(ctx context.Context, search string) ([]model.Subject, error)
	GetSubject(ctx context.Context, id uint64) (*model.Subject, error)
	ListQuestions(ctx context.Context, subjectID uint64) ([]model.Question, error)
	GetProgress(ctx context.Context, userID, subjectID uint64) (*model.SubjectProgress, error)
	SaveProgress(ctx context.Context, p *model.SubjectProgress) error
	ListProgressByUser(ctx context.Context, userID uint64) ([]model.SubjectProgress, error)
}

// Quiz delivers exams and tracks progress.
type Quiz struct {
	repo QuizRepo
	now  func() time.Time
}

// NewQuiz returns a Quiz using the wall clock.
func NewQuiz(repo QuizRepo) *Quiz { return &Quiz{repo: repo, now: time.Now} }

// ExamQuestion is a question as delivered to the exam client.
type ExamQuestion struct {
	ID            uint64   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correct_option"`
	Explain       string   `json:"explain"`
}

// Exam is a subject's full question set with its time limit in seconds.
type Exam struct {
	Name      string         `json:"name"`
	Duration  int            `json:"duration"`
	Questions []ExamQuestion `json:"questions"`
}

func (q *Quiz) Subjects(ctx context.Context, search string) ([]model.Subject, error) {
	return q.repo.ListSubjects(ctx, search)
}

// Exam loads a subject's questions.  Duration falls back to one minute per
// question when the subject has no time limit.
func (q *Quiz) Exam(ctx context.Context, subjectID uint64) (*Exam, error) {
	s, err := q.repo.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	qs, err := q.repo.ListQuestions(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	exam := &Exam{Name: s.Name, Questions: make([]ExamQuestion, 0, len(qs))}
	for _, item := range qs {
		eq := ExamQuestion{ID: item.ID, Question: item.Text, Options: item.Options}
		if eq.Options == nil {
			eq.Options = []string{}
		}
		if item.CorrectOption != nil {
			eq.CorrectOption = *item.CorrectOption
		}
		if item.Explain != nil {
			eq.Explain = *item.Explain
		}
		exam.Questions = append(exam.Questions, eq)
	}
	exam.Duration = s.TimeMinutes * 60
	if exam.Duration <= 0 {
		exam.Duration = len(qs) * 60
	}
	return exam, nil
}

// ProgressInput is a partial progress update.
type ProgressInput struct {
	Progress  *int
	Status    *string
	Score     *float64
	TimeSpent int
}

// SaveProgress folds in an update for (user, subject).
func (q *Quiz) SaveProgress(ctx context.Context, userID, subjectID uint64, in ProgressInput) (*model.SubjectProgress, error) {
	if _, err := q.repo.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	p, err := q.repo.GetProgress(ctx, userID, subjectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &model.SubjectProgress{UserID: userID, SubjectID: subjectID, Status: model.ProgressNotStarted}
	}
	p.Apply(in.Progress, in.Status, in.Score, in.TimeSpent, q.now().UTC())
	if err := q.repo.SaveProgress(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (q *Quiz) MyProgress(ctx context.Context, userID uint64) ([]model.SubjectProgress, error) {
	return q.repo.ListProgressByUser(ctx, userID)
}
