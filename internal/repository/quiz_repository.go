package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/muluken16/E-liberary/internal/model"
)

// QuizRepo serves subjects, their questions and per-user progress.
type QuizRepo struct {
	db *sql.DB
}

// NewQuizRepo returns a new QuizRepo bound to the given database.
func NewQuizRepo(db *sql.DB) *QuizRepo { return &QuizRepo{db: db} }

// ListSubjects returns subjects ordered by name, optionally filtered by a
// case-insensitive substring.
func (r *QuizRepo) ListSubjects(ctx context.Context, search string) ([]model.Subject, error) {
	query := `SELECT id, name, description, time_minutes, created_at FROM subjects`
	args := []any{}
	if s := strings.TrimSpace(search); s != "" {
		query += ` WHERE LOWER(name) LIKE ?`
		args = append(args, "%"+strings.ToLower(s)+"%")
	}
	query += ` ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subject{}
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.TimeMinutes, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSubject returns ErrSubjectNotFound for unknown ids.
func (r *QuizRepo) GetSubject(ctx context.Context, id uint64) (*model.Subject, error) {
	var s model.Subject
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, time_minutes, created_at FROM subjects WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.Description, &s.TimeMinutes, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListQuestions returns the subject's questions in insertion order.
func (r *QuizRepo) ListQuestions(ctx context.Context, subjectID uint64) ([]model.Question, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, subject_id, question_text, options, correct_option, explain_text
		FROM questions WHERE subject_id = ? ORDER BY id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Question{}
	for rows.Next() {
		var (
			q    model.Question
			opts []byte
		)
		if err := rows.Scan(&q.ID, &q.SubjectID, &q.Text, &opts, &q.CorrectOption, &q.Explain); err != nil {
			return nil, err
		}
		if len(opts) > 0 {
			if err := json.Unmarshal(opts, &q.Options); err != nil {
				return nil, err
			}
		}
		if q.Options == nil {
			q.Options = []string{}
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// EnsureSubject returns the id of the named subject, creating it if needed.
func (r *QuizRepo) EnsureSubject(ctx context.Context, name string, description *string, minutes int) (uint64, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO subjects (name, description, time_minutes) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE description = VALUES(description), time_minutes = VALUES(time_minutes)`,
		name, description, minutes); err != nil {
		return 0, err
	}
	var id uint64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM subjects WHERE name = ?`, name).Scan(&id)
	return id, err
}

// ReplaceQuestions swaps the subject's question set in one transaction.
func (r *QuizRepo) ReplaceQuestions(ctx context.Context, tx *sql.Tx, subjectID uint64, qs []model.Question) error {
	q := pick(r.db, tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM questions WHERE subject_id = ?`, subjectID); err != nil {
		return err
	}
	for _, item := range qs {
		opts, err := json.Marshal(item.Options)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO questions (subject_id, question_text, options, correct_option, explain_text) VALUES (?, ?, ?, ?, ?)`,
			subjectID, item.Text, string(opts), item.CorrectOption, item.Explain); err != nil {
			return err
		}
	}
	return nil
}

const progressColumns = `id, user_id, subject_id, progress, status, score, time_spent, completed_at, last_accessed`

func scanProgress(s scanner) (*model.SubjectProgress, error) {
	var p model.SubjectProgress
	if err := s.Scan(&p.ID, &p.UserID, &p.SubjectID, &p.Progress, &p.Status, &p.Score, &p.TimeSpent,
		&p.CompletedAt, &p.LastAccessed); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProgress returns the stored progress, or nil when the user has not
// touched the subject yet.
func (r *QuizRepo) GetProgress(ctx context.Context, userID, subjectID uint64) (*model.SubjectProgress, error) {
	p, err := scanProgress(r.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM subject_progress WHERE user_id = ? AND subject_id = ?`, userID, subjectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// SaveProgress upserts the (user, subject) progress row.
func (r *QuizRepo) SaveProgress(ctx context.Context, p *model.SubjectProgress) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO subject_progress
		(user_id, subject_id, progress, status, score, time_spent, completed_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE progress = VALUES(progress), status = VALUES(status), score = VALUES(score),
		 time_spent = VALUES(time_spent), completed_at = VALUES(completed_at), last_accessed = VALUES(last_accessed)`,
		p.UserID, p.SubjectID, p.Progress, p.Status, p.Score, p.TimeSpent, p.CompletedAt, p.LastAccessed.UTC())
	return err
}

// ListProgressByUser returns every progress row of a user.
func (r *QuizRepo) ListProgressByUser(ctx context.Context, userID uint64) ([]model.SubjectProgress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM subject_progress WHERE user_id = ? ORDER BY last_accessed DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.SubjectProgress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
