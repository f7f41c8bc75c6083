package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/muluken16/E-liberary/internal/middleware"
	"github.com/muluken16/E-liberary/internal/model"
	"github.com/muluken16/E-liberary/internal/service"
)

// QuizService delivers exams and tracks per-user progress.
type QuizService interface {
	Subjects(ctx context.Context, search string) ([]model.Subject, error)
	Exam(ctx context.Context, subjectID uint64) (*service.Exam, error)
	SaveProgress(ctx context.Context, userID, subjectID uint64, in service.ProgressInput) (*model.SubjectProgress, error)
	MyProgress(ctx context.Context, userID uint64) ([]model.SubjectProgress, error)
}

type QuizHandler struct {
	Quiz QuizService
	Log  zerolog.Logger
}

// NewQuizHandler constructs a QuizHandler.
func NewQuizHandler(q QuizService, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{Quiz: q, Log: log}
}

type subjectDTO struct {
	ID          uint64  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	TimeMinutes int     `json:"time_minutes"`
}

type progressReq struct {
	Progress  *int     `json:"progress" validate:"omitempty,min=0,max=100"`
	Status    *string  `json:"status" validate:"omitempty,oneof=not_started in_progress completed"`
	Score     *float64 `json:"score" validate:"omitempty,min=0"`
	TimeSpent int      `json:"time_spent" validate:"min=0"`
}

type progressDTO struct {
	SubjectID    uint64     `json:"subject_id"`
	Progress     int        `json:"progress"`
	Status       string     `json:"status"`
	Score        *float64   `json:"score,omitempty"`
	TimeSpent    int        `json:"time_spent"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	LastAccessed time.Time  `json:"last_accessed"`
}

func toProgressDTO(p model.SubjectProgress) progressDTO {
	return progressDTO{
		SubjectID: p.SubjectID, Progress: p.Progress, Status: p.Status, Score: p.Score,
		TimeSpent: p.TimeSpent, CompletedAt: p.CompletedAt, LastAccessed: p.LastAccessed,
	}
}

// Subjects serves GET /api/subjects?search=.
func (h *QuizHandler) Subjects(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	subjects, err := h.Quiz.Subjects(ctx, strings.TrimSpace(c.QueryParam("search")))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	out := make([]subjectDTO, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, subjectDTO{ID: s.ID, Name: s.Name, Description: s.Description, TimeMinutes: s.TimeMinutes})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Exam serves GET /api/exams/:subject_id.
func (h *QuizHandler) Exam(c echo.Context) error {
	id, ok := pathID(c, "subject_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subject_id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	exam, err := h.Quiz.Exam(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, exam)
}

// SaveProgress serves POST /api/subjects/:id/progress.
func (h *QuizHandler) SaveProgress(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req progressReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	uid, _ := middleware.UserID(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	p, err := h.Quiz.SaveProgress(ctx, uid, id, service.ProgressInput{
		Progress: req.Progress, Status: req.Status, Score: req.Score, TimeSpent: req.TimeSpent,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toProgressDTO(*p))
}

// MyProgress serves GET /api/subjects/progress/mine.
func (h *QuizHandler) MyProgress(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	ps, err := h.Quiz.MyProgress(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	items := make([]progressDTO, 0, len(ps))
	for _, p := range ps {
		items = append(items, toProgressDTO(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
