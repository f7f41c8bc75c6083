package router

import (
	"github.com/labstack/echo/v4"

	"github.com/muluken16/E-liberary/internal/handler"
	"github.com/muluken16/E-liberary/internal/middleware"
)

// RegisterLearning registers exam delivery, progress tracking and the
// recent-activity feed.
func RegisterLearning(g *echo.Group, q *handler.QuizHandler, a *handler.ActivityHandler, jwtSecret string) {
	jwt := middleware.JWTAuth(jwtSecret)

	g.GET("/subjects", q.Subjects)
	g.GET("/subjects/progress/mine", q.MyProgress, jwt)
	g.POST("/subjects/:id/progress", q.SaveProgress, jwt)
	g.GET("/exams/:subject_id", q.Exam)

	g.GET("/recent-activities", a.Recent, jwt)
}
