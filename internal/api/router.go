package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Pabby01/studIQ-sub001/internal/api/controllers"
	"github.com/Pabby01/studIQ-sub001/internal/models/db_models"
	"github.com/Pabby01/studIQ-sub001/pkg/middleware"
	"github.com/Pabby01/studIQ-sub001/pkg/utils"
)

type RouterParams struct {
	JWTSecret  []byte
	Production bool
	Log        *zap.Logger

	Account       *controllers.AccountController
	PasswordReset *controllers.PasswordResetController
	Quiz          *controllers.QuizController
	Health        *controllers.HealthController
}

func NewRouter(p RouterParams) *gin.Engine {
	if p.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	utils.UseJSONFieldNames()

	r := gin.New()
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.RequestLogger(p.Log))
	r.Use(gin.Recovery())

	RegisterRoutes(r, p)
	return r
}

func RegisterRoutes(r *gin.Engine, p RouterParams) {
	r.GET("/health", p.Health.Health)

	auth := r.Group("/auth")
	auth.POST("/register", p.Account.Register)
	auth.POST("/login", p.Account.Login)

	reset := auth.Group("/password-reset")
	reset.POST("/request", p.PasswordReset.RequestReset)
	reset.POST("/confirm", p.PasswordReset.Confirm)
	reset.DELETE("/cleanup",
		middleware.JWTAuthMiddleware(p.JWTSecret),
		middleware.RoleMiddleware(db_models.RoleAdmin),
		p.PasswordReset.Cleanup)

	quizzes := r.Group("/quizzes")
	quizzes.POST("/grade", p.Quiz.Grade)
}
