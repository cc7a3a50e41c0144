package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/Pabby01/studIQ-sub001/internal/models/request_models"
	"github.com/Pabby01/studIQ-sub001/internal/services"
	"github.com/Pabby01/studIQ-sub001/pkg/utils"
)

type QuizController struct {
	quizService services.QuizServiceInterface
}

func NewQuizController(quizService services.QuizServiceInterface) *QuizController {
	return &QuizController{quizService: quizService}
}

// Grade godoc
// @Summary Grade submitted quiz answers
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param request body request_models.GradeQuizRequest true "Questions and answers"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Router /quizzes/grade [post]
func (q *QuizController) Grade(c *gin.Context) {
	var req request_models.GradeQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindError(c, err)
		return
	}

	result, err := q.quizService.Grade(req.Questions, req.Answers)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, result, "Quiz graded successfully")
}
