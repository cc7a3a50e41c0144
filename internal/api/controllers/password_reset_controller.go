package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/Pabby01/studIQ-sub001/internal/models/request_models"
	"github.com/Pabby01/studIQ-sub001/internal/models/response_models"
	"github.com/Pabby01/studIQ-sub001/internal/services"
	"github.com/Pabby01/studIQ-sub001/pkg/utils"
)

type PasswordResetController struct {
	resetService services.PasswordResetServiceInterface
}

func NewPasswordResetController(resetService services.PasswordResetServiceInterface) *PasswordResetController {
	return &PasswordResetController{
		resetService: resetService,
	}
}

// RequestReset godoc
// @Summary Request a password reset link
// @Description Always answers with the same message whether or not the email is registered
// @Tags PasswordReset
// @Accept json
// @Produce json
// @Param request body request_models.RequestPasswordReset true "Reset request payload"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 429 {object} utils.APIResponse
// @Router /auth/password-reset/request [post]
func (p *PasswordResetController) RequestReset(c *gin.Context) {
	var req request_models.RequestPasswordReset
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindError(c, err)
		return
	}

	if err := p.resetService.RequestReset(c.Request.Context(), req.Email, c.ClientIP()); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, services.GenericResetMessage)
}

// Confirm godoc
// @Summary Set a new password with a reset token
// @Tags PasswordReset
// @Accept json
// @Produce json
// @Param request body request_models.ConfirmPasswordReset true "Token and new password"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 429 {object} utils.APIResponse
// @Router /auth/password-reset/confirm [post]
func (p *PasswordResetController) Confirm(c *gin.Context) {
	var req request_models.ConfirmPasswordReset
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindError(c, err)
		return
	}

	if err := p.resetService.ConfirmReset(c.Request.Context(), req.Token, req.NewPassword, c.ClientIP()); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Password has been reset successfully")
}

// Cleanup godoc
// @Summary Delete expired reset tokens
// @Tags PasswordReset
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Security BearerAuth
// @Router /auth/password-reset/cleanup [delete]
func (p *PasswordResetController) Cleanup(c *gin.Context) {
	deleted, err := p.resetService.SweepExpired(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.SweepResponse{Deleted: deleted}, "Expired reset tokens removed")
}
