package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	userapp "volt/internal/application/user"
	"volt/internal/interfaces/http/middleware"
	"volt/internal/shared/config"
	"volt/internal/shared/logger"
	"volt/internal/shared/utils"
)

// AuthHandler serves the sign-up, sign-in, and verification endpoints.
type AuthHandler struct {
	users *userapp.Service
	cfg   config.AuthConfig
	log   logger.Interface
}

func NewAuthHandler(users *userapp.Service, cfg config.AuthConfig, log logger.Interface) *AuthHandler {
	return &AuthHandler{users: users, cfg: cfg, log: log.Named("auth_handler")}
}

type signUpRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

// SignUp registers an account. When activation is enforced a
// verification code is mailed right away.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	u, err := h.users.CreateUser(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if h.cfg.RequireActivation {
		if err := h.users.SendCode(c.Request.Context(), u.Email); err != nil {
			h.log.Warnw("failed to send activation code", "uid", u.UID, "error", err)
		}
	}

	utils.CreatedResponse(c, gin.H{"uid": u.UID})
}

type signInRequest struct {
	// Identifier is an email address or a username.
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Code       string `json:"code"`
}

// SignIn authenticates and sets the session cookies.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	u, token, err := h.users.SignIn(c.Request.Context(), req.Identifier, req.Password, req.Code)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	maxAge := h.cfg.TokenExpHours * 3600
	utils.SetSessionCookies(c, h.cfg.Cookie, token, u.UID, u.DisplayName, u.Activated, maxAge)

	utils.SuccessResponse(c, http.StatusOK, "signed in", gin.H{
		"uid":   u.UID,
		"token": token,
	})
}

// SignOut invalidates the session and clears every session cookie.
func (h *AuthHandler) SignOut(c *gin.Context) {
	uid := middleware.CurrentUID(c)
	if err := h.users.SignOut(c.Request.Context(), uid); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.ClearSessionCookies(c, h.cfg.Cookie)
	utils.OKResponse(c, "signed out")
}

// Send2FA mails a verification code for the given address.
func (h *AuthHandler) Send2FA(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "email is required")
		return
	}
	if err := h.users.SendCode(c.Request.Context(), email); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.OKResponse(c, "code sent")
}

type activateRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// Activate marks the account verified, gated on a 2FA code.
func (h *AuthHandler) Activate(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.users.Activate(c.Request.Context(), req.Email, req.Code); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.OKResponse(c, "account activated")
}

type forgotPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,password"`
}

// ForgotPassword resets the password with a mailed code.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.OKResponse(c, "password reset")
}
