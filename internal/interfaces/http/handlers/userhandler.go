package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	paymentapp "volt/internal/application/payment"
	userapp "volt/internal/application/user"
	"volt/internal/domain/user"
	"volt/internal/interfaces/http/middleware"
	"volt/internal/shared/config"
	"volt/internal/shared/logger"
	"volt/internal/shared/utils"
)

// UserHandler serves the self-service profile, API key, and data
// endpoints.
type UserHandler struct {
	users    *userapp.Service
	payments *paymentapp.Service
	cfg      config.AuthConfig
	log      logger.Interface
}

func NewUserHandler(users *userapp.Service, payments *paymentapp.Service, cfg config.AuthConfig, log logger.Interface) *UserHandler {
	return &UserHandler{users: users, payments: payments, cfg: cfg, log: log.Named("user_handler")}
}

// profileResponse is what GET /user renders. The password digest is
// never exposed; the field is an equal-length run of '*'.
type profileResponse struct {
	UID         string `json:"uid"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Activated   bool   `json:"activated"`
	SupportPIN  string `json:"support_pin"`
	HasAPIKey   bool   `json:"has_api_key"`
}

func profileOf(u *user.User) profileResponse {
	return profileResponse{
		UID:         u.UID,
		Username:    u.Username,
		Email:       u.Email,
		Password:    utils.MaskSecret(u.PasswordHash),
		DisplayName: u.DisplayName,
		Activated:   u.Activated,
		SupportPIN:  u.SupportPIN,
		HasAPIKey:   u.APIKeyHash != "",
	}
}

// Get returns the caller's profile.
func (h *UserHandler) Get(c *gin.Context) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", profileOf(u))
}

type updateUserRequest struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
}

// Update applies the provided profile fields, each re-checked for
// uniqueness where applicable.
func (h *UserHandler) Update(c *gin.Context) {
	uid := middleware.CurrentUID(c)

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	if req.Username != nil {
		if err := h.users.SetUsername(ctx, uid, *req.Username); err != nil {
			utils.ErrorResponseWithError(c, err)
			return
		}
	}
	if req.Email != nil {
		if err := h.users.SetEmail(ctx, uid, *req.Email); err != nil {
			utils.ErrorResponseWithError(c, err)
			return
		}
	}
	if req.DisplayName != nil {
		if err := h.users.SetDisplayName(ctx, uid, *req.DisplayName); err != nil {
			utils.ErrorResponseWithError(c, err)
			return
		}
	}

	u, err := h.users.GetByUID(ctx, uid)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "profile updated", profileOf(u))
}

// Delete removes the account along with its payment history.
func (h *UserHandler) Delete(c *gin.Context) {
	uid := middleware.CurrentUID(c)
	ctx := c.Request.Context()

	if err := h.payments.PurgeUser(ctx, uid); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.users.Delete(ctx, uid); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.ClearSessionCookies(c, h.cfg.Cookie)
	utils.OKResponse(c, "account deleted")
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,password"`
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	uid := middleware.CurrentUID(c)
	if err := h.users.ChangePassword(c.Request.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.OKResponse(c, "password changed")
}

type generateAPIKeyRequest struct {
	Live bool `json:"live"`
}

// GenerateAPIKey mints a new key. The plaintext appears in this
// response only.
func (h *UserHandler) GenerateAPIKey(c *gin.Context) {
	var req generateAPIKeyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	uid := middleware.CurrentUID(c)
	key, err := h.users.GenerateAPIKey(c.Request.Context(), uid, req.Live)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "api key generated", gin.H{"api_key": key})
}

func (h *UserHandler) RevokeAPIKey(c *gin.Context) {
	uid := middleware.CurrentUID(c)
	if err := h.users.RevokeAPIKey(c.Request.Context(), uid); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.OKResponse(c, "api key revoked")
}

type setDataRequest struct {
	Key   string          `json:"key" validate:"required,max=128"`
	Value json.RawMessage `json:"value" validate:"required"`
}

// GetData returns one entry when ?key= is given, or every user-editable
// entry otherwise.
func (h *UserHandler) GetData(c *gin.Context) {
	uid := middleware.CurrentUID(c)
	ctx := c.Request.Context()

	if key := c.Query("key"); key != "" {
		value, err := h.users.GetData(ctx, uid, key)
		if err != nil {
			utils.ErrorResponseWithError(c, err)
			return
		}
		utils.SuccessResponse(c, http.StatusOK, "", gin.H{key: json.RawMessage(value)})
		return
	}

	entries, err := h.users.ListData(ctx, uid, false)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", rawEntries(entries))
}

// GetProtectedData lists the system-written entries. Read-only for the
// user.
func (h *UserHandler) GetProtectedData(c *gin.Context) {
	uid := middleware.CurrentUID(c)
	entries, err := h.users.ListData(c.Request.Context(), uid, true)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", rawEntries(entries))
}

func (h *UserHandler) SetData(c *gin.Context) {
	var req setDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	uid := middleware.CurrentUID(c)
	if err := h.users.SetData(c.Request.Context(), uid, req.Key, req.Value); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.OKResponse(c, "data saved")
}

func (h *UserHandler) DeleteData(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "key is required")
		return
	}

	uid := middleware.CurrentUID(c)
	if err := h.users.DeleteData(c.Request.Context(), uid, key); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.OKResponse(c, "data deleted")
}

func rawEntries(entries map[string][]byte) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(entries))
	for k, v := range entries {
		out[k] = json.RawMessage(v)
	}
	return out
}
