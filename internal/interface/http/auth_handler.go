package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/breadjournal/server/internal/application"
	"github.com/breadjournal/server/internal/domain/entity"
	"github.com/breadjournal/server/pkg/response"
	"github.com/breadjournal/server/pkg/validation"
)

type AuthHandler struct {
	Svc    *application.AuthService
	Logger *logrus.Logger
}

func NewAuthHandler(svc *application.AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger}
}

type signupRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,pwd"`
	DisplayName string `json:"display_name"`
}

type verifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

type resendRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Purpose string `json:"purpose" binding:"required,oneof=email_verification password_reset"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"` // username or email
	Password string `json:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,pwd"`
}

// fail translates service errors into the API's outcome shapes. Anything
// unrecognized is an infrastructure fault: logged, surfaced as a generic 500.
func (h *AuthHandler) fail(c *gin.Context, err error) {
	var nv *application.NotVerifiedError
	switch {
	case errors.Is(err, application.ErrUsernameTaken),
		errors.Is(err, application.ErrEmailTaken):
		response.Error[any](c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, application.ErrInvalidCode):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, application.ErrUserNotFound):
		response.Error[any](c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, application.ErrInvalidCredentials):
		response.Error[any](c, http.StatusUnauthorized, err.Error(), nil)
	case errors.As(err, &nv):
		response.Error[any](c, http.StatusUnauthorized, nv.Error(), gin.H{"pending": true, "email": nv.Email})
	case errors.Is(err, application.ErrThrottled):
		response.Error[any](c, http.StatusTooManyRequests, err.Error(), nil)
	case errors.Is(err, application.ErrInvalidPurpose),
		errors.Is(err, application.ErrWeakPassword),
		errors.Is(err, application.ErrMissingFields):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	default:
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("path", c.FullPath()).Error("auth operation failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
	}
}

// Signup POST /api/auth/signup
// Creates an unverified account and mails a verification code. No token yet.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	err := h.Svc.Signup(c.Request.Context(), application.SignupInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"pending": true, "email": req.Email}, "verification code sent")
}

// Verify POST /api/auth/verify
// Consumes the emailed code, marks the account verified, returns the first session.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"token": res.Token, "user": res.User}, "email verified successfully")
}

// Resend POST /api/auth/resend
// Issues a fresh code unless throttled. Never reveals account existence.
func (h *AuthHandler) Resend(c *gin.Context) {
	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.Resend(c.Request.Context(), req.Email, entity.Purpose(req.Purpose)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"ok": true}, "code sent")
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"token": res.Token, "user": res.User}, "login successful")
}

// ForgotPassword POST /api/auth/forgot-password
// Always answers the same way whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"ok": true}, "if the email exists, a reset code has been sent")
}

// ResetPassword POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"ok": true}, "password reset successfully")
}

// Me GET /api/auth/me (auth required)
func (h *AuthHandler) Me(c *gin.Context) {
	uid := c.GetString("userID")
	profile, err := h.Svc.Profile(uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": profile}, "current user")
}
