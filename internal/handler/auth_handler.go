package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/afrocoder16/mkc-songbook/internal/apperror"
	"github.com/afrocoder16/mkc-songbook/internal/service"
)

// AuthHandler handles the authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SignupRequest starts the registration flow. Field-level validation lives in
// the service so failures come back with per-field messages.
type SignupRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
}

// VerifyRequest carries an email and the code it received.
type VerifyRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
	Code  int    `json:"code" form:"code" validate:"required"`
}

// LoginRequest represents a login attempt.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// ForgotPasswordRequest starts the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
}

// ResetPasswordRequest finishes the reset flow.
type ResetPasswordRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse represents a successful authentication.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	User         interface{} `json:"user,omitempty"`
}

// Signup godoc
// @Summary Start registration and send a verification code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Registration data"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ClientFault("Invalid request body.")
	}

	if err := h.authService.Signup(c.Request().Context(), req.Username, req.Password, req.Name, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "A verification code has been sent to your email.",
	})
}

// VerifyEmail godoc
// @Summary Verify the signup code sent to an email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Email and code"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ClientFault("Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return apperror.ClientFault("Email and verification code are required.")
	}

	if err := h.authService.VerifySignup(c.Request().Context(), req.Email, req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Email verified.",
	})
}

// CreatePassword godoc
// @Summary Finalize registration after email verification
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Registration data with the chosen password"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /auth/create-password [post]
func (h *AuthHandler) CreatePassword(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ClientFault("Invalid request body.")
	}

	user, err := h.authService.CreatePassword(c.Request().Context(), req.Username, req.Password, req.Name, req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Account created.",
		"user":    user,
	})
}

// Login godoc
// @Summary Login with username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ClientFault("Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return apperror.ClientFault("Username and password are required.")
	}

	accessToken, refreshToken, user, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

// Refresh godoc
// @Summary Refresh the access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ClientFault("Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return apperror.ClientFault("Refresh token is required.")
	}

	accessToken, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuthResponse{AccessToken: accessToken})
}

// Logout godoc
// @Summary Invalidate the refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ClientFault("Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return apperror.ClientFault("Refresh token is required.")
	}

	if err := h.authService.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Logged out successfully.",
	})
}

// ForgotPassword godoc
// @Summary Send a password reset code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ClientFault("Invalid request body.")
	}

	if err := h.authService.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "A reset code has been sent to your email.",
	})
}

// VerifyReset godoc
// @Summary Verify the reset code sent to an email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Email and code"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /auth/verify-reset [post]
func (h *AuthHandler) VerifyReset(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ClientFault("Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return apperror.ClientFault("Email and verification code are required.")
	}

	if err := h.authService.VerifyReset(c.Request().Context(), req.Email, req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Email verified.",
	})
}

// ResetPassword godoc
// @Summary Set a new password after reset verification
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Email and new password"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ClientFault("Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return apperror.ClientFault("Email is required.")
	}

	if err := h.authService.ResetPassword(c.Request().Context(), req.Email, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Password updated. You can now log in.",
	})
}
