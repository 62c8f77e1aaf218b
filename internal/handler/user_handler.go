package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/afrocoder16/mkc-songbook/internal/apperror"
	"github.com/afrocoder16/mkc-songbook/internal/auth"
	"github.com/afrocoder16/mkc-songbook/internal/service"
)

// UserHandler handles the authenticated user's profile endpoints.
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Me godoc
// @Summary Get the authenticated user's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} map[string]interface{}
// @Router /user/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	identity := auth.IdentityFrom(c)
	if identity == nil {
		return apperror.Unauthorized("You must be logged in to access this resource.")
	}
	user, err := h.userService.GetProfile(c.Request().Context(), identity.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// SearchHistory godoc
// @Summary Get the authenticated user's recent song searches
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.SearchHistory
// @Failure 401 {object} map[string]interface{}
// @Router /user/me/search-history [get]
func (h *UserHandler) SearchHistory(c echo.Context) error {
	identity := auth.IdentityFrom(c)
	if identity == nil {
		return apperror.Unauthorized("You must be logged in to access this resource.")
	}
	records, err := h.userService.SearchHistory(c.Request().Context(), identity.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}
