package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/afrocoder16/mkc-songbook/internal/apperror"
	"github.com/afrocoder16/mkc-songbook/internal/auth"
	"github.com/afrocoder16/mkc-songbook/internal/config"
	"github.com/afrocoder16/mkc-songbook/internal/handler"
	"github.com/afrocoder16/mkc-songbook/internal/model"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	jwtService *auth.JWTService,
	authHandler *handler.AuthHandler,
	songHandler *handler.SongHandler,
	albumHandler *handler.AlbumHandler,
	userHandler *handler.UserHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.ClientURLs,
	}))

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.HTTPErrorHandler = newHTTPErrorHandler()

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Identity is resolved eagerly on every API request; role checks happen
	// per route.
	api := e.Group("/api", auth.ResolveIdentity(jwtService))

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/verify-email", authHandler.VerifyEmail)
	authGroup.POST("/create-password", authHandler.CreatePassword)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.POST("/forgot-password", authHandler.ForgotPassword)
	authGroup.POST("/verify-reset", authHandler.VerifyReset)
	authGroup.POST("/reset-password", authHandler.ResetPassword)

	adminOnly := auth.RoleBasedAuthorization(model.RoleAdmin)

	songs := api.Group("/song")
	songs.GET("", songHandler.Search)
	songs.GET("/:id", songHandler.Get)
	songs.GET("/:id/audio", songHandler.GetAudio)
	songs.POST("", songHandler.Create, adminOnly)
	songs.PUT("/:id", songHandler.Update, adminOnly)
	songs.DELETE("/:id", songHandler.Delete, adminOnly)

	albums := api.Group("/album")
	albums.GET("", albumHandler.List)
	albums.GET("/:id", albumHandler.Get)
	albums.GET("/:id/cover", albumHandler.GetCover)
	albums.POST("", albumHandler.Create, adminOnly)
	albums.PUT("/:id", albumHandler.Update, adminOnly)
	albums.DELETE("/:id", albumHandler.Delete, adminOnly)

	users := api.Group("/user")
	users.GET("/me", userHandler.Me)
	users.GET("/me/search-history", userHandler.SearchHistory)
}

// newHTTPErrorHandler renders every failure as a {message} JSON body.
// Server faults are logged with their cause and replaced with the generic
// message so internal detail never reaches the client.
func newHTTPErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var appErr *apperror.Error
		if !errors.As(err, &appErr) {
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				appErr = &apperror.Error{
					StatusCode: httpErr.Code,
					Message:    fmt.Sprint(httpErr.Message),
				}
			} else {
				appErr = apperror.Unexpected(err)
			}
		}

		if appErr.StatusCode >= http.StatusInternalServerError {
			if appErr.Internal != nil {
				c.Logger().Error(appErr.Internal)
			} else {
				c.Logger().Error(err)
			}
			appErr = &apperror.Error{
				StatusCode: appErr.StatusCode,
				Message:    apperror.GenericMessage,
			}
		}

		if jsonErr := c.JSON(appErr.StatusCode, appErr.Payload()); jsonErr != nil {
			c.Logger().Error(jsonErr)
		}
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
