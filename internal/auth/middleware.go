package auth

import (
	"slices"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/afrocoder16/mkc-songbook/internal/apperror"
)

const identityContextKey = "identity"

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID uint
	Email  string
	Role   string
}

// ResolveIdentity eagerly resolves the bearer credential on every request and
// attaches the Identity to the echo context. A missing or invalid credential
// leaves the request unauthenticated rather than rejecting it; authorization
// happens separately in RoleBasedAuthorization.
func ResolveIdentity(jwtService *JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContinueOnIgnoredError: true,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return jwtService.ValidateToken(auth)
		},
		SuccessHandler: func(c echo.Context) {
			if claims, ok := c.Get("user").(*Claims); ok {
				c.Set(identityContextKey, &Identity{
					UserID: claims.UserID,
					Email:  claims.Email,
					Role:   claims.Role,
				})
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return nil
		},
	})
}

// IdentityFrom returns the resolved identity, or nil for anonymous requests.
func IdentityFrom(c echo.Context) *Identity {
	identity, _ := c.Get(identityContextKey).(*Identity)
	return identity
}

// Authorize is the pure authorization predicate: unauthorized without an
// identity, forbidden when the role is not among the required ones.
func Authorize(identity *Identity, roles ...string) error {
	if identity == nil {
		return apperror.Unauthorized("You must be logged in to access this resource.")
	}
	if !slices.Contains(roles, identity.Role) {
		return apperror.Forbidden("You are not authorized to access this resource.")
	}
	return nil
}

// RoleBasedAuthorization gates a route group to the given roles.
func RoleBasedAuthorization(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := Authorize(IdentityFrom(c), roles...); err != nil {
				return err
			}
			return next(c)
		}
	}
}
