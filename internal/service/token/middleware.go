package token

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/hamropasal/storefront/internal/models"
)

func (t *Service) applyRotation(c echo.Context, newAccess, newRefresh string) {
	c.SetCookie(CreateCookie("accessToken", newAccess, "/", time.Now().Add(AccessTTL)))
	c.SetCookie(CreateCookie("refreshToken", newRefresh, "/", time.Now().Add(RefreshTTL)))

	tok, _ := jwt.Parse(newAccess, func(j *jwt.Token) (interface{}, error) { return t.JWTSecret, nil })
	setUserContext(c, tok.Claims.(jwt.MapClaims))
}

func (t *Service) AutoRefreshMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		newAccess, newRefresh, _, err := t.CheckCookie(c)
		if err != nil {
			return err
		}

		if newRefresh != "" {
			t.applyRotation(c, newAccess, newRefresh)
		}
		return next(c)
	}
}

func (t *Service) AutoRefreshMiddlewareAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		newAccess, newRefresh, role, err := t.CheckCookie(c)
		if err != nil {
			return err
		}

		if role != models.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}

		if newRefresh != "" {
			t.applyRotation(c, newAccess, newRefresh)
		}
		return next(c)
	}
}
