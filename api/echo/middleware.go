package echo

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	autherrors "github.com/coinkeep/finauth/errors"
	"github.com/coinkeep/finauth/services"
)

// AuthUserIDKey is the context key under which RequireAuth stores the
// authenticated user id.
const AuthUserIDKey = "auth-user-id"

// UserID returns the authenticated user id set by RequireAuth, or "".
func UserID(c echo.Context) string {
	userID, _ := c.Get(AuthUserIDKey).(string)
	return userID
}

// extractBearerToken extracts the token from the Authorization header.
func extractBearerToken(authHeader string) (string, error) {
	const prefix = "Bearer "
	if strings.HasPrefix(authHeader, prefix) {
		return strings.TrimPrefix(authHeader, prefix), nil
	}
	return "", errors.New("invalid bearer token")
}

// RequireAuth validates the bearer token on every protected request and puts
// the subject user id on the request context. No I/O happens here beyond
// reading the process-wide verification key.
func RequireAuth(tokenService *services.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tp := otel.GetTracerProvider()
			ctx, span := tp.Tracer("").Start(c.Request().Context(), "BearerAuthMiddleware")
			defer span.End()

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized,
					autherrors.NewInvalidToken("Missing Authorization header"))
			}

			rawToken, err := extractBearerToken(authHeader)
			if err != nil {
				span.RecordError(err)

				return c.JSON(http.StatusUnauthorized,
					autherrors.NewInvalidToken("Invalid Authorization header"))
			}

			userID, err := tokenService.Validate(rawToken)
			if err != nil {
				log.Debug().Ctx(ctx).Err(err).Msg("Bearer token rejected")
				span.RecordError(err)

				return c.JSON(http.StatusUnauthorized, autherrors.ToOAuth2Error(err))
			}

			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(AuthUserIDKey, userID)

			return next(c)
		}
	}
}
