package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"maclink/internal/apperrors"
	"maclink/internal/common"
	"maclink/internal/config"
	"maclink/internal/services"
)

// ClaimsContextKey is where the verified claims are stored on echo.Context.
const ClaimsContextKey = "claims"

// TokenValidator is the part of AuthService the middleware depends on.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*services.TokenClaims, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// JWTAuth guards a route group. Tokens are verified with the shared HS256
// secret unless auth.jwks_url points at an identity provider, in which case
// keys are fetched and refreshed from its JWKS endpoint.
type JWTAuth struct {
	validator TokenValidator
	jwks      *keyfunc.JWKS
	cfg       config.AuthConfig
	logger    *zap.Logger
}

func NewJWTAuth(validator TokenValidator, cfg config.AuthConfig, logger *zap.Logger) (*JWTAuth, error) {
	a := &JWTAuth{validator: validator, cfg: cfg, logger: logger}
	if cfg.JWKSURL != "" {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				logger.Warn("jwks refresh failed", zap.Error(err))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("load jwks: %w", err)
		}
		a.jwks = jwks
	}
	return a, nil
}

// Close stops the background JWKS refresh.
func (a *JWTAuth) Close() {
	if a.jwks != nil {
		a.jwks.EndBackground()
	}
}

func (a *JWTAuth) Middleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: ClaimsContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			claims, err := a.parse(c, auth)
			if err != nil {
				return nil, err
			}
			id, err := primitive.ObjectIDFromHex(claims.AccountID)
			if err != nil {
				return nil, apperrors.Unauthorized("Invalid or expired token")
			}
			c.SetRequest(c.Request().WithContext(common.WithAccountID(c.Request().Context(), id)))
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var unauthorized *apperrors.UnauthorizedError
			if errors.As(err, &unauthorized) {
				return unauthorized
			}
			if !hasBearerToken(c) {
				return apperrors.Unauthorized("Missing or malformed token")
			}
			return apperrors.Unauthorized("Invalid or expired token")
		},
	})
}

func (a *JWTAuth) parse(c echo.Context, auth string) (*services.TokenClaims, error) {
	ctx := c.Request().Context()
	if a.jwks == nil {
		return a.validator.ValidateToken(ctx, auth)
	}

	claims := &services.TokenClaims{}
	opts := []jwt.ParserOption{jwt.WithAudience(services.TokenAudience)}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(auth, claims, a.jwks.Keyfunc, opts...)
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}
	if claims.AccountID == "" {
		claims.AccountID = claims.Subject
	}
	revoked, err := a.validator.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperrors.Unauthorized("Token has been revoked")
	}
	return claims, nil
}

// GetClaims returns the verified token claims of the current request.
func GetClaims(c echo.Context) (*services.TokenClaims, bool) {
	claims, ok := c.Get(ClaimsContextKey).(*services.TokenClaims)
	return claims, ok
}

// AccountID returns the authenticated account or a 401.
func AccountID(c echo.Context) (primitive.ObjectID, error) {
	id, ok := common.GetAccountIDFromContext(c.Request().Context())
	if !ok {
		return primitive.NilObjectID, apperrors.Unauthorized("User not authenticated")
	}
	return id, nil
}

func hasBearerToken(c echo.Context) bool {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	const scheme = "Bearer "
	return len(auth) > len(scheme) && strings.EqualFold(auth[:len(scheme)], scheme)
}
