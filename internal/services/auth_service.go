package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"maclink/internal/apperrors"
	"maclink/internal/caching"
	"maclink/internal/config"
	"maclink/internal/models"
)

// Audience carried by every access token.
const TokenAudience = "maclink-api"

var errInvalidCredentials = apperrors.Unauthorized("Invalid email or password")

// AuthService handles account signup, login and JWT management.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput, ip string) (*AuthResult, error)
	ChangePassword(ctx context.Context, accountID primitive.ObjectID, current, next string) error
	GenerateToken(account *models.Account) (string, time.Time, error)
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
	RevokeToken(ctx context.Context, claims *TokenClaims) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

type SignupInput struct {
	FullName        string `json:"fullName" validate:"required,min=2,max=100,fullname"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	Account     *models.Account `json:"account"`
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
	ExpiresAt   time.Time       `json:"expiresAt"`
}

type authService struct {
	accounts AccountService
	limiter  LoginLimiter
	cacheSvc caching.CacheService
	cfg      config.AuthConfig
	logger   *zap.Logger
}

func NewAuthService(accounts AccountService, limiter LoginLimiter, cacheSvc caching.CacheService, cfg config.AuthConfig, logger *zap.Logger) AuthService {
	return &authService{
		accounts: accounts,
		limiter:  limiter,
		cacheSvc: cacheSvc,
		cfg:      cfg,
		logger:   logger,
	}
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)
	existing, err := s.accounts.FindOneByFilter(ctx, bson.M{"email": email})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Field("email", "Email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		FullName:   strings.TrimSpace(in.FullName),
		Email:      email,
		Password:   string(hash),
		Businesses: []primitive.ObjectID{},
		Status:     models.AccountActive,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account created", zap.String("account_id", account.ID.Hex()))
	return s.result(account)
}

func (s *authService) Login(ctx context.Context, in LoginInput, ip string) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)
	if err := s.limiter.Check(ctx, email, ip); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindOneWithHidden(ctx, bson.M{"email": email})
	if err != nil {
		return nil, err
	}
	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(in.Password)) != nil {
		s.limiter.RegisterFailure(ctx, email, ip)
		return nil, errInvalidCredentials
	}
	if account.Status != models.AccountActive {
		return nil, apperrors.Forbidden("Account is " + account.Status)
	}

	s.limiter.RegisterSuccess(ctx, email, ip)
	return s.result(account)
}

func (s *authService) ChangePassword(ctx context.Context, accountID primitive.ObjectID, current, next string) error {
	account, err := s.accounts.FindOneWithHidden(ctx, bson.M{"_id": accountID})
	if err != nil {
		return err
	}
	if account == nil {
		return apperrors.NotFound("Account")
	}
	if bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(current)) != nil {
		return apperrors.Field("currentPassword", "Current password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.accounts.UpdateOneByFilter(ctx, bson.M{"_id": accountID}, bson.M{"password": string(hash)}, nil, nil)
	return err
}

func (s *authService) result(account *models.Account) (*AuthResult, error) {
	token, expiresAt, err := s.GenerateToken(account)
	if err != nil {
		return nil, err
	}
	account.Password = ""
	return &AuthResult{Account: account, AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// GenerateToken signs an HS256 access token for account.
func (s *authService) GenerateToken(account *models.Account) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.TokenTTL)
	claims := TokenClaims{
		AccountID: account.ID.Hex(),
		Email:     account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   account.ID.Hex(),
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *authService) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(TokenAudience),
	)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}
	revoked, err := s.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperrors.Unauthorized("Token has been revoked")
	}
	return claims, nil
}

func revokedKey(tokenID string) string { return "revoked-token:" + tokenID }

// RevokeToken denylists the token until it would have expired anyway.
func (s *authService) RevokeToken(ctx context.Context, claims *TokenClaims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return s.cacheSvc.Set(ctx, revokedKey(claims.ID), "1", ttl)
}

func (s *authService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	_, err := s.cacheSvc.Get(ctx, revokedKey(tokenID))
	if errors.Is(err, caching.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		s.logger.Warn("revocation lookup failed", zap.Error(err))
		return false, nil
	}
	return true, nil
}
