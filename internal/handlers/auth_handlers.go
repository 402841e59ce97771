package handlers

import (
	"strings"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"maclink/internal/apperrors"
	"maclink/internal/middleware"
	"maclink/internal/services"
)

// AuthHandlers handles signup, login and the caller's own account.
type AuthHandlers struct {
	authService services.AuthService
	accounts    services.AccountService
}

func NewAuthHandlers(authService services.AuthService, accounts services.AccountService) *AuthHandlers {
	return &AuthHandlers{authService: authService, accounts: accounts}
}

// Signup creates an account and returns it with an access token.
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req services.SignupInput
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.authService.Signup(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return created(c, res)
}

func (h *AuthHandlers) Login(c echo.Context) error {
	var req services.LoginInput
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.authService.Login(c.Request().Context(), req, c.RealIP())
	if err != nil {
		return err
	}
	return ok(c, res)
}

// Logout revokes the presented token.
func (h *AuthHandlers) Logout(c echo.Context) error {
	claims, found := middleware.GetClaims(c)
	if !found {
		return apperrors.Unauthorized("User not authenticated")
	}
	if err := h.authService.RevokeToken(c.Request().Context(), claims); err != nil {
		return err
	}
	return ok(c, nil)
}

func (h *AuthHandlers) Me(c echo.Context) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}
	account, err := h.accounts.FindOneByFilter(c.Request().Context(), bson.M{"_id": accountID})
	if err != nil {
		return err
	}
	if account == nil {
		return apperrors.NotFound("Account")
	}
	return ok(c, account)
}

type UpdateProfileRequest struct {
	FullName *string `json:"fullName" validate:"omitempty,min=2,max=100,fullname"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

// UpdateMe changes the caller's name or email. Emails stay unique across
// accounts.
func (h *AuthHandlers) UpdateMe(c echo.Context) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}
	var req UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	set := bson.M{}
	if req.FullName != nil {
		set["fullName"] = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		email := services.NormalizeEmail(*req.Email)
		taken, err := h.accounts.FindOneByFilter(ctx, bson.M{"email": email, "_id": bson.M{"$ne": accountID}})
		if err != nil {
			return err
		}
		if taken != nil {
			return apperrors.Field("email", "Email already exists")
		}
		set["email"] = email
	}

	account, err := h.accounts.UpdateOneByFilter(ctx, bson.M{"_id": accountID}, set, nil, nil)
	if err != nil {
		return err
	}
	if account == nil {
		return apperrors.NotFound("Account")
	}
	return ok(c, account)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

func (h *AuthHandlers) ChangePassword(c echo.Context) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}
	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.authService.ChangePassword(c.Request().Context(), accountID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return ok(c, nil)
}
