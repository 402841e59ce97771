package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"maclink/internal/apperrors"
	"maclink/internal/common"
	"maclink/internal/middleware"
	"maclink/internal/models"
	"maclink/internal/services"
)

// UserHandlers manages the portal users of a business.
type UserHandlers struct {
	users  services.UserService
	logger *zap.Logger
}

func NewUserHandlers(users services.UserService, logger *zap.Logger) *UserHandlers {
	return &UserHandlers{users: users, logger: logger}
}

type CreateUserRequest struct {
	FullName     string         `json:"fullName" validate:"required,min=2,max=100,fullname"`
	Username     string         `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email        string         `json:"email" validate:"required,email"`
	Phone        string         `json:"phone" validate:"omitempty,e164"`
	Password     string         `json:"password" validate:"required,min=8"`
	CustomFields map[string]any `json:"customFields"`
}

type UpdateUserRequest struct {
	FullName     *string        `json:"fullName" validate:"omitempty,min=2,max=100,fullname"`
	Email        *string        `json:"email" validate:"omitempty,email"`
	Phone        *string        `json:"phone" validate:"omitempty,e164"`
	Password     *string        `json:"password" validate:"omitempty,min=8"`
	Verified     *bool          `json:"verified"`
	CustomFields map[string]any `json:"customFields"`
}

type DeviceRequest struct {
	MacAddress string `json:"macAddress" validate:"required,mac"`
	Name       string `json:"name" validate:"omitempty,max=50"`
}

func (h *UserHandlers) CreateUser(c echo.Context) error {
	business := middleware.GetBusiness(c)
	var req CreateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	total, err := h.users.CountDocuments(ctx, bson.M{"business._id": business.ID})
	if err != nil {
		return err
	}
	if business.Settings.MaxUsers > 0 && total >= int64(business.Settings.MaxUsers) {
		return apperrors.BadRequest("User limit reached for this business", 400, nil)
	}

	username := strings.ToLower(req.Username)
	taken, err := h.users.CountDocuments(ctx, bson.M{"business._id": business.ID, "username": username})
	if err != nil {
		return err
	}
	if taken > 0 {
		return apperrors.Field("username", "Username already exists")
	}

	password, err := hashSecret(req.Password)
	if err != nil {
		return err
	}
	user := &models.User{
		Business:     business.Ref(),
		FullName:     strings.TrimSpace(req.FullName),
		Username:     username,
		Email:        services.NormalizeEmail(req.Email),
		Phone:        req.Phone,
		Password:     password,
		Devices:      []models.Device{},
		CustomFields: req.CustomFields,
	}
	user, err = h.users.Create(ctx, user)
	if err != nil {
		return err
	}
	return created(c, user)
}

func (h *UserHandlers) ListUsers(c echo.Context) error {
	business := middleware.GetBusiness(c)
	var q ListQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	sort, err := q.sort("fullName", "username")
	if err != nil {
		return err
	}
	filter := bson.M{"business._id": business.ID}
	if q.Status != "" {
		filter["currentPlan.subscription.status"] = q.Status
	}
	page, err := h.users.FindManyByFilterPagination(c.Request().Context(), filter, q.pageOptions(), sort)
	if err != nil {
		return err
	}
	return okPage(c, page)
}

func (h *UserHandlers) filter(c echo.Context) (bson.M, error) {
	id, err := common.ParseObjectID(c.Param("userId"), "userId")
	if err != nil {
		return nil, err
	}
	return bson.M{"_id": id, "business._id": middleware.GetBusiness(c).ID}, nil
}

func (h *UserHandlers) GetUser(c echo.Context) error {
	filter, err := h.filter(c)
	if err != nil {
		return err
	}
	user, err := h.users.FindOneByFilter(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.NotFound("User")
	}
	return ok(c, user)
}

func (h *UserHandlers) UpdateUser(c echo.Context) error {
	filter, err := h.filter(c)
	if err != nil {
		return err
	}
	var req UpdateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	set := bson.M{}
	if req.FullName != nil {
		set["fullName"] = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		set["email"] = services.NormalizeEmail(*req.Email)
	}
	if req.Phone != nil {
		set["phone"] = *req.Phone
	}
	if req.Verified != nil {
		set["verified"] = *req.Verified
	}
	if req.Password != nil {
		password, err := hashSecret(*req.Password)
		if err != nil {
			return err
		}
		set["password"] = password
	}
	for k, v := range req.CustomFields {
		set["customFields."+k] = v
	}

	user, err := h.users.UpdateOneByFilter(c.Request().Context(), filter, set, nil, nil)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.NotFound("User")
	}
	return ok(c, user)
}

func (h *UserHandlers) DeleteUser(c echo.Context) error {
	filter, err := h.filter(c)
	if err != nil {
		return err
	}
	user, err := h.users.Delete(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.NotFound("User")
	}
	return ok(c, nil)
}

// AddDevice registers a MAC address for the user. The update filter requires
// the slot after the last allowed device to be empty, so concurrent requests
// cannot exceed the business limit.
func (h *UserHandlers) AddDevice(c echo.Context) error {
	business := middleware.GetBusiness(c)
	filter, err := h.filter(c)
	if err != nil {
		return err
	}
	var req DeviceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	mac := strings.ToUpper(strings.ReplaceAll(req.MacAddress, "-", ":"))
	ctx := c.Request().Context()

	user, err := h.users.FindOneByFilter(ctx, filter)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.NotFound("User")
	}
	if user.HasDevice(mac) {
		return apperrors.Field("macAddress", "Device already registered")
	}
	limit := business.Settings.MaxDevicesPerUser
	if len(user.Devices) >= limit {
		return apperrors.BadRequest(fmt.Sprintf("Maximum of %d devices allowed per user", limit), 400, nil)
	}

	filter["devices.macAddress"] = bson.M{"$ne": mac}
	filter[fmt.Sprintf("devices.%d", limit-1)] = bson.M{"$exists": false}
	device := models.Device{MacAddress: mac, Name: req.Name, LastSeen: time.Now().UTC()}
	updated, err := h.users.UpdateOneByFilter(ctx, filter, nil, nil, bson.M{"devices": device})
	if err != nil {
		return err
	}
	if updated == nil {
		return apperrors.BadRequest(fmt.Sprintf("Maximum of %d devices allowed per user", limit), 400, nil)
	}

	h.logger.Info("device registered",
		zap.String("user_id", updated.ID.Hex()),
		zap.String("mac", mac))
	return created(c, updated)
}

func (h *UserHandlers) RemoveDevice(c echo.Context) error {
	filter, err := h.filter(c)
	if err != nil {
		return err
	}
	mac := strings.ToUpper(strings.ReplaceAll(c.Param("mac"), "-", ":"))
	ctx := c.Request().Context()

	filter["devices.macAddress"] = mac
	updated, err := h.users.PullByFilter(ctx, filter, bson.M{"devices": bson.M{"macAddress": mac}})
	if err != nil {
		return err
	}
	if updated == nil {
		return apperrors.NotFound("Device")
	}
	return ok(c, updated)
}
