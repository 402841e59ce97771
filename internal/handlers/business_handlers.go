package handlers

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"maclink/internal/apperrors"
	"maclink/internal/middleware"
	"maclink/internal/models"
	"maclink/internal/services"
)

// BusinessHandlers manages the businesses owned by the caller.
type BusinessHandlers struct {
	businesses services.BusinessService
	accounts   services.AccountService
	branding   services.BrandingService
	logger     *zap.Logger
}

func NewBusinessHandlers(businesses services.BusinessService, accounts services.AccountService, branding services.BrandingService, logger *zap.Logger) *BusinessHandlers {
	return &BusinessHandlers{businesses: businesses, accounts: accounts, branding: branding, logger: logger}
}

type ColorsRequest struct {
	Primary   string `json:"primary" validate:"omitempty,hexcolor6"`
	Secondary string `json:"secondary" validate:"omitempty,hexcolor6"`
	Accent    string `json:"accent" validate:"omitempty,hexcolor6"`
}

type SettingsRequest struct {
	MaxUsers          int  `json:"maxUsers" validate:"gte=1"`
	ShowLeaderboard   bool `json:"showLeaderboard"`
	ShowCapacity      bool `json:"showCapacity"`
	MaxDevicesPerUser int  `json:"maxDevicesPerUser" validate:"gte=1,lte=20"`
	DefaultBandwidth  int  `json:"defaultBandwidth" validate:"gte=1"`
	FreeTrialLimit    int  `json:"freeTrialLimit" validate:"gte=0"`
}

type PaymentGatewayRequest struct {
	Provider   string  `json:"provider" validate:"omitempty,oneof=paystack maclink"`
	SecretKey  string  `json:"secretKey" validate:"omitempty,max=256"`
	PublicKey  string  `json:"publicKey" validate:"omitempty,max=256"`
	Percentage float64 `json:"percentage" validate:"gte=0,lte=100"`
}

type CreateBusinessRequest struct {
	Name              string                 `json:"name" validate:"required,min=2,max=100"`
	Subdomain         string                 `json:"subdomain" validate:"required,min=3,max=63,subdomain"`
	CustomDomain      string                 `json:"customDomain" validate:"omitempty,fqdn"`
	SubscriptionModel string                 `json:"subscriptionModel" validate:"required,oneof=voucher account"`
	Colors            *ColorsRequest         `json:"colors"`
	Settings          *SettingsRequest       `json:"settings"`
	PaymentGateway    *PaymentGatewayRequest `json:"paymentGateway"`
}

type UpdateBusinessRequest struct {
	Name              *string                `json:"name" validate:"omitempty,min=2,max=100"`
	CustomDomain      *string                `json:"customDomain" validate:"omitempty,fqdn"`
	Status            *string                `json:"status" validate:"omitempty,oneof=draft active suspended"`
	SubscriptionModel *string                `json:"subscriptionModel" validate:"omitempty,oneof=voucher account"`
	Colors            *ColorsRequest         `json:"colors"`
	Settings          *SettingsRequest       `json:"settings"`
	PaymentGateway    *PaymentGatewayRequest `json:"paymentGateway"`
}

func (r *PaymentGatewayRequest) model() *models.PaymentGateway {
	if r == nil {
		return nil
	}
	return &models.PaymentGateway{Provider: r.Provider, SecretKey: r.SecretKey, PublicKey: r.PublicKey, Percentage: r.Percentage}
}

func (r *SettingsRequest) model() models.BusinessSettings {
	return models.BusinessSettings{
		MaxUsers:          r.MaxUsers,
		ShowLeaderboard:   r.ShowLeaderboard,
		ShowCapacity:      r.ShowCapacity,
		MaxDevicesPerUser: r.MaxDevicesPerUser,
		DefaultBandwidth:  r.DefaultBandwidth,
		FreeTrialLimit:    r.FreeTrialLimit,
	}
}

// CreateBusiness registers a business for the caller and links it to the
// account.
func (h *BusinessHandlers) CreateBusiness(c echo.Context) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}
	var req CreateBusinessRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	account, err := h.accounts.FindOneByFilter(ctx, bson.M{"_id": accountID})
	if err != nil {
		return err
	}
	if account == nil {
		return apperrors.NotFound("Account")
	}

	subdomain := strings.ToLower(strings.TrimSpace(req.Subdomain))
	taken, err := h.businesses.CountDocuments(ctx, bson.M{"subdomain": subdomain})
	if err != nil {
		return err
	}
	if taken > 0 {
		return apperrors.Field("subdomain", "Subdomain already exists")
	}

	business := &models.Business{
		Account:           account.Ref(),
		Name:              strings.TrimSpace(req.Name),
		Subdomain:         subdomain,
		CustomDomain:      strings.ToLower(req.CustomDomain),
		SubscriptionModel: req.SubscriptionModel,
		PaymentGateway:    req.PaymentGateway.model(),
	}
	if req.Colors != nil {
		business.Branding.Colors = models.BrandColors(*req.Colors)
	}
	if req.Settings != nil {
		business.Settings = req.Settings.model()
	}
	business.ApplyDefaults(time.Now().UTC())

	business, err = h.businesses.Create(ctx, business)
	if err != nil {
		return err
	}
	if _, err := h.accounts.UpdateOneByFilter(ctx, bson.M{"_id": accountID}, nil, nil, bson.M{"businesses": business.ID}); err != nil {
		return err
	}

	h.logger.Info("business created",
		zap.String("business_id", business.ID.Hex()),
		zap.String("account_id", accountID.Hex()))
	return created(c, business)
}

func (h *BusinessHandlers) ListBusinesses(c echo.Context) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}
	var q ListQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	sort, err := q.sort("name", "subdomain", "status")
	if err != nil {
		return err
	}
	page, err := h.businesses.FindManyByFilterPagination(c.Request().Context(),
		q.filter(bson.M{"account._id": accountID}), q.pageOptions(), sort)
	if err != nil {
		return err
	}
	return okPage(c, page)
}

func (h *BusinessHandlers) GetBusiness(c echo.Context) error {
	return ok(c, middleware.GetBusiness(c))
}

func (h *BusinessHandlers) UpdateBusiness(c echo.Context) error {
	business := middleware.GetBusiness(c)
	var req UpdateBusinessRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	set := bson.M{}
	if req.Name != nil {
		set["name"] = strings.TrimSpace(*req.Name)
	}
	if req.CustomDomain != nil {
		set["customDomain"] = strings.ToLower(*req.CustomDomain)
	}
	if req.Status != nil {
		set["status"] = *req.Status
	}
	if req.SubscriptionModel != nil {
		set["subscriptionModel"] = *req.SubscriptionModel
	}
	if req.Colors != nil {
		for field, value := range map[string]string{"primary": req.Colors.Primary, "secondary": req.Colors.Secondary, "accent": req.Colors.Accent} {
			if value != "" {
				set["branding.colors."+field] = value
			}
		}
	}
	if req.Settings != nil {
		set["settings"] = req.Settings.model()
	}
	if gw := req.PaymentGateway.model(); gw != nil {
		if gw.Provider == "" {
			gw.Provider = models.GatewayMaclink
		}
		set["paymentGateway"] = gw
	}

	updated, err := h.businesses.UpdateOneByFilter(c.Request().Context(), bson.M{"_id": business.ID}, set, nil, nil)
	if err != nil {
		return err
	}
	if updated == nil {
		return apperrors.NotFound("Business")
	}
	return ok(c, updated)
}

// DeleteBusiness soft deletes the business and unlinks it from the account.
func (h *BusinessHandlers) DeleteBusiness(c echo.Context) error {
	business := middleware.GetBusiness(c)
	ctx := c.Request().Context()

	if _, err := h.businesses.Delete(ctx, bson.M{"_id": business.ID}); err != nil {
		return err
	}

	if _, err := h.accounts.PullByFilter(ctx, bson.M{"_id": business.Account.ID}, bson.M{"businesses": business.ID}); err != nil {
		return err
	}
	return ok(c, nil)
}

// UploadAsset stores a logo or flyer sent as multipart field "file".
func (h *BusinessHandlers) UploadAsset(c echo.Context) error {
	business := middleware.GetBusiness(c)
	file, err := c.FormFile("file")
	if err != nil {
		return apperrors.Field("file", "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return apperrors.Field("file", "file could not be read")
	}
	defer src.Close()

	updated, err := h.branding.UploadAsset(c.Request().Context(), business, services.AssetUpload{
		Kind:        c.Param("asset"),
		Alt:         c.FormValue("alt"),
		Filename:    file.Filename,
		ContentType: file.Header.Get(echo.HeaderContentType),
		Size:        file.Size,
		Body:        src,
	})
	if err != nil {
		return err
	}
	return ok(c, updated)
}
