package handlers

import (
	"strings"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"

	"maclink/internal/apperrors"
	"maclink/internal/common"
	"maclink/internal/middleware"
	"maclink/internal/models"
	"maclink/internal/services"
)

type RouterHandlers struct {
	routers services.RouterService
}

func NewRouterHandlers(routers services.RouterService) *RouterHandlers {
	return &RouterHandlers{routers: routers}
}

type RouterConnectionRequest struct {
	Host     string `json:"host" validate:"required,hostname_rfc1123"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=4,max=128"`
}

type CreateRouterRequest struct {
	Type             string                  `json:"type" validate:"omitempty,oneof=mikrotik"`
	Connection       RouterConnectionRequest `json:"connection" validate:"required"`
	PaymentReference string                  `json:"paymentReference" validate:"omitempty,max=128"`
}

type UpdateRouterRequest struct {
	Status     *string                  `json:"status" validate:"omitempty,oneof=online offline maintenance"`
	Connection *RouterConnectionRequest `json:"connection"`
}

func hashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", apperrors.Internal("", err)
	}
	return string(hash), nil
}

func (h *RouterHandlers) CreateRouter(c echo.Context) error {
	business := middleware.GetBusiness(c)
	var req CreateRouterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	password, err := hashSecret(req.Connection.Password)
	if err != nil {
		return err
	}

	router := &models.Router{
		Business: business.Ref(),
		Type:     req.Type,
		Connection: models.RouterConnection{
			Host:     strings.TrimSpace(req.Connection.Host),
			Port:     req.Connection.Port,
			Username: req.Connection.Username,
			Password: password,
		},
		Status:           models.RouterOffline,
		PaymentReference: req.PaymentReference,
	}
	if router.Type == "" {
		router.Type = models.RouterTypeMikrotik
	}

	router, err = h.routers.Create(c.Request().Context(), router)
	if err != nil {
		return err
	}
	return created(c, router)
}

func (h *RouterHandlers) ListRouters(c echo.Context) error {
	business := middleware.GetBusiness(c)
	var q ListQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	sort, err := q.sort("status")
	if err != nil {
		return err
	}
	page, err := h.routers.FindManyByFilterPagination(c.Request().Context(),
		q.filter(bson.M{"business._id": business.ID}), q.pageOptions(), sort)
	if err != nil {
		return err
	}
	return okPage(c, page)
}

func (h *RouterHandlers) filter(c echo.Context) (bson.M, error) {
	id, err := common.ParseObjectID(c.Param("routerId"), "routerId")
	if err != nil {
		return nil, err
	}
	return bson.M{"_id": id, "business._id": middleware.GetBusiness(c).ID}, nil
}

func (h *RouterHandlers) GetRouter(c echo.Context) error {
	filter, err := h.filter(c)
	if err != nil {
		return err
	}
	router, err := h.routers.FindOneByFilter(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if router == nil {
		return apperrors.NotFound("Router")
	}
	return ok(c, router)
}

func (h *RouterHandlers) UpdateRouter(c echo.Context) error {
	filter, err := h.filter(c)
	if err != nil {
		return err
	}
	var req UpdateRouterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	set := bson.M{}
	if req.Status != nil {
		set["status"] = *req.Status
	}
	if conn := req.Connection; conn != nil {
		password, err := hashSecret(conn.Password)
		if err != nil {
			return err
		}
		set["connection"] = models.RouterConnection{
			Host:     strings.TrimSpace(conn.Host),
			Port:     conn.Port,
			Username: conn.Username,
			Password: password,
		}
	}

	router, err := h.routers.UpdateOneByFilter(c.Request().Context(), filter, set, nil, nil)
	if err != nil {
		return err
	}
	if router == nil {
		return apperrors.NotFound("Router")
	}
	return ok(c, router)
}

func (h *RouterHandlers) DeleteRouter(c echo.Context) error {
	filter, err := h.filter(c)
	if err != nil {
		return err
	}
	router, err := h.routers.Delete(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if router == nil {
		return apperrors.NotFound("Router")
	}
	return ok(c, nil)
}
