package handlers

import (
	"strings"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"maclink/internal/apperrors"
	"maclink/internal/common"
	"maclink/internal/middleware"
	"maclink/internal/models"
	"maclink/internal/services"
)

type PlanHandlers struct {
	plans services.SubscriptionPlanService
}

func NewPlanHandlers(plans services.SubscriptionPlanService) *PlanHandlers {
	return &PlanHandlers{plans: plans}
}

type CreatePlanRequest struct {
	Name           string   `json:"name" validate:"required,min=2,max=100"`
	Description    string   `json:"description" validate:"omitempty,max=500"`
	Amount         float64  `json:"amount" validate:"gte=0"`
	Currency       string   `json:"currency" validate:"omitempty,len=3,alpha"`
	Duration       int      `json:"duration" validate:"required,min=1"`
	Datacap        *float64 `json:"datacap" validate:"omitempty,gt=0"`
	SpeedLimit     *float64 `json:"speedLimit" validate:"omitempty,gt=0"`
	DeviceLimit    *int     `json:"deviceLimit" validate:"omitempty,min=1"`
	CanBePaused    bool     `json:"canBePaused"`
	TotalPauseTime int      `json:"totalPauseTime" validate:"gte=0"`
}

type UpdatePlanRequest struct {
	Name           *string  `json:"name" validate:"omitempty,min=2,max=100"`
	Description    *string  `json:"description" validate:"omitempty,max=500"`
	Amount         *float64 `json:"amount" validate:"omitempty,gte=0"`
	Duration       *int     `json:"duration" validate:"omitempty,min=1"`
	Datacap        *float64 `json:"datacap" validate:"omitempty,gt=0"`
	SpeedLimit     *float64 `json:"speedLimit" validate:"omitempty,gt=0"`
	DeviceLimit    *int     `json:"deviceLimit" validate:"omitempty,min=1"`
	CanBePaused    *bool    `json:"canBePaused"`
	TotalPauseTime *int     `json:"totalPauseTime" validate:"omitempty,gte=0"`
}

func (h *PlanHandlers) CreatePlan(c echo.Context) error {
	business := middleware.GetBusiness(c)
	var req CreatePlanRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	plan := &models.SubscriptionPlan{
		Business:       business.Ref(),
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		Amount:         req.Amount,
		Currency:       strings.ToUpper(req.Currency),
		Duration:       req.Duration,
		Datacap:        req.Datacap,
		SpeedLimit:     req.SpeedLimit,
		DeviceLimit:    req.DeviceLimit,
		CanBePaused:    req.CanBePaused,
		TotalPauseTime: req.TotalPauseTime,
	}
	if plan.Currency == "" {
		plan.Currency = models.DefaultCurrency
	}

	plan, err := h.plans.Create(c.Request().Context(), plan)
	if err != nil {
		return err
	}
	return created(c, plan)
}

func (h *PlanHandlers) ListPlans(c echo.Context) error {
	business := middleware.GetBusiness(c)
	var q ListQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	sort, err := q.sort("name", "amount", "duration")
	if err != nil {
		return err
	}
	page, err := h.plans.FindManyByFilterPagination(c.Request().Context(),
		bson.M{"business._id": business.ID}, q.pageOptions(), sort)
	if err != nil {
		return err
	}
	return okPage(c, page)
}

func (h *PlanHandlers) filter(c echo.Context) (bson.M, error) {
	id, err := common.ParseObjectID(c.Param("planId"), "planId")
	if err != nil {
		return nil, err
	}
	return bson.M{"_id": id, "business._id": middleware.GetBusiness(c).ID}, nil
}

func (h *PlanHandlers) GetPlan(c echo.Context) error {
	filter, err := h.filter(c)
	if err != nil {
		return err
	}
	plan, err := h.plans.FindOneByFilter(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if plan == nil {
		return apperrors.NotFound("Subscription plan")
	}
	return ok(c, plan)
}

func (h *PlanHandlers) UpdatePlan(c echo.Context) error {
	filter, err := h.filter(c)
	if err != nil {
		return err
	}
	var req UpdatePlanRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	set := bson.M{}
	if req.Name != nil {
		set["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Amount != nil {
		set["amount"] = *req.Amount
	}
	if req.Duration != nil {
		set["duration"] = *req.Duration
	}
	if req.Datacap != nil {
		set["datacap"] = *req.Datacap
	}
	if req.SpeedLimit != nil {
		set["speedLimit"] = *req.SpeedLimit
	}
	if req.DeviceLimit != nil {
		set["deviceLimit"] = *req.DeviceLimit
	}
	if req.CanBePaused != nil {
		set["canBePaused"] = *req.CanBePaused
	}
	if req.TotalPauseTime != nil {
		set["totalPauseTime"] = *req.TotalPauseTime
	}

	plan, err := h.plans.UpdateOneByFilter(c.Request().Context(), filter, set, nil, nil)
	if err != nil {
		return err
	}
	if plan == nil {
		return apperrors.NotFound("Subscription plan")
	}
	return ok(c, plan)
}

func (h *PlanHandlers) DeletePlan(c echo.Context) error {
	filter, err := h.filter(c)
	if err != nil {
		return err
	}
	plan, err := h.plans.Delete(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if plan == nil {
		return apperrors.NotFound("Subscription plan")
	}
	return ok(c, nil)
}
