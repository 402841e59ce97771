package handlers

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"maclink/internal/common"
	"maclink/internal/middleware"
	"maclink/internal/services"
)

// SubscriptionHandlers sells plans to portal users and voucher buyers.
type SubscriptionHandlers struct {
	subscriptions services.SubscriptionService
	userSubs      services.UserSubscriptionService
	vouchers      services.VoucherSubscriptionService
}

func NewSubscriptionHandlers(subscriptions services.SubscriptionService, userSubs services.UserSubscriptionService, vouchers services.VoucherSubscriptionService) *SubscriptionHandlers {
	return &SubscriptionHandlers{subscriptions: subscriptions, userSubs: userSubs, vouchers: vouchers}
}

func (h *SubscriptionHandlers) Subscribe(c echo.Context) error {
	business := middleware.GetBusiness(c)
	userID, err := common.ParseObjectID(c.Param("userId"), "userId")
	if err != nil {
		return err
	}
	var req services.SubscribeInput
	if err := bind(c, &req); err != nil {
		return err
	}
	sub, err := h.subscriptions.Subscribe(c.Request().Context(), business, userID, req)
	if err != nil {
		return err
	}
	return created(c, sub)
}

func (h *SubscriptionHandlers) ListSubscriptions(c echo.Context) error {
	business := middleware.GetBusiness(c)
	var q ListQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	sort, err := q.sort("startDate", "endDate", "amountPaid")
	if err != nil {
		return err
	}
	filter := q.filter(bson.M{"business._id": business.ID})
	if userID := c.QueryParam("userId"); userID != "" {
		id, err := common.ParseObjectID(userID, "userId")
		if err != nil {
			return err
		}
		filter["user._id"] = id
	}
	page, err := h.userSubs.FindManyByFilterPagination(c.Request().Context(), filter, q.pageOptions(), sort)
	if err != nil {
		return err
	}
	return okPage(c, page)
}

func (h *SubscriptionHandlers) PauseSubscription(c echo.Context) error {
	id, err := common.ParseObjectID(c.Param("subscriptionId"), "subscriptionId")
	if err != nil {
		return err
	}
	sub, err := h.subscriptions.Pause(c.Request().Context(), middleware.GetBusiness(c).ID, id)
	if err != nil {
		return err
	}
	return ok(c, sub)
}

func (h *SubscriptionHandlers) ResumeSubscription(c echo.Context) error {
	id, err := common.ParseObjectID(c.Param("subscriptionId"), "subscriptionId")
	if err != nil {
		return err
	}
	sub, err := h.subscriptions.Resume(c.Request().Context(), middleware.GetBusiness(c).ID, id)
	if err != nil {
		return err
	}
	return ok(c, sub)
}

func (h *SubscriptionHandlers) CreateVoucher(c echo.Context) error {
	var req services.VoucherInput
	if err := bind(c, &req); err != nil {
		return err
	}
	voucher, err := h.subscriptions.CreateVoucher(c.Request().Context(), middleware.GetBusiness(c), req)
	if err != nil {
		return err
	}
	return created(c, voucher)
}

func (h *SubscriptionHandlers) ListVouchers(c echo.Context) error {
	business := middleware.GetBusiness(c)
	var q ListQuery
	if err := bind(c, &q); err != nil {
		return err
	}
	sort, err := q.sort("startDate", "endDate", "amountPaid")
	if err != nil {
		return err
	}
	page, err := h.vouchers.FindManyByFilterPagination(c.Request().Context(),
		q.filter(bson.M{"business._id": business.ID}), q.pageOptions(), sort)
	if err != nil {
		return err
	}
	return okPage(c, page)
}

func (h *SubscriptionHandlers) GetVoucher(c echo.Context) error {
	voucher, err := h.subscriptions.FindVoucher(c.Request().Context(), middleware.GetBusiness(c).ID, c.Param("code"))
	if err != nil {
		return err
	}
	return ok(c, voucher)
}
