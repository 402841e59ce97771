package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"maclink/internal/apperrors"
	"maclink/internal/models"
)

const voucherCodeLength = 10

type SubscribeInput struct {
	PlanID           string  `json:"planId" validate:"required,objectid"`
	PaymentReference string  `json:"paymentReference" validate:"required,min=4,max=128"`
	AmountPaid       float64 `json:"amountPaid" validate:"gte=0"`
}

type VoucherInput struct {
	FullName         string  `json:"fullName" validate:"required,min=2,max=100"`
	Email            string  `json:"email" validate:"required,email"`
	PlanID           string  `json:"planId" validate:"required,objectid"`
	PaymentReference string  `json:"paymentReference" validate:"required,min=4,max=128"`
	AmountPaid       float64 `json:"amountPaid" validate:"gte=0"`
}

// SubscriptionService sells plans to portal users and voucher buyers and
// keeps the denormalized user and business fields in step.
type SubscriptionService interface {
	Subscribe(ctx context.Context, business *models.Business, userID primitive.ObjectID, in SubscribeInput) (*models.UserSubscription, error)
	Pause(ctx context.Context, businessID, subscriptionID primitive.ObjectID) (*models.UserSubscription, error)
	Resume(ctx context.Context, businessID, subscriptionID primitive.ObjectID) (*models.UserSubscription, error)
	CreateVoucher(ctx context.Context, business *models.Business, in VoucherInput) (*models.VoucherSubscription, error)
	FindVoucher(ctx context.Context, businessID primitive.ObjectID, code string) (*models.VoucherSubscription, error)
	ExpireDue(ctx context.Context, now time.Time) (ExpiryResult, error)
	RefreshAnalytics(ctx context.Context, now time.Time) (int, error)
}

type ExpiryResult struct {
	Subscriptions int64
	Vouchers      int64
	Users         int64
}

type subscriptionService struct {
	entities *Entities
	logger   *zap.Logger
	now      func() time.Time
}

func NewSubscriptionService(entities *Entities, logger *zap.Logger) SubscriptionService {
	return &subscriptionService{
		entities: entities,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *subscriptionService) plan(ctx context.Context, businessID primitive.ObjectID, planID string) (*models.SubscriptionPlan, error) {
	id, err := primitive.ObjectIDFromHex(planID)
	if err != nil {
		return nil, apperrors.Field("planId", "planId must be a valid ObjectId")
	}
	plan, err := s.entities.SubscriptionPlans.FindOneByFilter(ctx, bson.M{"_id": id, "business._id": businessID})
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, apperrors.NotFound("Subscription plan")
	}
	return plan, nil
}

func (s *subscriptionService) Subscribe(ctx context.Context, business *models.Business, userID primitive.ObjectID, in SubscribeInput) (*models.UserSubscription, error) {
	plan, err := s.plan(ctx, business.ID, in.PlanID)
	if err != nil {
		return nil, err
	}
	user, err := s.entities.Users.FindOneByFilter(ctx, bson.M{"_id": userID, "business._id": business.ID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}

	now := s.now()
	if cp := user.CurrentPlan; cp != nil && cp.Subscription.Status != models.SubscriptionExpired && cp.EndDate.After(now) {
		return nil, apperrors.BadRequest("User already has an active subscription", http.StatusConflict, nil)
	}

	amount := in.AmountPaid
	if amount == 0 {
		amount = plan.Amount
	}
	end := now.Add(time.Duration(plan.Duration) * time.Minute)

	sub, err := s.entities.UserSubscriptions.Create(ctx, &models.UserSubscription{
		User:             user.Ref(),
		Business:         business.Ref(),
		Plan:             plan.Snapshot(),
		AmountPaid:       amount,
		Currency:         plan.Currency,
		StartDate:        now,
		EndDate:          end,
		PaymentReference: in.PaymentReference,
		Status:           models.SubscriptionActive,
	})
	if err != nil {
		return nil, err
	}

	current := models.CurrentPlan{
		Plan: models.CurrentPlanRef{ID: plan.ID, Name: plan.Name, Duration: plan.Duration, Amount: plan.Amount},
		Subscription: models.SubscriptionState{
			ID: sub.ID, StartDate: now, EndDate: end, Status: models.SubscriptionActive,
		},
		AmountPaid: amount,
		StartDate:  now,
		EndDate:    end,
	}
	if _, err := s.entities.Users.UpdateOneByFilter(ctx, bson.M{"_id": user.ID}, bson.M{"currentPlan": current}, nil, nil); err != nil {
		return nil, err
	}
	if _, err := s.entities.Businesses.UpdateOneByFilter(ctx, bson.M{"_id": business.ID}, nil, bson.M{"analytics.totalRevenue": amount}, nil); err != nil {
		return nil, err
	}

	s.logger.Info("user subscribed",
		zap.String("business_id", business.ID.Hex()),
		zap.String("user_id", user.ID.Hex()),
		zap.String("subscription_id", sub.ID.Hex()),
	)
	return sub, nil
}

func (s *subscriptionService) subscription(ctx context.Context, businessID, subscriptionID primitive.ObjectID) (*models.UserSubscription, error) {
	sub, err := s.entities.UserSubscriptions.FindOneByFilter(ctx, bson.M{"_id": subscriptionID, "business._id": businessID})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperrors.NotFound("Subscription")
	}
	return sub, nil
}

func (s *subscriptionService) Pause(ctx context.Context, businessID, subscriptionID primitive.ObjectID) (*models.UserSubscription, error) {
	sub, err := s.subscription(ctx, businessID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubscriptionActive {
		return nil, apperrors.BadRequest("Only active subscriptions can be paused", http.StatusBadRequest, nil)
	}

	plan, err := s.entities.SubscriptionPlans.FindOneByFilter(ctx, bson.M{"_id": sub.Plan.ID})
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.CanBePaused {
		return nil, apperrors.BadRequest("This plan cannot be paused", http.StatusBadRequest, nil)
	}
	user, err := s.entities.Users.FindOneByFilter(ctx, bson.M{"_id": sub.User.ID})
	if err != nil {
		return nil, err
	}
	if user != nil && user.CurrentPlan != nil && plan.TotalPauseTime > 0 && user.CurrentPlan.Pause.TotalPauseTime >= plan.TotalPauseTime {
		return nil, apperrors.BadRequest("Pause allowance for this plan is used up", http.StatusBadRequest, nil)
	}

	now := s.now()
	updated, err := s.entities.UserSubscriptions.UpdateOneByFilter(ctx,
		bson.M{"_id": sub.ID, "status": models.SubscriptionActive},
		bson.M{"status": models.SubscriptionPaused, "pausedAt": now}, nil, nil)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.NotFound("Subscription")
	}

	if _, err := s.entities.Users.UpdateOneByFilter(ctx,
		bson.M{"_id": sub.User.ID, "currentPlan.subscription._id": sub.ID},
		bson.M{
			"currentPlan.subscription.status": models.SubscriptionPaused,
			"currentPlan.pause.status":        true,
			"currentPlan.pause.startDate":     now,
		}, nil, nil); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *subscriptionService) Resume(ctx context.Context, businessID, subscriptionID primitive.ObjectID) (*models.UserSubscription, error) {
	sub, err := s.subscription(ctx, businessID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubscriptionPaused || sub.PausedAt == nil {
		return nil, apperrors.BadRequest("Only paused subscriptions can be resumed", http.StatusBadRequest, nil)
	}

	now := s.now()
	paused := now.Sub(*sub.PausedAt)
	left, err := s.remainingPause(ctx, sub)
	if err != nil {
		return nil, err
	}
	if left >= 0 && paused > left {
		paused = left
	}
	end := sub.EndDate.Add(paused)

	updated, err := s.entities.UserSubscriptions.UpdateOneByFilter(ctx,
		bson.M{"_id": sub.ID, "status": models.SubscriptionPaused},
		bson.M{"status": models.SubscriptionActive, "endDate": end, "pausedAt": nil}, nil, nil)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.NotFound("Subscription")
	}

	if _, err := s.entities.Users.UpdateOneByFilter(ctx,
		bson.M{"_id": sub.User.ID, "currentPlan.subscription._id": sub.ID},
		bson.M{
			"currentPlan.subscription.status":  models.SubscriptionActive,
			"currentPlan.subscription.endDate": end,
			"currentPlan.endDate":              end,
			"currentPlan.pause.status":         false,
			"currentPlan.pause.startDate":      nil,
		},
		bson.M{"currentPlan.pause.totalPauseTime": int(paused.Minutes())},
		nil); err != nil {
		return nil, err
	}
	return updated, nil
}

// remainingPause is the pause time sub may still be credited on resume.
// Negative means the plan sets no cap. A plan that no longer exists grants
// nothing.
func (s *subscriptionService) remainingPause(ctx context.Context, sub *models.UserSubscription) (time.Duration, error) {
	plan, err := s.entities.SubscriptionPlans.FindOneByFilter(ctx, bson.M{"_id": sub.Plan.ID})
	if err != nil {
		return 0, err
	}
	if plan == nil {
		return 0, nil
	}
	if plan.TotalPauseTime <= 0 {
		return -1, nil
	}
	user, err := s.entities.Users.FindOneByFilter(ctx, bson.M{"_id": sub.User.ID})
	if err != nil {
		return 0, err
	}
	used := 0
	if user != nil && user.CurrentPlan != nil {
		used = user.CurrentPlan.Pause.TotalPauseTime
	}
	if used >= plan.TotalPauseTime {
		return 0, nil
	}
	return time.Duration(plan.TotalPauseTime-used) * time.Minute, nil
}

// NewVoucherCode returns an upper-case code derived from a random UUID.
func NewVoucherCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:voucherCodeLength]
}

func (s *subscriptionService) CreateVoucher(ctx context.Context, business *models.Business, in VoucherInput) (*models.VoucherSubscription, error) {
	plan, err := s.plan(ctx, business.ID, in.PlanID)
	if err != nil {
		return nil, err
	}
	amount := in.AmountPaid
	if amount == 0 {
		amount = plan.Amount
	}
	now := s.now()

	var voucher *models.VoucherSubscription
	for attempt := 0; attempt < 3; attempt++ {
		voucher, err = s.entities.VoucherSubscriptions.Create(ctx, &models.VoucherSubscription{
			Business:         business.Ref(),
			FullName:         strings.TrimSpace(in.FullName),
			Email:            NormalizeEmail(in.Email),
			PaymentReference: in.PaymentReference,
			Plan:             plan.Snapshot(),
			AmountPaid:       amount,
			Currency:         plan.Currency,
			StartDate:        now,
			EndDate:          now.Add(time.Duration(plan.Duration) * time.Minute),
			VoucherCode:      NewVoucherCode(),
			Status:           models.SubscriptionActive,
		})
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.entities.Businesses.UpdateOneByFilter(ctx, bson.M{"_id": business.ID}, nil, bson.M{"analytics.totalRevenue": amount}, nil); err != nil {
		return nil, err
	}
	return voucher, nil
}

func (s *subscriptionService) FindVoucher(ctx context.Context, businessID primitive.ObjectID, code string) (*models.VoucherSubscription, error) {
	voucher, err := s.entities.VoucherSubscriptions.FindOneByFilter(ctx, bson.M{
		"business._id": businessID,
		"voucherCode":  strings.ToUpper(strings.TrimSpace(code)),
	})
	if err != nil {
		return nil, err
	}
	if voucher == nil {
		return nil, apperrors.NotFound("Voucher")
	}
	return voucher, nil
}

// ExpireDue flips every active subscription, voucher and user plan whose
// validity window has closed.
func (s *subscriptionService) ExpireDue(ctx context.Context, now time.Time) (ExpiryResult, error) {
	var res ExpiryResult
	var errs []error
	due := bson.M{"$lte": now}

	n, err := s.entities.UserSubscriptions.UpdateManyByFilter(ctx,
		bson.M{"status": models.SubscriptionActive, "endDate": due},
		bson.M{"status": models.SubscriptionExpired}, nil, nil)
	res.Subscriptions, errs = n, append(errs, err)

	n, err = s.entities.VoucherSubscriptions.UpdateManyByFilter(ctx,
		bson.M{"status": models.SubscriptionActive, "endDate": due},
		bson.M{"status": models.SubscriptionExpired}, nil, nil)
	res.Vouchers, errs = n, append(errs, err)

	n, err = s.entities.Users.UpdateManyByFilter(ctx,
		bson.M{"currentPlan.subscription.status": models.SubscriptionActive, "currentPlan.endDate": due},
		bson.M{"currentPlan.subscription.status": models.SubscriptionExpired}, nil, nil)
	res.Users, errs = n, append(errs, err)

	return res, errors.Join(errs...)
}

// RefreshAnalytics recomputes analytics.activeUsers for every business from
// the active subscriptions and returns how many businesses have any.
func (s *subscriptionService) RefreshAnalytics(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.entities.UserSubscriptions.Aggregate(ctx, []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "status", Value: models.SubscriptionActive}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$business._id"},
			{Key: "activeUsers", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return 0, err
	}

	if _, err := s.entities.Businesses.UpdateManyByFilter(ctx, bson.M{},
		bson.M{"analytics.activeUsers": 0, "analytics.lastUpdated": now}, nil, nil); err != nil {
		return 0, err
	}
	for _, row := range rows {
		id, ok := row["_id"].(primitive.ObjectID)
		if !ok {
			continue
		}
		if _, err := s.entities.Businesses.UpdateOneByFilter(ctx, bson.M{"_id": id},
			bson.M{"analytics.activeUsers": toInt(row["activeUsers"]), "analytics.lastUpdated": now}, nil, nil); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
