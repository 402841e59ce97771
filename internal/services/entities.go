package services

import (
	"time"

	"go.uber.org/zap"

	"maclink/internal/caching"
	"maclink/internal/models"
	"maclink/internal/repositories"
)

type (
	AccountService             = EntityService[models.Account]
	BusinessService            = EntityService[models.Business]
	RouterService              = EntityService[models.Router]
	SubscriptionPlanService    = EntityService[models.SubscriptionPlan]
	UserService                = EntityService[models.User]
	UserSubscriptionService    = EntityService[models.UserSubscription]
	VoucherSubscriptionService = EntityService[models.VoucherSubscription]
)

// Entities bundles the cached service of every entity.
type Entities struct {
	Accounts             AccountService
	Businesses           BusinessService
	Routers              RouterService
	SubscriptionPlans    SubscriptionPlanService
	Users                UserService
	UserSubscriptions    UserSubscriptionService
	VoucherSubscriptions VoucherSubscriptionService
}

// Repositories groups the repositories backing Entities.
type Repositories struct {
	Accounts             repositories.AccountRepository
	Businesses           repositories.BusinessRepository
	Routers              repositories.RouterRepository
	SubscriptionPlans    repositories.SubscriptionPlanRepository
	Users                repositories.UserRepository
	UserSubscriptions    repositories.UserSubscriptionRepository
	VoucherSubscriptions repositories.VoucherSubscriptionRepository
}

func NewEntities(repos Repositories, cache caching.CacheService, ttl time.Duration, logger *zap.Logger) *Entities {
	return &Entities{
		Accounts:             NewEntityService(models.AccountsCache, repos.Accounts, cache, ttl, logger),
		Businesses:           NewEntityService(models.BusinessesCache, repos.Businesses, cache, ttl, logger),
		Routers:              NewEntityService(models.RoutersCache, repos.Routers, cache, ttl, logger),
		SubscriptionPlans:    NewEntityService(models.SubscriptionPlansCache, repos.SubscriptionPlans, cache, ttl, logger),
		Users:                NewEntityService(models.UsersCache, repos.Users, cache, ttl, logger),
		UserSubscriptions:    NewEntityService(models.UserSubscriptionsCache, repos.UserSubscriptions, cache, ttl, logger),
		VoucherSubscriptions: NewEntityService(models.VoucherSubscriptionsCache, repos.VoucherSubscriptions, cache, ttl, logger),
	}
}
