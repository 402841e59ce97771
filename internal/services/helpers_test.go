package services

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"maclink/internal/caching"
	"maclink/internal/config"
	"maclink/internal/models"
	"maclink/internal/repositories"
	"maclink/internal/testsupport"
)

// fixture wires real entity services over in-memory collections and miniredis.
type fixture struct {
	mr       *miniredis.Miniredis
	cache    caching.CacheService
	entities *Entities

	accounts      *testsupport.Collection
	businesses    *testsupport.Collection
	plans         *testsupport.Collection
	users         *testsupport.Collection
	subscriptions *testsupport.Collection
	vouchers      *testsupport.Collection
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	f := &fixture{
		mr:            mr,
		cache:         caching.NewRedisCacheService(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zap.NewNop()),
		accounts:      testsupport.NewCollection(models.AccountsCollection, "email"),
		businesses:    testsupport.NewCollection(models.BusinessesCollection, "subdomain"),
		plans:         testsupport.NewCollection(models.SubscriptionPlansCollection),
		users:         testsupport.NewCollection(models.UsersCollection),
		subscriptions: testsupport.NewCollection(models.UserSubscriptionsCollection, "paymentReference"),
		vouchers:      testsupport.NewCollection(models.VoucherSubscriptionsCollection, "voucherCode", "paymentReference"),
	}
	f.entities = NewEntities(Repositories{
		Accounts:             repositories.NewRepository[models.Account](f.accounts, "password"),
		Businesses:           repositories.NewRepository[models.Business](f.businesses),
		Routers:              repositories.NewRepository[models.Router](testsupport.NewCollection(models.RoutersCollection), "connection.password"),
		SubscriptionPlans:    repositories.NewRepository[models.SubscriptionPlan](f.plans),
		Users:                repositories.NewRepository[models.User](f.users, "password"),
		UserSubscriptions:    repositories.NewRepository[models.UserSubscription](f.subscriptions),
		VoucherSubscriptions: repositories.NewRepository[models.VoucherSubscription](f.vouchers),
	}, f.cache, time.Minute, zap.NewNop())
	return f
}

func testSecurityConfig() config.SecurityConfig {
	cfg := config.Default().Security
	cfg.MaxConsecutiveFailsByUsernameAndIP = 3
	cfg.MaxWrongAttemptsByIPPerDay = 5
	cfg.MaxWrongAttemptsByUsernamePerDay = 4
	cfg.MaxLoginByUsernamePerDay = 2
	cfg.BlockDuration = time.Hour
	return cfg
}
