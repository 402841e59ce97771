package repositories

import (
	"go.mongodb.org/mongo-driver/mongo"

	"maclink/internal/models"
)

type (
	AccountRepository             = Repository[models.Account]
	BusinessRepository            = Repository[models.Business]
	RouterRepository              = Repository[models.Router]
	SubscriptionPlanRepository    = Repository[models.SubscriptionPlan]
	UserRepository                = Repository[models.User]
	UserSubscriptionRepository    = Repository[models.UserSubscription]
	VoucherSubscriptionRepository = Repository[models.VoucherSubscription]
)

func NewAccountRepository(db *mongo.Database) AccountRepository {
	return NewRepository[models.Account](db.Collection(models.AccountsCollection), "password")
}

func NewBusinessRepository(db *mongo.Database) BusinessRepository {
	return NewRepository[models.Business](db.Collection(models.BusinessesCollection))
}

func NewRouterRepository(db *mongo.Database) RouterRepository {
	return NewRepository[models.Router](db.Collection(models.RoutersCollection), "connection.password")
}

func NewSubscriptionPlanRepository(db *mongo.Database) SubscriptionPlanRepository {
	return NewRepository[models.SubscriptionPlan](db.Collection(models.SubscriptionPlansCollection))
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return NewRepository[models.User](db.Collection(models.UsersCollection), "password")
}

func NewUserSubscriptionRepository(db *mongo.Database) UserSubscriptionRepository {
	return NewRepository[models.UserSubscription](db.Collection(models.UserSubscriptionsCollection))
}

func NewVoucherSubscriptionRepository(db *mongo.Database) VoucherSubscriptionRepository {
	return NewRepository[models.VoucherSubscription](db.Collection(models.VoucherSubscriptionsCollection))
}
