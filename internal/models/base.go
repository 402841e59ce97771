package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names, one per entity.
const (
	AccountsCollection             = "accounts"
	BusinessesCollection           = "businesses"
	RoutersCollection              = "routers"
	SubscriptionPlansCollection    = "subscriptionplans"
	UsersCollection                = "users"
	UserSubscriptionsCollection    = "usersubscriptions"
	VoucherSubscriptionsCollection = "vouchersubscriptions"
	LogsCollection                 = "logs"
)

// Cache entry names, one Redis hash per entity.
const (
	AccountsCache             = "accounts"
	BusinessesCache           = "businesses"
	RoutersCache              = "routers"
	SubscriptionPlansCache    = "subscription_plans"
	UsersCache                = "users"
	UserSubscriptionsCache    = "user-subscriptions"
	VoucherSubscriptionsCache = "voucher-subscriptions"
)

// Base holds the fields every stored entity carries.
type Base struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
	IsDeleted bool               `bson:"isDeleted" json:"-"`
}

// BusinessRef is the business snapshot embedded in business-scoped entities.
type BusinessRef struct {
	ID   primitive.ObjectID `bson:"_id" json:"_id"`
	Name string             `bson:"name" json:"name"`
}

// Asset is an uploaded branding file.
type Asset struct {
	URL string `bson:"url" json:"url"`
	Alt string `bson:"alt" json:"alt"`
}

// Subscription statuses shared by user and voucher subscriptions.
const (
	SubscriptionActive  = "active"
	SubscriptionPaused  = "paused"
	SubscriptionExpired = "expired"
)
