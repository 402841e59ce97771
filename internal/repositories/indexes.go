package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"maclink/internal/models"
)

// IndexCreator is satisfied by mongo.IndexView.
type IndexCreator interface {
	CreateMany(ctx context.Context, indexes []mongo.IndexModel, opts ...*options.CreateIndexesOptions) ([]string, error)
}

// liveUnique enforces uniqueness only across documents that are not
// soft-deleted, so a deleted business frees its subdomain.
func liveUnique(field string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys: bson.D{{Key: field, Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: softDeleteField, Value: false}}),
	}
}

func byField(field string) mongo.IndexModel {
	return mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}}
}

// IndexModels lists the indexes each collection needs.
func IndexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		models.AccountsCollection: {
			liveUnique("email"),
		},
		models.BusinessesCollection: {
			liveUnique("subdomain"),
			byField("account._id"),
		},
		models.RoutersCollection: {
			byField("business._id"),
		},
		models.SubscriptionPlansCollection: {
			byField("business._id"),
		},
		models.UsersCollection: {
			byField("business._id"),
			{
				Keys: bson.D{{Key: "business._id", Value: 1}, {Key: "username", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.D{{Key: softDeleteField, Value: false}}),
			},
		},
		models.UserSubscriptionsCollection: {
			liveUnique("paymentReference"),
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "endDate", Value: 1}}},
		},
		models.VoucherSubscriptionsCollection: {
			liveUnique("voucherCode"),
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "endDate", Value: 1}}},
		},
		models.LogsCollection: LogIndexModels(),
	}
}

// EnsureIndexes creates every index in IndexModels. Existing indexes with the
// same definition are left alone by the server.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for name, idx := range IndexModels() {
		if err := createIndexes(ctx, db.Collection(name).Indexes(), idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func createIndexes(ctx context.Context, creator IndexCreator, idx []mongo.IndexModel) error {
	if len(idx) == 0 {
		return nil
	}
	_, err := creator.CreateMany(ctx, idx)
	return err
}
