package common

import (
	"context"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"maclink/internal/apperrors"
)

type contextKey string

const (
	AccountIDKey contextKey = "account_id"
	RequestIDKey contextKey = "request_id"
)

// WithAccountID stores the authenticated account on ctx.
func WithAccountID(ctx context.Context, id primitive.ObjectID) context.Context {
	return context.WithValue(ctx, AccountIDKey, id)
}

// GetAccountIDFromContext extracts the authenticated account ID.
func GetAccountIDFromContext(ctx context.Context) (primitive.ObjectID, bool) {
	id, ok := ctx.Value(AccountIDKey).(primitive.ObjectID)
	return id, ok
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// ParseObjectID validates a hex ObjectID taken from a path or body field.
func ParseObjectID(idStr, fieldName string) (primitive.ObjectID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return primitive.NilObjectID, apperrors.Field(fieldName, fieldName+" is required")
	}
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		return primitive.NilObjectID, apperrors.Field(fieldName, fieldName+" must be a valid ObjectId")
	}
	return id, nil
}

var sortPattern = regexp.MustCompile(`^[a-zA-Z_]+(:asc|:desc)?$`)

// ParseSort turns "field:asc" or "field:desc" into a Mongo sort. An empty
// value returns nil so the repository default applies. Only fields in
// allowed are accepted.
func ParseSort(sort string, allowed ...string) (bson.D, error) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		return nil, nil
	}
	if !sortPattern.MatchString(sort) {
		return nil, apperrors.Field("sort", "Sort format should be field:asc or field:desc")
	}
	field, order, _ := strings.Cut(sort, ":")
	if len(allowed) > 0 && !contains(allowed, field) {
		return nil, apperrors.Field("sort", "Sort field must be one of: "+strings.Join(allowed, ", "))
	}
	dir := -1
	if order == "asc" {
		dir = 1
	}
	return bson.D{{Key: field, Value: dir}}, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
