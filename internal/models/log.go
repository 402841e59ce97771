package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	LogTypeError   = "error"
	LogTypeRequest = "request"

	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Retention windows, applied through the expiresAt TTL index.
const (
	RequestLogRetention      = 7 * 24 * time.Hour
	ErrorRequestLogRetention = 30 * 24 * time.Hour
	ErrorLogRetention        = 30 * 24 * time.Hour
)

// Log is a persisted request or error record. It is not soft-deleted; Mongo
// removes it once ExpiresAt passes.
type Log struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Type           string             `bson:"type" json:"type"`
	Level          string             `bson:"level" json:"level"`
	Message        string             `bson:"message" json:"message"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
	ExpiresAt      time.Time          `bson:"expiresAt" json:"expiresAt"`
	ReqHTTPVersion string             `bson:"reqHttpVersion,omitempty" json:"reqHttpVersion,omitempty"`
	ReqHeaders     map[string]string  `bson:"reqHeaders,omitempty" json:"reqHeaders,omitempty"`
	ReqMethod      string             `bson:"reqMethod,omitempty" json:"reqMethod,omitempty"`
	ReqOriginalURL string             `bson:"reqOriginalUrl,omitempty" json:"reqOriginalUrl,omitempty"`
	ReqParams      map[string]string  `bson:"reqParams,omitempty" json:"reqParams,omitempty"`
	ReqQuery       map[string]string  `bson:"reqQuery,omitempty" json:"reqQuery,omitempty"`
	ReqBody        any                `bson:"reqBody,omitempty" json:"reqBody,omitempty"`
	ReqIP          string             `bson:"reqIp,omitempty" json:"reqIp,omitempty"`
	UserID         string             `bson:"userId,omitempty" json:"userId,omitempty"`
	Stack          string             `bson:"stack,omitempty" json:"stack,omitempty"`
	StatusCode     int                `bson:"statusCode,omitempty" json:"statusCode,omitempty"`
	DurationMs     int64              `bson:"durationMs,omitempty" json:"durationMs,omitempty"`
	Metadata       map[string]any     `bson:"metadata,omitempty" json:"metadata,omitempty"`
}
