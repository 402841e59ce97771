package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"maclink/internal/models"
	"maclink/internal/repositories"
)

const redacted = "[REDACTED]"

// RequestLog is what the request logging middleware hands over once the
// response has been written.
type RequestLog struct {
	HTTPVersion string
	Method      string
	URL         string
	IP          string
	UserID      string
	Headers     http.Header
	Params      map[string]string
	Query       map[string]string
	Body        any
	StatusCode  int
	Duration    time.Duration
}

// ErrorLog describes a failure surfaced by the error handler.
type ErrorLog struct {
	Message    string
	Name       string
	Stack      string
	StatusCode int
	Metadata   map[string]any
	Request    *RequestLog
}

// LogService persists request and error records. Persistence failures are
// reported on the process logger and never reach the caller.
type LogService interface {
	LogRequest(ctx context.Context, entry RequestLog)
	LogError(ctx context.Context, entry ErrorLog)
}

type logService struct {
	repo        repositories.LogRepository
	environment string
	logger      *zap.Logger
	now         func() time.Time
}

func NewLogService(repo repositories.LogRepository, environment string, logger *zap.Logger) LogService {
	return &logService{
		repo:        repo,
		environment: environment,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *logService) LogRequest(ctx context.Context, entry RequestLog) {
	now := s.now()
	retention := models.RequestLogRetention
	level := models.LogLevelInfo
	if entry.StatusCode >= http.StatusBadRequest {
		retention = models.ErrorRequestLogRetention
		level = models.LogLevelWarn
	}

	doc := &models.Log{
		Type:      models.LogTypeRequest,
		Level:     level,
		Message:   fmt.Sprintf("%s %s %d", entry.Method, entry.URL, entry.StatusCode),
		Timestamp: now,
		ExpiresAt: now.Add(retention),
	}
	applyRequest(doc, &entry)
	s.persist(ctx, doc)
}

func (s *logService) LogError(ctx context.Context, entry ErrorLog) {
	now := s.now()
	metadata := map[string]any{}
	for k, v := range entry.Metadata {
		metadata[k] = v
	}
	metadata["timestamp"] = now.Format(time.RFC3339)
	metadata["environment"] = s.environment
	if entry.Name != "" {
		metadata["name"] = entry.Name
	}

	doc := &models.Log{
		Type:       models.LogTypeError,
		Level:      models.LogLevelError,
		Message:    entry.Message,
		Timestamp:  now,
		ExpiresAt:  now.Add(models.ErrorLogRetention),
		Stack:      entry.Stack,
		StatusCode: entry.StatusCode,
		Metadata:   metadata,
	}
	if entry.Request != nil {
		applyRequest(doc, entry.Request)
		doc.StatusCode = entry.StatusCode
	}
	s.persist(ctx, doc)
}

func (s *logService) persist(ctx context.Context, doc *models.Log) {
	if err := s.repo.Create(ctx, doc); err != nil {
		s.logger.Error("failed to persist log",
			zap.String("type", doc.Type),
			zap.String("message", doc.Message),
			zap.Error(err))
	}
}

func applyRequest(doc *models.Log, req *RequestLog) {
	doc.ReqHTTPVersion = req.HTTPVersion
	doc.ReqMethod = req.Method
	doc.ReqOriginalURL = req.URL
	doc.ReqIP = req.IP
	doc.UserID = req.UserID
	doc.ReqHeaders = SanitizeHeaders(req.Headers)
	doc.ReqParams = req.Params
	doc.ReqQuery = req.Query
	doc.ReqBody = RedactBody(req.Body)
	doc.StatusCode = req.StatusCode
	doc.DurationMs = req.Duration.Milliseconds()
}

// SanitizeHeaders flattens headers and masks credentials.
func SanitizeHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		name := strings.ToLower(key)
		if isSensitiveHeader(name) {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func isSensitiveHeader(name string) bool {
	switch name {
	case "authorization", "cookie", "set-cookie", "x-api-key", "x-auth-token", "proxy-authorization":
		return true
	}
	return false
}

// RedactBody returns a copy of a decoded JSON body with password fields masked
// at any depth. Non-object bodies are returned unchanged.
func RedactBody(body any) any {
	switch v := body.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if isSensitiveField(key) {
				out[key] = redacted
				continue
			}
			out[key] = RedactBody(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = RedactBody(val)
		}
		return out
	default:
		return body
	}
}

func isSensitiveField(key string) bool {
	k := strings.ToLower(strings.ReplaceAll(key, "_", ""))
	return strings.Contains(k, "password") || k == "secretkey" || k == "token" || k == "accesstoken" || k == "otp"
}
