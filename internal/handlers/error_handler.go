package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"maclink/internal/apperrors"
	"maclink/internal/common"
	"maclink/internal/middleware"
	"maclink/internal/services"
)

// ErrorResponse is the body of every failed API response.
type ErrorResponse struct {
	Status           string            `json:"status"`
	Path             string            `json:"path"`
	Timestamp        int64             `json:"timestamp"`
	Message          string            `json:"message"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty"`
}

var (
	dupKeyBlock = regexp.MustCompile(`dup key: \{(.*)\}`)
	dupKeyField = regexp.MustCompile(`"?([A-Za-z0-9_.]+)"?\s*:`)
)

// NewErrorHandler maps errors returned by handlers and middleware to
// responses, and records each of them in the error log.
func NewErrorHandler(logs services.LogService, logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		requestID := common.GetRequestIDFromContext(c.Request().Context())
		status, message, fields := classify(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("request_id", requestID),
				zap.Error(err))
			message = apperrors.MsgServerError
		}

		var tooMany *apperrors.TooManyRequestsError
		if errors.As(err, &tooMany) && tooMany.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(tooMany.RetryAfter.Seconds())))
		}

		entry := middleware.RequestEntry(c)
		entry.StatusCode = status
		var metadata map[string]any
		if requestID != "" {
			metadata = map[string]any{"requestId": requestID}
		}
		logs.LogError(context.WithoutCancel(c.Request().Context()), services.ErrorLog{
			Message:    err.Error(),
			Name:       fmt.Sprintf("%T", err),
			StatusCode: status,
			Metadata:   metadata,
			Request:    &entry,
		})

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, ErrorResponse{
				Status:           "error",
				Path:             c.Request().RequestURI,
				Timestamp:        time.Now().UnixMilli(),
				Message:          message,
				ValidationErrors: fields,
			})
		}
		if err != nil {
			logger.Error("failed to write error response", zap.Error(err))
		}
	}
}

func classify(err error) (int, string, map[string]string) {
	var validation *apperrors.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, validation.Message, validation.FieldMap()
	}

	if mongo.IsDuplicateKeyError(err) {
		field := duplicateField(err)
		msg := capitalize(field) + " already exists"
		return http.StatusBadRequest, msg, map[string]string{field: msg}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Code {
		case http.StatusNotFound:
			return httpErr.Code, apperrors.MsgPageNotFound, nil
		case http.StatusRequestEntityTooLarge:
			return httpErr.Code, apperrors.MsgBodyTooLarge, nil
		case http.StatusTooManyRequests:
			return httpErr.Code, apperrors.MsgTooManyRequests, nil
		}
		return httpErr.Code, fmt.Sprint(httpErr.Message), nil
	}

	var coder apperrors.StatusCoder
	if errors.As(err, &coder) {
		return coder.StatusCode(), err.Error(), nil
	}
	return http.StatusInternalServerError, err.Error(), nil
}

// duplicateField pulls the offending field out of an E11000 message. For
// compound keys the last field is reported, the scope fields come first.
func duplicateField(err error) string {
	block := dupKeyBlock.FindStringSubmatch(err.Error())
	if block == nil {
		return "record"
	}
	fields := dupKeyField.FindAllStringSubmatch(block[1], -1)
	if len(fields) == 0 {
		return "record"
	}
	return fields[len(fields)-1][1]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
