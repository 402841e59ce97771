package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"maclink/internal/services"
)

const requestBodyKey = "request_body"

// RequestLog persists every request once the response status is known. The
// error handler runs first so failed requests carry their final status.
func RequestLog(logs services.LogService) echo.MiddlewareFunc {
	return echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		HandleError:  true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogRemoteIP:  true,
		LogProtocol:  true,
		LogRequestID: true,
		BeforeNextFunc: func(c echo.Context) {
			c.Set(requestBodyKey, readBody(c))
		},
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := RequestEntry(c)
			entry.HTTPVersion = v.Protocol
			entry.Method = v.Method
			entry.URL = v.URI
			entry.IP = v.RemoteIP
			entry.StatusCode = v.Status
			entry.Duration = v.Latency
			// the client may already be gone; the record must still be written
			logs.LogRequest(context.WithoutCancel(c.Request().Context()), entry)
			return nil
		},
	})
}

// RequestEntry describes the current request for the log service.
func RequestEntry(c echo.Context) services.RequestLog {
	req := c.Request()
	entry := services.RequestLog{
		HTTPVersion: req.Proto,
		Method:      req.Method,
		URL:         req.RequestURI,
		IP:          c.RealIP(),
		Headers:     req.Header,
		Body:        c.Get(requestBodyKey),
		StatusCode:  c.Response().Status,
	}
	if claims, ok := GetClaims(c); ok {
		entry.UserID = claims.AccountID
	}
	if names := c.ParamNames(); len(names) > 0 {
		entry.Params = make(map[string]string, len(names))
		for i, name := range names {
			entry.Params[name] = c.ParamValues()[i]
		}
	}
	if query := c.QueryParams(); len(query) > 0 {
		entry.Query = make(map[string]string, len(query))
		for k, vals := range query {
			entry.Query[k] = strings.Join(vals, ",")
		}
	}
	return entry
}

// readBody buffers a JSON request body and rewinds it for the handler.
func readBody(c echo.Context) any {
	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return nil
	}
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		// keep the read error (e.g. body limit exceeded) visible to the handler
		req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), failingReader{err}))
		return nil
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	if len(raw) == 0 {
		return nil
	}
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }
