package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"maclink/internal/caching"
	"maclink/internal/config"
	"maclink/internal/handlers"
	"maclink/internal/middleware"
	"maclink/internal/models"
	"maclink/internal/repositories"
	"maclink/internal/services"
	"maclink/internal/testsupport"
)

const testPassword = "Str0ng!pass"

type ServerTestSuite struct {
	suite.Suite
	e          *echo.Echo
	logs       *testsupport.Collection
	businesses *testsupport.Collection
	users      *testsupport.Collection
}

type apiResponse struct {
	Status           string            `json:"status"`
	Message          string            `json:"message"`
	Results          int               `json:"results"`
	Data             json.RawMessage   `json:"data"`
	ValidationErrors map[string]string `json:"validation_errors"`
}

func (suite *ServerTestSuite) SetupTest() {
	mr := miniredis.RunT(suite.T())
	cache := caching.NewRedisCacheService(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zap.NewNop())

	cfg := config.Default()
	cfg.Server.Env = "test"
	cfg.Auth.JWTSecret = "test-secret"

	suite.logs = testsupport.NewCollection(models.LogsCollection)
	suite.businesses = testsupport.NewCollection(models.BusinessesCollection, "subdomain")
	suite.users = testsupport.NewCollection(models.UsersCollection)

	entities := services.NewEntities(services.Repositories{
		Accounts:             repositories.NewRepository[models.Account](testsupport.NewCollection(models.AccountsCollection, "email"), "password"),
		Businesses:           repositories.NewRepository[models.Business](suite.businesses),
		Routers:              repositories.NewRepository[models.Router](testsupport.NewCollection(models.RoutersCollection), "connection.password"),
		SubscriptionPlans:    repositories.NewRepository[models.SubscriptionPlan](testsupport.NewCollection(models.SubscriptionPlansCollection)),
		Users:                repositories.NewRepository[models.User](suite.users, "password"),
		UserSubscriptions:    repositories.NewRepository[models.UserSubscription](testsupport.NewCollection(models.UserSubscriptionsCollection, "paymentReference")),
		VoucherSubscriptions: repositories.NewRepository[models.VoucherSubscription](testsupport.NewCollection(models.VoucherSubscriptionsCollection, "voucherCode", "paymentReference")),
	}, cache, time.Minute, zap.NewNop())

	auth := services.NewAuthService(entities.Accounts, services.NewLoginLimiter(cache, cfg.Security, zap.NewNop()), cache, cfg.Auth, zap.NewNop())
	jwtAuth, err := middleware.NewJWTAuth(auth, cfg.Auth, zap.NewNop())
	suite.Require().NoError(err)

	healthy := handlers.PingFunc(func(context.Context) error { return nil })
	suite.e = NewServer(ServerDeps{
		Config:        cfg,
		Logger:        zap.NewNop(),
		Entities:      entities,
		Auth:          auth,
		Subscriptions: services.NewSubscriptionService(entities, zap.NewNop()),
		Branding:      services.NewBrandingService(nil, entities.Businesses, zap.NewNop()),
		Logs:          services.NewLogService(repositories.NewLogRepositoryFromCollection(suite.logs), cfg.Server.Env, zap.NewNop()),
		JWT:           jwtAuth,
		Health:        handlers.NewHealthHandlers(healthy, healthy, healthy, Version),
	})
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (suite *ServerTestSuite) do(method, path, token string, body any) (*httptest.ResponseRecorder, apiResponse) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXForwardedFor, "203.0.113.7")
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	suite.e.ServeHTTP(rec, req)

	var res apiResponse
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	}
	return rec, res
}

func (suite *ServerTestSuite) decode(res apiResponse, out any) {
	suite.Require().NoError(json.Unmarshal(res.Data, out))
}

func (suite *ServerTestSuite) signup(email string) string {
	rec, res := suite.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"fullName":        "Ada Lovelace",
		"email":           email,
		"password":        testPassword,
		"confirmPassword": testPassword,
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var out services.AuthResult
	suite.decode(res, &out)
	return out.AccessToken
}

func (suite *ServerTestSuite) createBusiness(token, subdomain string) models.Business {
	rec, res := suite.do(http.MethodPost, "/api/v1/businesses", token, map[string]any{
		"name":              "Cafe Wifi",
		"subdomain":         subdomain,
		"subscriptionModel": "account",
		"settings": map[string]any{
			"maxUsers":          10,
			"maxDevicesPerUser": 2,
			"defaultBandwidth":  5,
			"freeTrialLimit":    1,
		},
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var business models.Business
	suite.decode(res, &business)
	return business
}

func (suite *ServerTestSuite) TestHealth() {
	rec, _ := suite.do(http.MethodGet, "/api/v1/health", "", nil)

	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("OK", rec.Body.String())
	suite.Equal("v1", rec.Header().Get("X-API-Version"))
}

func (suite *ServerTestSuite) TestUnknownRoute() {
	rec, res := suite.do(http.MethodGet, "/nope", "", nil)

	suite.Equal(http.StatusNotFound, rec.Code)
	suite.Equal("error", res.Status)
	suite.Equal("Page not found", res.Message)
}

func (suite *ServerTestSuite) TestUnsupportedVersion() {
	rec, res := suite.do(http.MethodGet, "/api/v2/health", "", nil)

	suite.Equal(http.StatusNotFound, rec.Code)
	suite.Equal("Unsupported API version", res.Message)
}

func (suite *ServerTestSuite) TestProtectedRouteRequiresToken() {
	rec, res := suite.do(http.MethodGet, "/api/v1/businesses", "", nil)

	suite.Equal(http.StatusUnauthorized, rec.Code)
	suite.Equal("Missing or malformed token", res.Message)
}

func (suite *ServerTestSuite) TestBodyLimit() {
	rec, res := suite.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": strings.Repeat("x", 25*1024),
	})

	suite.Equal(http.StatusRequestEntityTooLarge, rec.Code)
	suite.Equal("Input must be less than 20kb", res.Message)
}

func (suite *ServerTestSuite) TestSignupValidation() {
	rec, res := suite.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"fullName": "Ada",
		"email":    "nope",
		"password": testPassword,
	})

	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Equal("Please provide a valid email address", res.ValidationErrors["email"])
	suite.Contains(res.ValidationErrors, "confirmPassword")
}

func (suite *ServerTestSuite) TestRequestsAreLoggedWithRedaction() {
	suite.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ghost@example.com",
		"password": testPassword,
	})

	docs := suite.logs.Documents()
	suite.Require().NotEmpty(docs)
	var request map[string]any
	for _, doc := range docs {
		if doc["type"] == models.LogTypeRequest {
			request = doc
		}
	}
	suite.Require().NotNil(request)
	suite.Equal(models.LogLevelWarn, request["level"])
	suite.Equal("POST /api/v1/auth/login 401", request["message"])

	body, err := bson.Marshal(request["reqBody"])
	suite.Require().NoError(err)
	suite.Equal("[REDACTED]", bson.Raw(body).Lookup("password").StringValue())
	suite.Equal("ghost@example.com", bson.Raw(body).Lookup("email").StringValue())
}

func (suite *ServerTestSuite) TestBusinessLifecycle() {
	token := suite.signup("ada@example.com")
	business := suite.createBusiness(token, "cafe-wifi")

	suite.Equal("cafe-wifi", business.Subdomain)
	suite.Equal(models.BusinessDraft, business.Status)
	suite.Equal("#3B82F6", business.Branding.Colors.Primary)
	suite.Equal(models.GatewayMaclink, business.PaymentGateway.Provider)

	rec, res := suite.do(http.MethodGet, "/api/v1/accounts/me", token, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)
	var account models.Account
	suite.decode(res, &account)
	suite.Equal([]string{business.ID.Hex()}, hexes(account.Businesses))

	rec, res = suite.do(http.MethodGet, "/api/v1/businesses?limit=5&sort=name:asc", token, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Equal(1, res.Results)

	rec, res = suite.do(http.MethodPatch, "/api/v1/businesses/"+business.ID.Hex(), token, map[string]any{
		"status": "active",
		"colors": map[string]string{"accent": "#000000"},
	})
	suite.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Business
	suite.decode(res, &updated)
	suite.Equal(models.BusinessActive, updated.Status)
	suite.Equal("#000000", updated.Branding.Colors.Accent)
	suite.Equal("#3B82F6", updated.Branding.Colors.Primary)

	rec, _ = suite.do(http.MethodDelete, "/api/v1/businesses/"+business.ID.Hex(), token, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)

	rec, _ = suite.do(http.MethodGet, "/api/v1/businesses/"+business.ID.Hex(), token, nil)
	suite.Equal(http.StatusNotFound, rec.Code)

	_, res = suite.do(http.MethodGet, "/api/v1/accounts/me", token, nil)
	suite.decode(res, &account)
	suite.Empty(account.Businesses)
}

func (suite *ServerTestSuite) TestDuplicateSubdomain() {
	token := suite.signup("ada@example.com")
	suite.createBusiness(token, "cafe")

	rec, res := suite.do(http.MethodPost, "/api/v1/businesses", token, map[string]any{
		"name":              "Other Cafe",
		"subdomain":         "cafe",
		"subscriptionModel": "voucher",
	})

	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Equal("Subdomain already exists", res.ValidationErrors["subdomain"])
}

func (suite *ServerTestSuite) TestOtherAccountsBusinessIsHidden() {
	owner := suite.signup("ada@example.com")
	business := suite.createBusiness(owner, "cafe")
	intruder := suite.signup("eve@example.com")

	rec, res := suite.do(http.MethodGet, "/api/v1/businesses/"+business.ID.Hex()+"/users", intruder, nil)

	suite.Equal(http.StatusNotFound, rec.Code)
	suite.Equal("Business not found", res.Message)
}

func (suite *ServerTestSuite) TestUserDevicesRespectLimit() {
	token := suite.signup("ada@example.com")
	business := suite.createBusiness(token, "cafe")
	base := "/api/v1/businesses/" + business.ID.Hex()

	rec, res := suite.do(http.MethodPost, base+"/users", token, map[string]any{
		"fullName": "Grace Hopper",
		"username": "grace",
		"email":    "grace@example.com",
		"password": "password123",
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var user models.User
	suite.decode(res, &user)
	suite.NotContains(string(res.Data), "password123")

	for _, mac := range []string{"aa:bb:cc:dd:ee:01", "AA-BB-CC-DD-EE-02"} {
		rec, _ = suite.do(http.MethodPost, base+"/users/"+user.ID.Hex()+"/devices", token, map[string]string{"macAddress": mac})
		suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec, res = suite.do(http.MethodPost, base+"/users/"+user.ID.Hex()+"/devices", token, map[string]string{"macAddress": "AA:BB:CC:DD:EE:03"})
	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Equal("Maximum of 2 devices allowed per user", res.Message)

	rec, res = suite.do(http.MethodDelete, base+"/users/"+user.ID.Hex()+"/devices/AA:BB:CC:DD:EE:01", token, nil)
	suite.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	suite.decode(res, &user)
	suite.Require().Len(user.Devices, 1)
	suite.Equal("AA:BB:CC:DD:EE:02", user.Devices[0].MacAddress)

	rec, res = suite.do(http.MethodDelete, base+"/users/"+user.ID.Hex()+"/devices/AA:BB:CC:DD:EE:01", token, nil)
	suite.Equal(http.StatusNotFound, rec.Code)
	suite.Equal("Device not found", res.Message)
}

func (suite *ServerTestSuite) TestSubscriptionAndVoucherFlow() {
	token := suite.signup("ada@example.com")
	business := suite.createBusiness(token, "cafe")
	base := "/api/v1/businesses/" + business.ID.Hex()

	rec, res := suite.do(http.MethodPost, base+"/plans", token, map[string]any{
		"name":     "Daily",
		"amount":   500,
		"duration": 1440,
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var plan models.SubscriptionPlan
	suite.decode(res, &plan)
	suite.Equal(models.DefaultCurrency, plan.Currency)

	rec, res = suite.do(http.MethodPost, base+"/users", token, map[string]any{
		"fullName": "Grace Hopper",
		"username": "grace",
		"email":    "grace@example.com",
		"password": "password123",
	})
	suite.Require().Equal(http.StatusCreated, rec.Code)
	var user models.User
	suite.decode(res, &user)

	rec, res = suite.do(http.MethodPost, base+"/users/"+user.ID.Hex()+"/subscriptions", token, map[string]any{
		"planId":           plan.ID.Hex(),
		"paymentReference": "PAY-0001",
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var sub models.UserSubscription
	suite.decode(res, &sub)
	suite.Equal(500.0, sub.AmountPaid)
	suite.Equal(24*time.Hour, sub.EndDate.Sub(sub.StartDate))

	rec, res = suite.do(http.MethodGet, base+"/subscriptions?status=active", token, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Equal(1, res.Results)

	rec, _ = suite.do(http.MethodPatch, base+"/subscriptions/"+sub.ID.Hex()+"/pause", token, nil)
	suite.Equal(http.StatusBadRequest, rec.Code)

	rec, res = suite.do(http.MethodPost, base+"/vouchers", token, map[string]any{
		"fullName":         "Walk In",
		"email":            "walkin@example.com",
		"planId":           plan.ID.Hex(),
		"paymentReference": "PAY-0002",
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var voucher models.VoucherSubscription
	suite.decode(res, &voucher)

	rec, res = suite.do(http.MethodGet, base+"/vouchers/"+strings.ToLower(voucher.VoucherCode), token, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)
	var found models.VoucherSubscription
	suite.decode(res, &found)
	suite.Equal(voucher.ID, found.ID)

	rec, res = suite.do(http.MethodGet, "/api/v1/businesses/"+business.ID.Hex(), token, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)
	var refreshed models.Business
	suite.decode(res, &refreshed)
	suite.Equal(1000.0, refreshed.Analytics.TotalRevenue)
}

func (suite *ServerTestSuite) TestLogoutRevokesToken() {
	token := suite.signup("ada@example.com")

	rec, _ := suite.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)

	rec, res := suite.do(http.MethodGet, "/api/v1/accounts/me", token, nil)
	suite.Equal(http.StatusUnauthorized, rec.Code)
	suite.Equal("Token has been revoked", res.Message)
}

func hexes(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}

func (suite *ServerTestSuite) TestDetailedHealth() {
	rec, _ := suite.do(http.MethodGet, "/api/v1/health/detailed", "", nil)
	suite.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Overall string                    `json:"overall_status"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	suite.Equal("healthy", body.Overall)
	suite.Len(body.Checks, 3)
	suite.Equal("healthy", body.Checks["database"]["status"])
}

func (suite *ServerTestSuite) TestRouterCRUD() {
	token := suite.signup("ada@example.com")
	business := suite.createBusiness(token, "cafe-wifi")
	base := "/api/v1/businesses/" + business.ID.Hex() + "/routers"

	rec, res := suite.do(http.MethodPost, base, token, map[string]any{
		"connection": map[string]any{"host": "10.0.0.1", "port": 8728, "username": "admin", "password": "s3cret"},
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	suite.NotContains(string(res.Data), "s3cret")
	var router models.Router
	suite.decode(res, &router)
	suite.Equal(models.RouterTypeMikrotik, router.Type)
	suite.Equal(models.RouterOffline, router.Status)

	rec, res = suite.do(http.MethodPatch, base+"/"+router.ID.Hex(), token, map[string]any{"status": "online"})
	suite.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	suite.decode(res, &router)
	suite.Equal(models.RouterOnline, router.Status)
	suite.Equal("10.0.0.1", router.Connection.Host)

	rec, res = suite.do(http.MethodGet, base, token, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Equal(1, res.Results)

	rec, _ = suite.do(http.MethodDelete, base+"/"+router.ID.Hex(), token, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)

	rec, res = suite.do(http.MethodGet, base+"/"+router.ID.Hex(), token, nil)
	suite.Equal(http.StatusNotFound, rec.Code)
	suite.Equal("Router not found", res.Message)

	rec, res = suite.do(http.MethodGet, base+"/not-an-id", token, nil)
	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Contains(res.ValidationErrors, "routerId")
}

func (suite *ServerTestSuite) TestAccountProfileAndPassword() {
	token := suite.signup("ada@example.com")
	suite.signup("grace@example.com")

	rec, res := suite.do(http.MethodPatch, "/api/v1/accounts/me", token, map[string]string{"email": "Grace@Example.com"})
	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Equal("Email already exists", res.ValidationErrors["email"])

	rec, res = suite.do(http.MethodPatch, "/api/v1/accounts/me", token, map[string]string{"fullName": "Ada King"})
	suite.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var account models.Account
	suite.decode(res, &account)
	suite.Equal("Ada King", account.FullName)

	rec, res = suite.do(http.MethodPatch, "/api/v1/accounts/me/password", token, map[string]string{
		"currentPassword": "wrong",
		"newPassword":     "N3w!password",
		"confirmPassword": "N3w!password",
	})
	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Equal("Current password is incorrect", res.ValidationErrors["currentPassword"])

	rec, _ = suite.do(http.MethodPatch, "/api/v1/accounts/me/password", token, map[string]string{
		"currentPassword": testPassword,
		"newPassword":     "N3w!password",
		"confirmPassword": "N3w!password",
	})
	suite.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = suite.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": testPassword})
	suite.Equal(http.StatusUnauthorized, rec.Code)

	rec, _ = suite.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": "N3w!password"})
	suite.Equal(http.StatusOK, rec.Code, rec.Body.String())
}
