package middleware

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"maclink/internal/apperrors"
	"maclink/internal/common"
	"maclink/internal/models"
	"maclink/internal/services"
)

const (
	BusinessParam      = "businessId"
	BusinessContextKey = "business"
)

// OwnershipMiddleware restricts business-scoped routes to the account that
// owns the business.
type OwnershipMiddleware struct {
	businesses services.BusinessService
}

func NewOwnershipMiddleware(businesses services.BusinessService) *OwnershipMiddleware {
	return &OwnershipMiddleware{businesses: businesses}
}

// RequireBusinessOwner loads the business named by the :businessId path
// parameter. Businesses of other accounts are reported as missing.
func (m *OwnershipMiddleware) RequireBusinessOwner() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accountID, err := AccountID(c)
			if err != nil {
				return err
			}
			businessID, err := common.ParseObjectID(c.Param(BusinessParam), BusinessParam)
			if err != nil {
				return err
			}

			business, err := m.businesses.FindOneByFilter(c.Request().Context(), bson.M{
				"_id":         businessID,
				"account._id": accountID,
			})
			if err != nil {
				return err
			}
			if business == nil {
				return apperrors.NotFound("Business")
			}

			c.Set(BusinessContextKey, business)
			return next(c)
		}
	}
}

// GetBusiness returns the business loaded by RequireBusinessOwner.
func GetBusiness(c echo.Context) *models.Business {
	business, _ := c.Get(BusinessContextKey).(*models.Business)
	return business
}
