package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"maclink/internal/apperrors"
	"maclink/internal/models"
	"maclink/internal/testsupport"
)

type RepositoryTestSuite struct {
	suite.Suite
	accounts     *testsupport.Collection
	businesses   *testsupport.Collection
	routers      *testsupport.Collection
	accountRepo  AccountRepository
	businessRepo BusinessRepository
	routerRepo   RouterRepository
	context      context.Context
}

func (suite *RepositoryTestSuite) SetupTest() {
	suite.accounts = testsupport.NewCollection(models.AccountsCollection, "email")
	suite.businesses = testsupport.NewCollection(models.BusinessesCollection, "subdomain")
	suite.routers = testsupport.NewCollection(models.RoutersCollection)
	suite.accountRepo = NewRepository[models.Account](suite.accounts, "password")
	suite.businessRepo = NewRepository[models.Business](suite.businesses)
	suite.routerRepo = NewRepository[models.Router](suite.routers, "connection.password")
	suite.context = context.Background()
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (suite *RepositoryTestSuite) createAccount(email string) *models.Account {
	account, err := suite.accountRepo.Create(suite.context, &models.Account{
		FullName: "Ada Obi",
		Email:    email,
		Password: "hashed",
		Status:   models.AccountActive,
	})
	suite.Require().NoError(err)
	return account
}

func (suite *RepositoryTestSuite) createBusiness(account *models.Account, subdomain string) *models.Business {
	business := &models.Business{Account: account.Ref(), Name: "Cafe " + subdomain, Subdomain: subdomain}
	business.ApplyDefaults(time.Now().UTC())
	created, err := suite.businessRepo.Create(suite.context, business)
	suite.Require().NoError(err)
	return created
}

func (suite *RepositoryTestSuite) TestCreate_SetsIdentityAndTimestamps() {
	account := suite.createAccount("ada@example.com")

	assert.False(suite.T(), account.ID.IsZero())
	assert.False(suite.T(), account.CreatedAt.IsZero())
	assert.Equal(suite.T(), account.CreatedAt, account.UpdatedAt)
	assert.False(suite.T(), account.IsDeleted)

	stored := suite.accounts.Documents()
	assert.Len(suite.T(), stored, 1)
	assert.Equal(suite.T(), false, stored[0]["isDeleted"])
}

func (suite *RepositoryTestSuite) TestCreateThenFindOne_RoundTrip() {
	account := suite.createAccount("ada@example.com")
	business := suite.createBusiness(account, "cafe")

	found, err := suite.businessRepo.FindOneByFilter(suite.context, bson.M{"_id": business.ID})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), business, found)
}

func (suite *RepositoryTestSuite) TestFindOne_HidesPasswordUnlessAsked() {
	account := suite.createAccount("ada@example.com")

	found, err := suite.accountRepo.FindOneByFilter(suite.context, bson.M{"_id": account.ID})
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), found.Password)

	withHidden, err := suite.accountRepo.FindOneWithHidden(suite.context, bson.M{"email": "ada@example.com"})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "hashed", withHidden.Password)
}

func (suite *RepositoryTestSuite) TestFindOne_HidesNestedPassword() {
	router, err := suite.routerRepo.Create(suite.context, &models.Router{
		Type:       models.RouterTypeMikrotik,
		Connection: models.RouterConnection{Host: "10.0.0.1", Port: 8728, Username: "admin", Password: "secret"},
		Status:     models.RouterOffline,
	})
	suite.Require().NoError(err)

	found, err := suite.routerRepo.FindOneByFilter(suite.context, bson.M{"_id": router.ID})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "10.0.0.1", found.Connection.Host)
	assert.Empty(suite.T(), found.Connection.Password)
}

func (suite *RepositoryTestSuite) TestFindOne_NotFoundReturnsNil() {
	found, err := suite.accountRepo.FindOneByFilter(suite.context, bson.M{"_id": primitive.NewObjectID()})
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), found)
}

func (suite *RepositoryTestSuite) TestSoftDeletedBusinessIsInvisible() {
	account := suite.createAccount("ada@example.com")
	business := suite.createBusiness(account, "cafe")

	deleted, err := suite.businessRepo.UpdateOneByFilter(suite.context, bson.M{"_id": business.ID}, bson.M{"isDeleted": true}, nil, nil)
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), deleted)

	items, err := suite.businessRepo.FindManyByFilter(suite.context, bson.M{"account._id": account.ID}, FindOptions{})
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), items)

	// asking for deleted documents explicitly does not bypass the scope
	found, err := suite.businessRepo.FindOneByFilter(suite.context, bson.M{"_id": business.ID, "isDeleted": true})
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), found)

	count, err := suite.businessRepo.CountDocuments(suite.context, bson.M{})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(0), count)

	// the raw store still holds it
	raw := suite.businesses.Documents()
	assert.Len(suite.T(), raw, 1)
	assert.Equal(suite.T(), true, raw[0]["isDeleted"])
}

func (suite *RepositoryTestSuite) TestFindMany_DefaultSortNewestFirst() {
	account := suite.createAccount("ada@example.com")
	repo := suite.businessRepo.(*repository[models.Business])
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, sub := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Hour)
		repo.now = func() time.Time { return at }
		suite.createBusiness(account, sub)
	}

	items, err := suite.businessRepo.FindManyByFilter(suite.context, bson.M{}, FindOptions{})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"third", "second", "first"}, subdomains(items))

	items, err = suite.businessRepo.FindManyByFilter(suite.context, bson.M{}, FindOptions{Sort: bson.D{{Key: "subdomain", Value: 1}}, Limit: 2})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"first", "second"}, subdomains(items))
}

func (suite *RepositoryTestSuite) TestFindManyPagination_MatchesCount() {
	account := suite.createAccount("ada@example.com")
	for _, sub := range []string{"a", "b", "c", "d", "e"} {
		suite.createBusiness(account, sub)
	}

	page, err := suite.businessRepo.FindManyByFilterPagination(suite.context, bson.M{"account._id": account.ID}, models.PageOptions{Page: 2, Limit: 2}, nil)
	assert.NoError(suite.T(), err)

	count, err := suite.businessRepo.CountDocuments(suite.context, bson.M{"account._id": account.ID})
	assert.NoError(suite.T(), err)

	assert.LessOrEqual(suite.T(), len(page.Items), 2)
	assert.Len(suite.T(), page.Items, 2)
	assert.Equal(suite.T(), count, page.TotalCount)
	assert.Equal(suite.T(), int64(3), page.TotalPages)
	assert.True(suite.T(), page.HasNextPage)
	assert.True(suite.T(), page.HasPrevPage)

	last, err := suite.businessRepo.FindManyByFilterPagination(suite.context, bson.M{}, models.PageOptions{Page: 3, Limit: 2}, nil)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), last.Items, 1)
	assert.False(suite.T(), last.HasNextPage)
}

func (suite *RepositoryTestSuite) TestFindOnePagination_LimitsToOne() {
	account := suite.createAccount("ada@example.com")
	suite.createBusiness(account, "a")
	suite.createBusiness(account, "b")

	page, err := suite.businessRepo.FindOneByFilterPagination(suite.context, bson.M{}, models.PageOptions{Limit: 50})
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), page.Items, 1)
	assert.Equal(suite.T(), int64(1), page.Limit)
	assert.Equal(suite.T(), int64(2), page.TotalCount)
}

func (suite *RepositoryTestSuite) TestUpdateOne_SetIncPushInOneCall() {
	account := suite.createAccount("ada@example.com")
	business := suite.createBusiness(account, "cafe")

	updated, err := suite.businessRepo.UpdateOneByFilter(suite.context,
		bson.M{"_id": business.ID},
		bson.M{"name": "Cafe Deluxe"},
		bson.M{"analytics.totalRevenue": 1500.0},
		nil,
	)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Cafe Deluxe", updated.Name)
	assert.Equal(suite.T(), 1500.0, updated.Analytics.TotalRevenue)
	assert.Equal(suite.T(), "cafe", updated.Subdomain)

	acc, err := suite.accountRepo.UpdateOneByFilter(suite.context,
		bson.M{"_id": account.ID}, nil, nil, bson.M{"businesses": business.ID})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), []primitive.ObjectID{business.ID}, acc.Businesses)
	assert.Empty(suite.T(), acc.Password)
}

func (suite *RepositoryTestSuite) TestPull_KeepsElementsPushedConcurrently() {
	users := NewRepository[models.User](testsupport.NewCollection(models.UsersCollection), "password")
	user, err := users.Create(suite.context, &models.User{
		Username: "grace",
		Devices:  []models.Device{{MacAddress: "AA:BB:CC:DD:EE:01"}},
	})
	suite.Require().NoError(err)

	// another request registers a device after this one read the user
	_, err = users.UpdateOneByFilter(suite.context, bson.M{"_id": user.ID}, nil, nil,
		bson.M{"devices": models.Device{MacAddress: "AA:BB:CC:DD:EE:02"}})
	suite.Require().NoError(err)

	updated, err := users.PullByFilter(suite.context,
		bson.M{"_id": user.ID, "devices.macAddress": "AA:BB:CC:DD:EE:01"},
		bson.M{"devices": bson.M{"macAddress": "AA:BB:CC:DD:EE:01"}})
	suite.Require().NoError(err)
	suite.Require().NotNil(updated)
	suite.Require().Len(updated.Devices, 1)
	assert.Equal(suite.T(), "AA:BB:CC:DD:EE:02", updated.Devices[0].MacAddress)

	again, err := users.PullByFilter(suite.context,
		bson.M{"_id": user.ID, "devices.macAddress": "AA:BB:CC:DD:EE:01"},
		bson.M{"devices": bson.M{"macAddress": "AA:BB:CC:DD:EE:01"}})
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), again)
}

func (suite *RepositoryTestSuite) TestPull_RemovesScalarFromArray() {
	account := suite.createAccount("ada@example.com")
	first := suite.createBusiness(account, "a")
	second := suite.createBusiness(account, "b")
	for _, id := range []primitive.ObjectID{first.ID, second.ID} {
		_, err := suite.accountRepo.UpdateOneByFilter(suite.context, bson.M{"_id": account.ID}, nil, nil, bson.M{"businesses": id})
		suite.Require().NoError(err)
	}

	updated, err := suite.accountRepo.PullByFilter(suite.context, bson.M{"_id": account.ID}, bson.M{"businesses": first.ID})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), []primitive.ObjectID{second.ID}, updated.Businesses)
}

func (suite *RepositoryTestSuite) TestUpdateOne_MissingReturnsNil() {
	updated, err := suite.businessRepo.UpdateOneByFilter(suite.context, bson.M{"_id": primitive.NewObjectID()}, bson.M{"name": "x"}, nil, nil)
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), updated)
}

func (suite *RepositoryTestSuite) TestUpdateMany_ReturnsModifiedCount() {
	account := suite.createAccount("ada@example.com")
	suite.createBusiness(account, "a")
	suite.createBusiness(account, "b")
	deleted := suite.createBusiness(account, "c")
	_, err := suite.businessRepo.UpdateOneByFilter(suite.context, bson.M{"_id": deleted.ID}, bson.M{"isDeleted": true}, nil, nil)
	suite.Require().NoError(err)

	n, err := suite.businessRepo.UpdateManyByFilter(suite.context, bson.M{"status": models.BusinessDraft}, bson.M{"status": models.BusinessActive}, nil, nil)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), n)
}

func (suite *RepositoryTestSuite) TestAggregate_PrependsSoftDeleteMatch() {
	account := suite.createAccount("ada@example.com")
	suite.createBusiness(account, "a")
	suite.createBusiness(account, "b")
	deleted := suite.createBusiness(account, "c")
	_, err := suite.businessRepo.UpdateOneByFilter(suite.context, bson.M{"_id": deleted.ID}, bson.M{"isDeleted": true}, nil, nil)
	suite.Require().NoError(err)

	results, err := suite.businessRepo.Aggregate(suite.context, []bson.D{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$account._id"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), results, 1)
	assert.Equal(suite.T(), account.ID, results[0]["_id"])
	assert.EqualValues(suite.T(), 2, results[0]["count"])
}

func (suite *RepositoryTestSuite) TestErrorsAreWrappedAsInternal() {
	cause := errors.New("connection refused")
	suite.businesses.Err = cause

	_, err := suite.businessRepo.FindManyByFilter(suite.context, bson.M{}, FindOptions{})
	var internal *apperrors.InternalError
	assert.ErrorAs(suite.T(), err, &internal)
	assert.ErrorIs(suite.T(), err, cause)
	assert.Equal(suite.T(), "connection refused", err.Error())
}

func (suite *RepositoryTestSuite) TestCreate_DuplicateKeyKeepsDriverError() {
	suite.createAccount("ada@example.com")

	_, err := suite.accountRepo.Create(suite.context, &models.Account{Email: "ada@example.com"})
	var internal *apperrors.InternalError
	assert.ErrorAs(suite.T(), err, &internal)
	assert.True(suite.T(), mongo.IsDuplicateKeyError(err))
}

func subdomains(items []models.Business) []string {
	out := make([]string, len(items))
	for i, b := range items {
		out[i] = b.Subdomain
	}
	return out
}
