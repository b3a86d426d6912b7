package expense_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/splax/expensetracker/internal/domain"
	"github.com/splax/expensetracker/internal/expensetest"
	"github.com/splax/expensetracker/internal/service/expense"
)

type ServiceTestSuite struct {
	suite.Suite
	ctx   context.Context
	svc   expense.Service
	alice *domain.User
	bob   *domain.User
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	store := expensetest.NewSQLiteStore(s.T())
	s.svc = expense.New(store, expensetest.DiscardLogger())

	s.alice = &domain.User{Username: "alice", Email: "alice@x.com", PasswordHash: "h"}
	s.bob = &domain.User{Username: "bob", Email: "bob@x.com", PasswordHash: "h"}
	require.NoError(s.T(), store.CreateUser(s.ctx, s.alice))
	require.NoError(s.T(), store.CreateUser(s.ctx, s.bob))
}

func jan(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func (s *ServiceTestSuite) TestCreateStampsOwner() {
	e, err := s.svc.Create(s.ctx, s.alice, domain.ExpenseInput{
		Amount:      12.5,
		Description: expensetest.Ptr("Lunch"),
		Category:    expensetest.Ptr(""),
		Date:        jan(1),
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.alice.ID, e.OwnerID)
	assert.Nil(s.T(), e.Category, "blank category is stored as absent")

	list, err := s.svc.List(s.ctx, s.alice)
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 1)
	assert.Equal(s.T(), 12.5, list[0].Amount)
}

func (s *ServiceTestSuite) TestValidation() {
	_, err := s.svc.Create(s.ctx, s.alice, domain.ExpenseInput{Amount: 1})
	assert.ErrorIs(s.T(), err, expense.ErrInvalidInput)

	_, err = s.svc.Create(s.ctx, s.alice, domain.ExpenseInput{Amount: math.Inf(1), Date: jan(1)})
	assert.ErrorIs(s.T(), err, expense.ErrInvalidInput)

	refund, err := s.svc.Create(s.ctx, s.alice, domain.ExpenseInput{Amount: -4, Date: jan(2)})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), -4.0, refund.Amount)

	_, err = s.svc.Create(s.ctx, nil, domain.ExpenseInput{Amount: 1, Date: jan(1)})
	assert.ErrorIs(s.T(), err, expense.ErrNoActor)
}

func (s *ServiceTestSuite) TestForeignExpensesLookMissing() {
	e, err := s.svc.Create(s.ctx, s.bob, domain.ExpenseInput{Amount: 9, Date: jan(3)})
	require.NoError(s.T(), err)

	_, err = s.svc.Get(s.ctx, s.alice, e.ID)
	assert.ErrorIs(s.T(), err, expense.ErrNotFound)
	_, err = s.svc.Update(s.ctx, s.alice, e.ID, domain.ExpenseInput{Amount: 0, Date: jan(3)})
	assert.ErrorIs(s.T(), err, expense.ErrNotFound)
	_, err = s.svc.Delete(s.ctx, s.alice, e.ID)
	assert.ErrorIs(s.T(), err, expense.ErrNotFound)
	_, err = s.svc.Get(s.ctx, s.alice, 9999)
	assert.ErrorIs(s.T(), err, expense.ErrNotFound)

	still, err := s.svc.Get(s.ctx, s.bob, e.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 9.0, still.Amount)
}

func (s *ServiceTestSuite) TestUpdateAndDelete() {
	e, err := s.svc.Create(s.ctx, s.alice, domain.ExpenseInput{Amount: 5, Description: expensetest.Ptr("Taxi"), Date: jan(4)})
	require.NoError(s.T(), err)

	updated, err := s.svc.Update(s.ctx, s.alice, e.ID, domain.ExpenseInput{Amount: 7, Category: expensetest.Ptr("travel"), Date: jan(5)})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 7.0, updated.Amount)
	assert.Nil(s.T(), updated.Description)
	assert.Equal(s.T(), s.alice.ID, updated.OwnerID)

	removed, err := s.svc.Delete(s.ctx, s.alice, e.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), e.ID, removed.ID)
	require.NotNil(s.T(), removed.Category)
	assert.Equal(s.T(), "travel", *removed.Category)

	_, err = s.svc.Get(s.ctx, s.alice, e.ID)
	assert.ErrorIs(s.T(), err, expense.ErrNotFound)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}
