package db

import (
	"connectwork/src/models"
	"connectwork/src/types"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

type StoreTestSuite struct {
	suite.Suite
	Mock  sqlmock.Sqlmock
	Store *GormStore
}

func (s *StoreTestSuite) SetupTest() {
	gormDB, mock := NewMockDB()
	s.Mock = mock
	s.Store = NewStore(gormDB)
}

func (s *StoreTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *StoreTestSuite) TestCreatePaymentAssignsID() {
	s.Mock.ExpectExec(`INSERT INTO "payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := &models.Payment{CheckoutRequestID: "ws_CO_1", JobID: uuid.New()}
	err := s.Store.CreatePayment(context.Background(), p)

	require.NoError(s.T(), err)
	assert.NotEqual(s.T(), uuid.Nil, p.ID)
	assert.Equal(s.T(), types.PAYMENT_PENDING, p.Status)
}

func (s *StoreTestSuite) TestCreateMpesaTransactionDefaultsToPending() {
	s.Mock.ExpectExec(`INSERT INTO "mpesa_transactions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	txn := &models.MpesaTransaction{CheckoutRequestID: "ws_CO_1", PhoneNumber: "254712345678", Amount: 151}
	require.NoError(s.T(), s.Store.CreateMpesaTransaction(context.Background(), txn))
	assert.Equal(s.T(), types.PAYMENT_PENDING, txn.Status)
}

func (s *StoreTestSuite) TestFindPaymentByCheckoutID() {
	id := uuid.New()
	s.Mock.ExpectQuery(`SELECT \* FROM "payments" WHERE checkout_request_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "checkout_request_id", "status"}).
			AddRow(id.String(), "ws_CO_1", "pending"))

	p, err := s.Store.FindPaymentByCheckoutID(context.Background(), "ws_CO_1")

	require.NoError(s.T(), err)
	assert.Equal(s.T(), id, p.ID)
	assert.Equal(s.T(), types.PAYMENT_PENDING, p.Status)
}

func (s *StoreTestSuite) TestFindPaymentByCheckoutIDNotFound() {
	s.Mock.ExpectQuery(`SELECT \* FROM "payments" WHERE checkout_request_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	p, err := s.Store.FindPaymentByCheckoutID(context.Background(), "missing")

	assert.Nil(s.T(), p)
	assert.True(s.T(), types.IsNotFound(err))
}

func (s *StoreTestSuite) TestTransitionPaymentApplied() {
	s.Mock.ExpectExec(`UPDATE "payments" SET .* WHERE .*id = .* AND status = `).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := s.Store.TransitionPayment(context.Background(), uuid.New(), Transition{
		Status:        types.PAYMENT_COMPLETED,
		TransactionID: "QK123ABC",
	})

	require.NoError(s.T(), err)
	assert.True(s.T(), applied)
}

func (s *StoreTestSuite) TestTransitionPaymentAlreadyTerminal() {
	s.Mock.ExpectExec(`UPDATE "payments" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := s.Store.TransitionPayment(context.Background(), uuid.New(), Transition{Status: types.PAYMENT_FAILED})

	require.NoError(s.T(), err)
	assert.False(s.T(), applied)
}

func (s *StoreTestSuite) TestTransitionPaymentError() {
	s.Mock.ExpectExec(`UPDATE "payments" SET`).
		WillReturnError(errors.New("connection reset"))

	applied, err := s.Store.TransitionPayment(context.Background(), uuid.New(), Transition{Status: types.PAYMENT_FAILED})

	assert.Error(s.T(), err)
	assert.False(s.T(), applied)
}

func (s *StoreTestSuite) TestTransactionCommits() {
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "mpesa_transactions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectExec(`UPDATE "jobs" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	err := s.Store.Transaction(context.Background(), func(tx Store) error {
		if _, err := tx.TransitionMpesaTransaction(context.Background(), "ws_CO_1", Transition{Status: types.PAYMENT_COMPLETED, ResultCode: "0"}); err != nil {
			return err
		}
		return tx.MarkJobPaid(context.Background(), uuid.New())
	})
	assert.NoError(s.T(), err)
}

func (s *StoreTestSuite) TestTransactionRollsBack() {
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "mpesa_transactions" SET`).
		WillReturnError(errors.New("deadlock detected"))
	s.Mock.ExpectRollback()

	err := s.Store.Transaction(context.Background(), func(tx Store) error {
		_, err := tx.TransitionMpesaTransaction(context.Background(), "ws_CO_1", Transition{Status: types.PAYMENT_FAILED})
		return err
	})
	assert.Error(s.T(), err)
}

func (s *StoreTestSuite) TestListStalePending() {
	s.Mock.ExpectQuery(`SELECT \* FROM "mpesa_transactions" WHERE status = \$1 AND created_at < \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"checkout_request_id", "status"}).
			AddRow("ws_CO_1", "pending").
			AddRow("ws_CO_2", "pending"))

	txns, err := s.Store.ListStalePending(context.Background(), time.Now().Add(-2*time.Minute), 50)

	require.NoError(s.T(), err)
	assert.Len(s.T(), txns, 2)
	assert.Equal(s.T(), "ws_CO_2", txns[1].CheckoutRequestID)
}

func (s *StoreTestSuite) TestListSettledPendingPayments() {
	s.Mock.ExpectQuery(`SELECT "payments"\."id",.* FROM "payments" JOIN mpesa_transactions ON mpesa_transactions\.checkout_request_id = payments\.checkout_request_id WHERE payments\.status = \$1 AND mpesa_transactions\.status <> \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "checkout_request_id", "status"}).
			AddRow(uuid.New().String(), "ws_CO_early", "pending"))

	payments, err := s.Store.ListSettledPendingPayments(context.Background(), 50)

	require.NoError(s.T(), err)
	require.Len(s.T(), payments, 1)
	assert.Equal(s.T(), "ws_CO_early", payments[0].CheckoutRequestID)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
