package infrastructure

import (
	"context"
	"regexp"
	"testing"
	"time"

	"checkout/internal/service/order/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockRepository(t *testing.T) (*GormOrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return NewGormOrderRepository(db), mock
}

func TestGormSaveInsertsNewOrder(t *testing.T) {
	repo, mock := newMockRepository(t)
	o := newOrder(t, "order-1", "user-1")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders`")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `order_items`")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSaveUpdatesExistingOrder(t *testing.T) {
	repo, mock := newMockRepository(t)
	o := newOrder(t, "order-1", "user-1")
	require.NoError(t, o.TransitionTo(domain.StatusReserving))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormFindByIDLoadsItems(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `orders` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "payment_method", "shipping_address", "total_amount", "status", "payment_id", "failure_reason", "created_at", "updated_at"}).
			AddRow("order-1", "user-1", "credit_card", `{"city":"Berlin"}`, 1998.0, "confirmed", "pay_1", "", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `order_items` WHERE `order_items`.`order_id` = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "unit_price"}).
			AddRow(1, "order-1", "phone-001", 2, 999.0))

	o, err := repo.FindByID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, o.Status)
	assert.Equal(t, "pay_1", o.PaymentID)
	assert.JSONEq(t, `{"city":"Berlin"}`, string(o.ShippingAddress))
	require.Len(t, o.Items, 1)
	assert.Equal(t, domain.Item{ProductID: "phone-001", Quantity: 2, UnitPrice: 999}, o.Items[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormFindByIDNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `orders` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
