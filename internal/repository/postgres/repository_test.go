package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/saasinvoice/billing/internal/domain/coupon"
	"github.com/saasinvoice/billing/internal/domain/customer"
	"github.com/saasinvoice/billing/internal/domain/invoice"
	"github.com/saasinvoice/billing/internal/domain/payment"
	"github.com/saasinvoice/billing/internal/domain/subscription"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/postgres"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type RepositorySuite struct {
	suite.Suite
	ctx  context.Context
	mock sqlmock.Sqlmock
	db   *postgres.DB
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	conn, mock, err := sqlmock.New()
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.mock = mock
	s.db = postgres.NewFromSQLX(sqlx.NewDb(conn, "postgres"), logger.NewNoopLogger())
}

func (s *RepositorySuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *RepositorySuite) TestCouponRedeem() {
	repo := NewCouponRepository(s.db, logger.NewNoopLogger())
	now := time.Now().UTC()

	s.Run("increments when redeemable", func() {
		s.mock.ExpectExec(regexp.QuoteMeta("UPDATE coupons SET")).
			WithArgs("coupon_1", now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		s.NoError(repo.Redeem(s.ctx, "coupon_1", now))
	})

	s.Run("exhausted coupon is a validation error", func() {
		s.mock.ExpectExec(regexp.QuoteMeta("UPDATE coupons SET")).
			WithArgs("coupon_1", now).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Redeem(s.ctx, "coupon_1", now)
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}

func (s *RepositorySuite) TestCouponGetByCodeNotFound() {
	repo := NewCouponRepository(s.db, logger.NewNoopLogger())

	s.mock.ExpectQuery(regexp.QuoteMeta("FROM coupons WHERE code = $1")).
		WithArgs("MISSING").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByCode(s.ctx, "MISSING")
	s.True(ierr.IsNotFound(err))
}

func (s *RepositorySuite) TestInvoiceNextSequence() {
	repo := NewInvoiceRepository(s.db, logger.NewNoopLogger())

	s.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invoice_sequences")).
		WithArgs("INV-2025").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))

	next, err := repo.NextSequence(s.ctx, "INV-2025")
	s.NoError(err)
	s.Equal(int64(7), next)
}

func (s *RepositorySuite) TestInvoiceUpdateStatusConflict() {
	repo := NewInvoiceRepository(s.db, logger.NewNoopLogger())
	now := time.Now().UTC()
	inv := &invoice.Invoice{ID: "inv_1", Status: types.InvoiceStatusPaid, PaidAt: &now, UpdatedAt: now}

	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("inv_1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateStatus(s.ctx, inv, types.InvoiceStatusOpen)
	s.Error(err)
	s.True(ierr.IsVersionConflict(err))
}

func (s *RepositorySuite) TestSubscriptionUpdateGuardsStatus() {
	repo := NewSubscriptionRepository(s.db, logger.NewNoopLogger())
	now := time.Now().UTC()
	sub := &subscription.Subscription{
		ID:                "subs_1",
		Status:            types.SubscriptionStatusActive,
		CancelAtPeriodEnd: true,
		UpdatedAt:         now,
	}

	s.Run("applies while status matches", func() {
		s.mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $8")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		s.NoError(repo.Update(s.ctx, sub, types.SubscriptionStatusActive))
	})

	s.Run("canceled row is a conflict", func() {
		s.mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		s.mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM subscriptions")).
			WithArgs("subs_1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := repo.Update(s.ctx, sub, types.SubscriptionStatusActive)
		s.True(ierr.IsVersionConflict(err))
	})

	s.Run("missing row is not found", func() {
		s.mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		s.mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM subscriptions")).
			WithArgs("subs_1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := repo.Update(s.ctx, sub, types.SubscriptionStatusActive)
		s.True(ierr.IsNotFound(err))
	})
}

func (s *RepositorySuite) TestInvoiceGetForUpdateLocksRow() {
	repo := NewInvoiceRepository(s.db, logger.NewNoopLogger())

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM invoices WHERE id = $1 FOR UPDATE")).
		WithArgs("inv_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("inv_1", "draft"))
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM invoice_items WHERE invoice_id = $1")).
		WithArgs("inv_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_id", "quantity", "unit_amount"}).
			AddRow("inv_line_1", "inv_1", 2, 500))
	s.mock.ExpectCommit()

	err := s.db.WithTx(s.ctx, func(ctx context.Context) error {
		inv, err := repo.GetForUpdate(ctx, "inv_1")
		if err != nil {
			return err
		}
		s.Equal(types.InvoiceStatusDraft, inv.Status)
		s.Len(inv.Items, 1)
		s.Equal(int64(1000), inv.Items[0].Total())
		return nil
	})
	s.NoError(err)
}

func (s *RepositorySuite) TestInvoiceCreateWritesItemsInTransaction() {
	repo := NewInvoiceRepository(s.db, logger.NewNoopLogger())
	now := time.Now().UTC()
	inv := &invoice.Invoice{
		ID:       "inv_1",
		Number:   "INV-2025-000001",
		Currency: "USD",
		Status:   types.InvoiceStatusDraft,
		Items: []*invoice.InvoiceItem{
			{ID: "inv_line_1", InvoiceID: "inv_1", Description: "Pro", Quantity: 1, UnitAmount: 2900, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoice_items")).WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	s.NoError(repo.Create(s.ctx, inv))
}

func (s *RepositorySuite) TestPaymentCreateDuplicate() {
	repo := NewPaymentRepository(s.db, logger.NewNoopLogger())

	s.mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(s.ctx, &payment.Payment{ID: "pay_1", InvoiceID: "inv_1", Status: types.PaymentStatusSucceeded})
	s.True(ierr.IsAlreadyExists(err))
}

func (s *RepositorySuite) TestPaymentUpdateStatusGuard() {
	repo := NewPaymentRepository(s.db, logger.NewNoopLogger())
	now := time.Now().UTC()
	p := &payment.Payment{ID: "pay_1", Status: types.PaymentStatusSucceeded, ProcessedAt: &now, UpdatedAt: now}

	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.UpdateStatus(s.ctx, p, types.PaymentStatusRequiresAction, types.PaymentStatusFailed)
	s.NoError(err)
	s.False(changed)
}

func (s *RepositorySuite) TestPaymentGetForUpdateLocksRow() {
	repo := NewPaymentRepository(s.db, logger.NewNoopLogger())

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = $1 FOR UPDATE")).
		WithArgs("pay_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "amount"}).AddRow("pay_1", "succeeded", 2900))
	s.mock.ExpectCommit()

	err := s.db.WithTx(s.ctx, func(ctx context.Context) error {
		p, err := repo.GetForUpdate(ctx, "pay_1")
		if err != nil {
			return err
		}
		s.True(p.IsSucceeded())
		s.Equal(int64(2900), p.Amount)
		return nil
	})
	s.NoError(err)
}

func (s *RepositorySuite) TestCustomerCreateConflictKeepsTransaction() {
	repo := NewCustomerRepository(s.db, logger.NewNoopLogger())

	s.mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(s.ctx, &customer.Customer{ID: "cust_1", UserID: "u_1"})
	s.True(ierr.IsAlreadyExists(err))
}

func (s *RepositorySuite) TestCouponCreateDuplicateCode() {
	repo := NewCouponRepository(s.db, logger.NewNoopLogger())

	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coupons")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(s.ctx, &coupon.Coupon{ID: "coupon_1", Code: "WELCOME20"})
	s.True(ierr.IsAlreadyExists(err))
}
