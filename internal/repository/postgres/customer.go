package postgres

import (
	"context"

	"github.com/saasinvoice/billing/internal/domain/customer"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/postgres"
)

type customerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewCustomerRepository(db *postgres.DB, logger *logger.Logger) customer.Repository {
	return &customerRepository{db: db, logger: logger}
}

const customerColumns = `id, user_id, email, company_name, tax_id, address_line1, address_line2,
	city, state, postal_code, country, created_at, updated_at`

func (r *customerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES (
			:id, :user_id, :email, :company_name, :tax_id, :address_line1, :address_line2,
			:city, :state, :postal_code, :country, :created_at, :updated_at
		)
		ON CONFLICT (user_id) DO NOTHING`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, c)
	if err != nil {
		return postgres.TranslateError(err, "customer", map[string]any{"user_id": c.UserID})
	}
	inserted, err := rowsChanged(res)
	if err != nil {
		return err
	}
	if !inserted {
		return ierr.NewError("customer already exists").
			WithHint("A customer already exists for this user").
			WithReportableDetails(map[string]any{"user_id": c.UserID}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	var c customer.Customer
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &c, query, id); err != nil {
		return nil, postgres.TranslateError(err, "customer", map[string]any{"customer_id": id})
	}
	return &c, nil
}

func (r *customerRepository) GetByUserID(ctx context.Context, userID string) (*customer.Customer, error) {
	var c customer.Customer
	query := `SELECT ` + customerColumns + ` FROM customers WHERE user_id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &c, query, userID); err != nil {
		return nil, postgres.TranslateError(err, "customer", map[string]any{"user_id": userID})
	}
	return &c, nil
}

func (r *customerRepository) Update(ctx context.Context, c *customer.Customer) error {
	query := `
		UPDATE customers SET
			email = :email,
			company_name = :company_name,
			tax_id = :tax_id,
			address_line1 = :address_line1,
			address_line2 = :address_line2,
			city = :city,
			state = :state,
			postal_code = :postal_code,
			country = :country,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, c)
	if err != nil {
		return postgres.TranslateError(err, "customer", map[string]any{"customer_id": c.ID})
	}
	return requireRow(res, "customer", c.ID)
}
