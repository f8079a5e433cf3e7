package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/glaciersoft/snowgate/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateCustomer creates a new customer.
func (db *DB) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO customers (id, org, name, tier, developer_seats, stakeholder_seats, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, customer.ID, customer.Org, customer.Name, customer.Tier, customer.DeveloperSeats,
		customer.StakeholderSeats, customer.ExpiresAt, customer.CreatedAt, customer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

// GetCustomerByOrg returns the customer owning the given org token.
func (db *DB) GetCustomerByOrg(ctx context.Context, org string) (*models.Customer, error) {
	return scanCustomer(db.Pool.QueryRow(ctx, `
		SELECT id, org, name, tier, developer_seats, stakeholder_seats, expires_at, created_at, updated_at
		FROM customers
		WHERE org = $1
	`, org))
}

// GetCustomerByID returns a customer by its ID.
func (db *DB) GetCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return scanCustomer(db.Pool.QueryRow(ctx, `
		SELECT id, org, name, tier, developer_seats, stakeholder_seats, expires_at, created_at, updated_at
		FROM customers
		WHERE id = $1
	`, id))
}

// UpdateCustomerSeats updates a customer's per-role seat totals.
func (db *DB) UpdateCustomerSeats(ctx context.Context, id uuid.UUID, devSeats, stakeSeats int) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE customers
		SET developer_seats = $2, stakeholder_seats = $3, updated_at = NOW()
		WHERE id = $1
	`, id, devSeats, stakeSeats)
	if err != nil {
		return fmt.Errorf("update customer seats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.Org, &c.Name, &c.Tier, &c.DeveloperSeats,
		&c.StakeholderSeats, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return &c, nil
}
