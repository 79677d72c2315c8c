package addresses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/postgres"
)

const columns = `id, user_id, label, first_name, last_name, company, street, street2,
	city, state, postal_code, country, phone, is_default, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanAddress(row interface{ Scan(...any) error }) (*domain.Address, error) {
	var a domain.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.FirstName, &a.LastName, &a.Company, &a.Street, &a.Street2,
		&a.City, &a.State, &a.PostalCode, &a.Country, &a.Phone, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns the default address first, then the newest.
func (r *Repository) List(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []domain.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, userID, id string) (*domain.Address, error) {
	return Get(ctx, r.db, userID, id)
}

// Get returns the address only if it belongs to userID, nil otherwise.
func Get(ctx context.Context, q postgres.Querier, userID, id string) (*domain.Address, error) {
	a, err := scanAddress(q.QueryRowContext(ctx, `SELECT `+columns+` FROM addresses
		WHERE id::text = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func clearDefault(ctx context.Context, tx *sql.Tx, userID, keepID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE addresses SET is_default = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_default AND id::text <> $2
	`, userID, keepID)
	return err
}

const oneDefaultIndex = "addresses_one_default_per_user"

// defaultTaken reports that a concurrent transaction committed another
// default address for the same user first.
func defaultTaken(err error) bool {
	return postgres.IsUniqueViolation(err) && postgres.ConstraintName(err) == oneDefaultIndex
}

// write runs fn in a transaction after clearing the user's other default
// when a is the default. Losing the default slot to a concurrent writer is
// retried once, then reported as domain.ErrDuplicate.
func (r *Repository) write(ctx context.Context, a *domain.Address, fn func(tx *sql.Tx) error) error {
	run := func() error {
		return postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
			if a.IsDefault {
				if err := clearDefault(ctx, tx, a.UserID, a.ID); err != nil {
					return err
				}
			}
			return fn(tx)
		})
	}

	err := run()
	if defaultTaken(err) {
		err = run()
	}
	if defaultTaken(err) {
		return fmt.Errorf("default address: %w", domain.ErrDuplicate)
	}
	return err
}

func (r *Repository) Create(ctx context.Context, a *domain.Address) error {
	a.ID = uuid.New().String()

	err := r.write(ctx, a, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
			INSERT INTO addresses (id, user_id, label, first_name, last_name, company, street, street2,
				city, state, postal_code, country, phone, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING created_at, updated_at
		`, a.ID, a.UserID, a.Label, a.FirstName, a.LastName, a.Company, a.Street, a.Street2,
			a.City, a.State, a.PostalCode, a.Country, a.Phone, a.IsDefault).Scan(&a.CreatedAt, &a.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("create address: %w", err)
	}
	return nil
}

// Update writes every column of a. The caller has already checked ownership.
func (r *Repository) Update(ctx context.Context, a *domain.Address) error {
	err := r.write(ctx, a, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
			UPDATE addresses SET label = $3, first_name = $4, last_name = $5, company = $6, street = $7,
				street2 = $8, city = $9, state = $10, postal_code = $11, country = $12, phone = $13,
				is_default = $14, updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING updated_at
		`, a.ID, a.UserID, a.Label, a.FirstName, a.LastName, a.Company, a.Street,
			a.Street2, a.City, a.State, a.PostalCode, a.Country, a.Phone, a.IsDefault).Scan(&a.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	return nil
}

// Delete reports whether a row owned by userID was removed.
func (r *Repository) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id::text = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete address: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
