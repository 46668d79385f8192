package scope

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"procurement-backend/internal/models"
)

const storeQueryTimeout = 5 * time.Second

// PGCompanyStore reads tenants from the companies table.
type PGCompanyStore struct {
	Pool *pgxpool.Pool
}

// ListAll returns every company ordered alphabetically.
func (s *PGCompanyStore) ListAll(ctx context.Context) ([]models.Company, error) {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, bind_location_id, bind_price_list_id,
			created_at::text, updated_at::text
		FROM companies
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(
			&c.ID, &c.Name, &c.BindLocationID, &c.BindPriceListID,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns one company by ID.
func (s *PGCompanyStore) Get(ctx context.Context, companyID string) (models.Company, error) {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	var c models.Company
	err := s.Pool.QueryRow(ctx, `
		SELECT id, name, bind_location_id, bind_price_list_id,
			created_at::text, updated_at::text
		FROM companies WHERE id = $1
	`, companyID).Scan(
		&c.ID, &c.Name, &c.BindLocationID, &c.BindPriceListID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return models.Company{}, err
	}
	return c, nil
}

// PGPreferenceStore persists per-user booleans in the user_preferences
// table, one row per (user, key).
type PGPreferenceStore struct {
	Pool *pgxpool.Pool
}

// GetBool reads a stored boolean; a missing row is false.
func (s *PGPreferenceStore) GetBool(ctx context.Context, userID, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	var value bool
	err := s.Pool.QueryRow(ctx,
		`SELECT value::boolean FROM user_preferences WHERE user_id = $1 AND key = $2`,
		userID, key,
	).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return value, nil
}

// SetBool upserts a boolean under the given key.
func (s *PGPreferenceStore) SetBool(ctx context.Context, userID, key string, value bool) error {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO user_preferences (user_id, key, value)
		VALUES ($1, $2, $3::text)
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value
	`, userID, key, value)
	return err
}

// Delete removes a stored preference. Deleting a missing row is not an error.
func (s *PGPreferenceStore) Delete(ctx context.Context, userID, key string) error {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	_, err := s.Pool.Exec(ctx,
		`DELETE FROM user_preferences WHERE user_id = $1 AND key = $2`,
		userID, key)
	return err
}
