package access

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"procurement-backend/internal/models"
)

const storeQueryTimeout = 5 * time.Second

// PGProfileStore reads identity profiles from the users table.
type PGProfileStore struct {
	Pool *pgxpool.Pool
}

// Profile fetches the role and company of one user. A missing row is
// ErrProfileNotFound; any other failure is surfaced as-is.
func (s *PGProfileStore) Profile(ctx context.Context, userID string) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	var p Profile
	err := s.Pool.QueryRow(ctx,
		`SELECT role, company_id::text FROM users WHERE id = $1`, userID,
	).Scan(&p.Role, &p.CompanyID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// PGMembershipStore reads project membership rows.
type PGMembershipStore struct {
	Pool *pgxpool.Pool
}

// ListByUser returns all memberships of one user.
func (s *PGMembershipStore) ListByUser(ctx context.Context, userID string) ([]models.ProjectMembership, error) {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT project_id::text, user_id::text, requires_approval
		 FROM project_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// ListByProjects returns all memberships across the given projects.
func (s *PGMembershipStore) ListByProjects(ctx context.Context, projectIDs []string) ([]models.ProjectMembership, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT project_id::text, user_id::text, requires_approval
		 FROM project_members WHERE project_id = ANY($1)`, projectIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMemberships(rows)
}

func scanMemberships(rows pgx.Rows) ([]models.ProjectMembership, error) {
	var out []models.ProjectMembership
	for rows.Next() {
		var m models.ProjectMembership
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.RequiresApproval); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PGProjectStore reads supervised projects.
type PGProjectStore struct {
	Pool *pgxpool.Pool
}

// ListSupervised returns the IDs of projects supervised by the user.
func (s *PGProjectStore) ListSupervised(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT id::text FROM projects WHERE supervisor_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
