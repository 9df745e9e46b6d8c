// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/danielhkuo/ballotline/models"
)

const userColumns = "id, auth_subject, email, display_name, role, email_opt_out, created_at"

func scanUser(row scanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.AuthSubject, &u.Email, &u.DisplayName, &u.Role, &u.EmailOptOut, &u.CreatedAt)
	return u, err
}

// UpsertUser records an identity from the auth provider. The email is
// refreshed on every sign-in; admin promotes the user but never demotes.
func (s *Store) UpsertUser(ctx context.Context, subject, email, name string, admin bool) (models.User, error) {
	role := models.RoleVoter
	if admin {
		role = models.RoleAdmin
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_user (id, auth_subject, email, display_name, role, email_opt_out, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		ON CONFLICT (auth_subject) DO UPDATE SET
			email = excluded.email,
			display_name = CASE WHEN app_user.display_name = '' THEN excluded.display_name ELSE app_user.display_name END,
			role = CASE WHEN excluded.role = 'admin' THEN 'admin' ELSE app_user.role END
	`, uuid.NewString(), subject, strings.ToLower(strings.TrimSpace(email)), strings.TrimSpace(name), role, s.now())
	if err != nil {
		return models.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}

	// Read back separately; SQLite reports no column types for RETURNING
	// rows, so timestamps would not scan.
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM app_user WHERE auth_subject = $1`, subject))
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM app_user WHERE id = $1`, id))
	if err != nil {
		return models.User{}, notFound(err, "user")
	}
	return u, nil
}

func (s *Store) SetDisplayName(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE app_user SET display_name = $1 WHERE id = $2`, name, id)
	return expectOne(res, err, "user")
}

func (s *Store) SetUserRole(ctx context.Context, id, role string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE app_user SET role = $1 WHERE id = $2`, role, id)
	return expectOne(res, err, "user")
}

// PromoteUser upgrades a voter to role, leaving other roles untouched
func (s *Store) PromoteUser(ctx context.Context, ex Execer, id, role string) error {
	_, err := ex.ExecContext(ctx, `UPDATE app_user SET role = $1 WHERE id = $2 AND role = 'voter'`, role, id)
	if err != nil {
		return fmt.Errorf("failed to promote user: %w", err)
	}
	return nil
}

func (s *Store) SetEmailOptOut(ctx context.Context, id string, optOut bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE app_user SET email_opt_out = $1 WHERE id = $2`, optOut, id)
	return expectOne(res, err, "user")
}

func (s *Store) CountUsersByRole(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM app_user GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	return countGroups(rows)
}
