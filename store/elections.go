// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielhkuo/ballotline/models"
)

const electionColumns = "id, slug, name, jurisdiction, state, election_date, registration_deadline, description, published, created_at"

func scanElection(row scanner) (models.Election, error) {
	var e models.Election
	err := row.Scan(&e.ID, &e.Slug, &e.Name, &e.Jurisdiction, &e.State, &e.ElectionDate,
		&e.RegistrationDeadline, &e.Description, &e.Published, &e.CreatedAt)
	return e, err
}

// ElectionFilter narrows ListElections
type ElectionFilter struct {
	State         string
	UpcomingOnly  bool
	PublishedOnly bool
}

func (s *Store) CreateElection(ctx context.Context, e models.Election) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO election (id, slug, name, jurisdiction, state, election_date, registration_deadline, description, published, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.Slug, e.Name, e.Jurisdiction, e.State, e.ElectionDate, e.RegistrationDeadline, e.Description, e.Published, e.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert election: %w", err)
	}
	return nil
}

// UpdateElection saves e using ex, so change events can share the transaction
func (s *Store) UpdateElection(ctx context.Context, ex Execer, e models.Election) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE election
		SET name = $1, jurisdiction = $2, state = $3, election_date = $4,
		    registration_deadline = $5, description = $6, published = $7
		WHERE id = $8
	`, e.Name, e.Jurisdiction, e.State, e.ElectionDate, e.RegistrationDeadline, e.Description, e.Published, e.ID)
	return expectOne(res, err, "election")
}

func (s *Store) GetElectionBySlug(ctx context.Context, slug string) (models.Election, error) {
	e, err := scanElection(s.db.QueryRowContext(ctx, `SELECT `+electionColumns+` FROM election WHERE slug = $1`, slug))
	if err != nil {
		return models.Election{}, notFound(err, "election")
	}
	return e, nil
}

func (s *Store) ListElections(ctx context.Context, f ElectionFilter) ([]models.Election, error) {
	var where []string
	var args []any
	if f.PublishedOnly {
		where = append(where, "published = TRUE")
	}
	if f.State != "" {
		args = append(args, strings.ToUpper(f.State))
		where = append(where, fmt.Sprintf("state = $%d", len(args)))
	}
	if f.UpcomingOnly {
		args = append(args, s.now())
		where = append(where, fmt.Sprintf("election_date >= $%d", len(args)))
	}

	query := `SELECT ` + electionColumns + ` FROM election`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY election_date, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query elections: %w", err)
	}
	defer rows.Close()

	elections := []models.Election{}
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan election: %w", err)
		}
		elections = append(elections, e)
	}
	return elections, rows.Err()
}

func (s *Store) CountElections(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM election`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count elections: %w", err)
	}
	return n, nil
}
