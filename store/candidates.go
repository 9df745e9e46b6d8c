// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielhkuo/ballotline/models"
)

const candidateColumns = "id, owner_id, election_id, slug, name, office, district, party, bio, website, photo_url, contact_email, status, donations_enabled, created_at, updated_at"

func scanCandidate(row scanner) (models.Candidate, error) {
	var c models.Candidate
	err := row.Scan(&c.ID, &c.OwnerID, &c.ElectionID, &c.Slug, &c.Name, &c.Office, &c.District,
		&c.Party, &c.Bio, &c.Website, &c.PhotoURL, &c.ContactEmail, &c.Status, &c.DonationsEnabled,
		&c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CandidateFilter narrows ListCandidates
type CandidateFilter struct {
	ElectionID string
	Office     string
	Query      string
	Status     string
	Limit      int
}

// CreateCandidate inserts c using ex, so imports can batch inside a transaction
func (s *Store) CreateCandidate(ctx context.Context, ex Execer, c models.Candidate) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO candidate (id, owner_id, election_id, slug, name, office, district, party, bio,
		                       website, photo_url, contact_email, status, donations_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, c.ID, c.OwnerID, c.ElectionID, c.Slug, c.Name, c.Office, c.District, c.Party, c.Bio,
		c.Website, c.PhotoURL, c.ContactEmail, c.Status, c.DonationsEnabled, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert candidate: %w", err)
	}
	return nil
}

// UpdateCandidate saves the editable profile fields of c
func (s *Store) UpdateCandidate(ctx context.Context, ex Execer, c models.Candidate) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE candidate
		SET name = $1, office = $2, district = $3, party = $4, bio = $5, website = $6,
		    photo_url = $7, contact_email = $8, donations_enabled = $9, updated_at = $10
		WHERE id = $11
	`, c.Name, c.Office, c.District, c.Party, c.Bio, c.Website, c.PhotoURL, c.ContactEmail,
		c.DonationsEnabled, c.UpdatedAt, c.ID)
	return expectOne(res, err, "candidate")
}

func (s *Store) GetCandidateBySlug(ctx context.Context, slug string) (models.Candidate, error) {
	c, err := scanCandidate(s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidate WHERE slug = $1`, slug))
	if err != nil {
		return models.Candidate{}, notFound(err, "candidate")
	}
	return c, nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (models.Candidate, error) {
	c, err := scanCandidate(s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidate WHERE id = $1`, id))
	if err != nil {
		return models.Candidate{}, notFound(err, "candidate")
	}
	return c, nil
}

// FindCandidate looks up a candidate in an election by name, office and
// district, ignoring case. SQLite's LOWER folds ASCII only, so the match is
// done here with Unicode case folding.
func (s *Store) FindCandidate(ctx context.Context, electionID, name, office, district string) (models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+candidateColumns+` FROM candidate WHERE election_id = $1`, electionID)
	if err != nil {
		return models.Candidate{}, fmt.Errorf("failed to query candidate: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return models.Candidate{}, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if strings.EqualFold(c.Name, name) && strings.EqualFold(c.Office, office) && strings.EqualFold(c.District, district) {
			return c, nil
		}
	}
	if err := rows.Err(); err != nil {
		return models.Candidate{}, fmt.Errorf("failed to query candidate: %w", err)
	}
	return models.Candidate{}, ErrNotFound
}

func (s *Store) ListCandidates(ctx context.Context, f CandidateFilter) ([]models.Candidate, error) {
	var where []string
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.ElectionID != "" {
		add("election_id = $%d", f.ElectionID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Office != "" {
		add("LOWER(office) = $%d", strings.ToLower(f.Office))
	}
	if f.Query != "" {
		add(`LOWER(name) LIKE $%d ESCAPE '\'`, likePattern(f.Query))
	}

	query := `SELECT ` + candidateColumns + ` FROM candidate`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY office, district, name"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// SetCandidateStatus moves a candidate to status and reports whether the
// row changed. Only one of several concurrent callers sees true.
func (s *Store) SetCandidateStatus(ctx context.Context, ex Execer, id, status string) (bool, error) {
	res, err := ex.ExecContext(ctx, `UPDATE candidate SET status = $1, updated_at = $2 WHERE id = $3 AND status <> $1`, status, s.now(), id)
	if err := expectOne(res, err, "candidate"); !errors.Is(err, ErrNotFound) {
		return err == nil, err
	}
	res, err = ex.ExecContext(ctx, `UPDATE candidate SET status = status WHERE id = $1`, id)
	return false, expectOne(res, err, "candidate")
}

func (s *Store) CountCandidatesByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM candidate GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count candidates: %w", err)
	}
	return countGroups(rows)
}

func (s *Store) CreatePost(ctx context.Context, ex Execer, p models.Post) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO candidate_post (id, candidate_id, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.CandidateID, p.Title, p.Body, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// ListPosts returns the newest posts first
func (s *Store) ListPosts(ctx context.Context, candidateID string, limit int) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, candidate_id, title, body, created_at
		FROM candidate_post
		WHERE candidate_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, candidateID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.CandidateID, &p.Title, &p.Body, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
