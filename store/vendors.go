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

const vendorColumns = "id, owner_id, slug, name, category, description, website, contact_email, service_area, price_range, status, created_at"

func scanVendor(row scanner) (models.Vendor, error) {
	var v models.Vendor
	err := row.Scan(&v.ID, &v.OwnerID, &v.Slug, &v.Name, &v.Category, &v.Description, &v.Website,
		&v.ContactEmail, &v.ServiceArea, &v.PriceRange, &v.Status, &v.CreatedAt)
	return v, err
}

// VendorFilter narrows ListVendors
type VendorFilter struct {
	Category string
	State    string
	Query    string
	Status   string
}

func (s *Store) CreateVendor(ctx context.Context, ex Execer, v models.Vendor) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO vendor (id, owner_id, slug, name, category, description, website, contact_email,
		                    service_area, price_range, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, v.ID, v.OwnerID, v.Slug, v.Name, v.Category, v.Description, v.Website, v.ContactEmail,
		v.ServiceArea, v.PriceRange, v.Status, v.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert vendor: %w", err)
	}
	return nil
}

func (s *Store) UpdateVendor(ctx context.Context, v models.Vendor) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vendor
		SET name = $1, category = $2, description = $3, website = $4, contact_email = $5,
		    service_area = $6, price_range = $7
		WHERE id = $8
	`, v.Name, v.Category, v.Description, v.Website, v.ContactEmail, v.ServiceArea, v.PriceRange, v.ID)
	return expectOne(res, err, "vendor")
}

func (s *Store) GetVendorBySlug(ctx context.Context, slug string) (models.Vendor, error) {
	v, err := scanVendor(s.db.QueryRowContext(ctx, `SELECT `+vendorColumns+` FROM vendor WHERE slug = $1`, slug))
	if err != nil {
		return models.Vendor{}, notFound(err, "vendor")
	}
	return v, nil
}

func (s *Store) GetVendor(ctx context.Context, id string) (models.Vendor, error) {
	v, err := scanVendor(s.db.QueryRowContext(ctx, `SELECT `+vendorColumns+` FROM vendor WHERE id = $1`, id))
	if err != nil {
		return models.Vendor{}, notFound(err, "vendor")
	}
	return v, nil
}

func (s *Store) ListVendors(ctx context.Context, f VendorFilter) ([]models.Vendor, error) {
	var where []string
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.State != "" {
		// Nationwide vendors serve every state
		args = append(args, strings.ToUpper(f.State))
		where = append(where, fmt.Sprintf("(service_area = $%d OR service_area = 'US')", len(args)))
	}
	if f.Query != "" {
		p := likePattern(f.Query)
		args = append(args, p, p)
		where = append(where, fmt.Sprintf(`(LOWER(name) LIKE $%d ESCAPE '\' OR LOWER(description) LIKE $%d ESCAPE '\')`, len(args)-1, len(args)))
	}

	query := `SELECT ` + vendorColumns + ` FROM vendor`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendors: %w", err)
	}
	defer rows.Close()

	vendors := []models.Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// SetVendorStatus works like SetCandidateStatus
func (s *Store) SetVendorStatus(ctx context.Context, ex Execer, id, status string) (bool, error) {
	res, err := ex.ExecContext(ctx, `UPDATE vendor SET status = $1 WHERE id = $2 AND status <> $1`, status, id)
	if err := expectOne(res, err, "vendor"); !errors.Is(err, ErrNotFound) {
		return err == nil, err
	}
	res, err = ex.ExecContext(ctx, `UPDATE vendor SET status = status WHERE id = $1`, id)
	return false, expectOne(res, err, "vendor")
}

func (s *Store) CountVendorsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM vendor GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count vendors: %w", err)
	}
	return countGroups(rows)
}

func (s *Store) CreateInquiry(ctx context.Context, ex Execer, i models.Inquiry) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO vendor_inquiry (id, vendor_id, candidate_id, sender_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, i.ID, i.VendorID, i.CandidateID, i.SenderID, i.Message, i.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert inquiry: %w", err)
	}
	return nil
}
