// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/ballotline/auth"
	"github.com/danielhkuo/ballotline/metrics"
	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/store"
)

// Store is the persistence an import needs; *store.Store satisfies it
type Store interface {
	Now() time.Time
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	FindCandidate(ctx context.Context, electionID, name, office, district string) (models.Candidate, error)
	CreateCandidate(ctx context.Context, ex store.Execer, c models.Candidate) error
	CreateImportJob(ctx context.Context, ex store.Execer, j models.ImportJob) error
}

type Importer struct {
	Store Store
}

func NewImporter(st Store) *Importer {
	return &Importer{Store: st}
}

// Import loads a candidate spreadsheet into an election. Rows already on
// the ballot are skipped; new rows go in verified because an admin vouched
// for the file. The whole batch and its job record commit together.
func (im *Importer) Import(ctx context.Context, electionID, actorID, filename string, r io.Reader) (models.ImportReport, error) {
	parsed, err := ParseCandidates(r)
	if err != nil {
		return models.ImportReport{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	report := models.ImportReport{
		JobID:  uuid.NewString(),
		Total:  parsed.Total,
		Errors: []string{},
	}
	for _, e := range parsed.Errors {
		report.Errors = append(report.Errors, e.Error())
	}

	// Existence checks run before the transaction opens; SQLite allows a
	// single connection.
	var fresh []Row
	for _, row := range parsed.Rows {
		_, err := im.Store.FindCandidate(ctx, electionID, row.Name, row.Office, row.District)
		switch {
		case err == nil:
			report.Skipped++
		case errors.Is(err, store.ErrNotFound):
			fresh = append(fresh, row)
		default:
			return models.ImportReport{}, err
		}
	}
	report.Skipped += len(parsed.Errors)

	now := im.Store.Now()
	err = im.Store.InTx(ctx, func(tx *sql.Tx) error {
		for _, row := range fresh {
			slug, err := auth.UniqueSlug(row.Name)
			if err != nil {
				return err
			}
			c := models.Candidate{
				ID:           uuid.NewString(),
				ElectionID:   electionID,
				Slug:         slug,
				Name:         row.Name,
				Office:       row.Office,
				District:     row.District,
				Party:        row.Party,
				Bio:          row.Bio,
				Website:      row.Website,
				ContactEmail: row.Email,
				Status:       models.CandidateVerified,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := im.Store.CreateCandidate(ctx, tx, c); err != nil {
				return fmt.Errorf("line %d: %w", row.Line, err)
			}
			report.Imported++
		}

		return im.Store.CreateImportJob(ctx, tx, models.ImportJob{
			ID:         report.JobID,
			ElectionID: electionID,
			Filename:   filename,
			TotalRows:  report.Total,
			Imported:   report.Imported,
			Skipped:    report.Skipped,
			Errors:     report.Errors,
			CreatedBy:  actorID,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return models.ImportReport{}, err
	}

	metrics.CandidatesImported.Add(float64(report.Imported))
	slog.Info("candidate import finished",
		"job_id", report.JobID,
		"election_id", electionID,
		"filename", filename,
		"total", report.Total,
		"imported", report.Imported,
		"skipped", report.Skipped,
	)
	return report, nil
}
