// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/ballotline/models"
	"github.com/danielhkuo/ballotline/store"
	"github.com/danielhkuo/ballotline/testutil"
)

func TestImporter_Import(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	election := testutil.CreateTestElection(t, st, "springfield-2026", time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC))

	// already on the ballot, must be skipped
	existing := testutil.CreateTestCandidate(t, st, election.ID, "jane-doe", "Mayor", models.CandidatePending, nil)
	require.NoError(t, st.UpdateCandidate(ctx, st.DB(), models.Candidate{
		ID: existing.ID, Name: "Jane Doe", Office: "Mayor", UpdatedAt: testutil.Now,
	}))

	input := "Name,Office,District,Party,Website,Email\n" +
		"JANE DOE,mayor,,,,\n" +
		"Bob Smith,City Council,Ward 2,Green,https://bob.test,bob@bob.test\n" +
		"Bob Smith,City Council,Ward 2,,,\n" +
		",Clerk,,,,\n"

	report, err := NewImporter(st).Import(ctx, election.ID, "admin-1", "ballot.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, []string{"line 4: duplicate of line 3", "line 5: name is required"}, report.Errors)
	assert.NotEmpty(t, report.JobID)

	bob, err := st.FindCandidate(ctx, election.ID, "bob smith", "city council", "ward 2")
	require.NoError(t, err)
	assert.Equal(t, models.CandidateVerified, bob.Status)
	assert.Equal(t, "Green", bob.Party)
	assert.True(t, strings.HasPrefix(bob.Slug, "bob-smith-"))
	assert.Equal(t, "bob@bob.test", bob.ContactEmail)

	var jobs int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM import_job WHERE id = $1`, report.JobID).Scan(&jobs))
	assert.Equal(t, 1, jobs)
}

func TestImporter_NonASCIIDuplicate(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	election := testutil.CreateTestElection(t, st, "springfield-2026", time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC))

	first, err := NewImporter(st).Import(ctx, election.ID, "admin-1", "a.csv", strings.NewReader("Name,Office\nJosé Ruiz,Alcalde Único\n"))
	require.NoError(t, err)
	require.Equal(t, 1, first.Imported)

	second, err := NewImporter(st).Import(ctx, election.ID, "admin-1", "b.csv", strings.NewReader("Name,Office\nJOSÉ RUIZ,ALCALDE ÚNICO\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 1, second.Skipped)

	c, err := st.FindCandidate(ctx, election.ID, "josé ruiz", "alcalde único", "")
	require.NoError(t, err)
	assert.Equal(t, "José Ruiz", c.Name)
}

func TestImporter_BadHeader(t *testing.T) {
	st := testutil.NewTestStore(t)
	_, err := NewImporter(st).Import(context.Background(), "e1", "admin-1", "x.csv", strings.NewReader("foo,bar\n1,2\n"))
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.True(t, errors.Is(err, ErrInvalidFile))
}

// failingStore breaks the transaction halfway through
type failingStore struct {
	*store.Store
	calls int
}

func (f *failingStore) CreateCandidate(ctx context.Context, ex store.Execer, c models.Candidate) error {
	f.calls++
	if f.calls == 2 {
		return errors.New("disk I/O error")
	}
	return f.Store.CreateCandidate(ctx, ex, c)
}

func TestImporter_RollsBackOnFailure(t *testing.T) {
	st := testutil.NewTestStore(t)
	election := testutil.CreateTestElection(t, st, "e", time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC))

	input := "name,office\nAnn,Mayor\nBen,Mayor\n"
	_, err := NewImporter(&failingStore{Store: st}).Import(context.Background(), election.ID, "admin-1", "x.csv", strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	_, err = st.FindCandidate(context.Background(), election.ID, "Ann", "Mayor", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
