// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/ballotline/models"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db)
	s.SetClock(func() time.Time { return fixedNow })
	return s, mock
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: candidate.slug (2067)")))
	assert.False(t, isUniqueViolation(errors.New("disk full")))
	assert.False(t, isUniqueViolation(nil))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%jane%", likePattern("  Jane "))
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_off"))
}

func TestUpsertUser(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "auth_subject", "email", "display_name", "role", "email_opt_out", "created_at"}).
		AddRow("u1", "sub-1", "jane@example.com", "Jane", "admin", false, fixedNow)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO app_user")).
		WithArgs(sqlmock.AnyArg(), "sub-1", "jane@example.com", "Jane", "admin", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM app_user WHERE auth_subject = $1")).
		WithArgs("sub-1").
		WillReturnRows(rows)

	u, err := s.UpsertUser(context.Background(), "sub-1", " Jane@Example.com ", "Jane", true)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM app_user WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetUserRole_NoRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE app_user SET role = $1 WHERE id = $2")).
		WithArgs("vendor", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.SetUserRole(context.Background(), "ghost", "vendor"), ErrNotFound)
}

func TestListElections_Filters(t *testing.T) {
	s, mock := newMockStore(t)

	cols := []string{"id", "slug", "name", "jurisdiction", "state", "election_date", "registration_deadline", "description", "published", "created_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("e1", "spring-2026", "Spring Municipal", "Springfield", "IL", fixedNow.AddDate(0, 1, 0), nil, "", true, fixedNow)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE published = TRUE AND state = $1 AND election_date >= $2 ORDER BY election_date, name")).
		WithArgs("IL", fixedNow).
		WillReturnRows(rows)

	elections, err := s.ListElections(context.Background(), ElectionFilter{State: "il", UpcomingOnly: true, PublishedOnly: true})
	require.NoError(t, err)
	require.Len(t, elections, 1)
	assert.Equal(t, "spring-2026", elections[0].Slug)
	assert.Nil(t, elections[0].RegistrationDeadline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func candidateRow(id, slug, status string) []driver.Value {
	owner := "owner-1"
	return []driver.Value{id, owner, "e1", slug, "Jane Doe", "Mayor", "", "Independent", "bio", "", "", "jane@example.com", status, true, fixedNow, fixedNow}
}

var candidateCols = []string{"id", "owner_id", "election_id", "slug", "name", "office", "district", "party", "bio", "website", "photo_url", "contact_email", "status", "donations_enabled", "created_at", "updated_at"}

func TestListCandidates_QueryBuilding(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE election_id = $1 AND status = $2 AND LOWER(office) = $3 AND LOWER(name) LIKE $4 ESCAPE '\' ORDER BY office, district, name LIMIT 20`)).
		WithArgs("e1", "verified", "mayor", "%jane%").
		WillReturnRows(sqlmock.NewRows(candidateCols).AddRow(candidateRow("c1", "jane-doe", "verified")...))

	got, err := s.ListCandidates(context.Background(), CandidateFilter{
		ElectionID: "e1", Status: "verified", Office: "Mayor", Query: "Jane", Limit: 20,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].OwnerID)
	assert.Equal(t, "owner-1", *got[0].OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCandidate_Conflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO candidate")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.CreateCandidate(context.Background(), s.DB(), models.Candidate{ID: "c1", Slug: "dup"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCompleteFanout(t *testing.T) {
	s, mock := newMockStore(t)

	notes := []models.Notification{
		{ID: "n1", UserID: "u1", EventID: "ev1", CandidateID: "c1", Message: "Jane posted", CreatedAt: fixedNow},
		{ID: "n2", UserID: "u2", EventID: "ev1", CandidateID: "c1", Message: "Jane posted", CreatedAt: fixedNow},
	}
	emails := []models.Email{{ID: "m1", ToAddr: "u1@example.com", Kind: "candidate_update", Payload: "{}"}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE change_event SET fanout_done_at = $1")).
		WithArgs(fixedNow, "ev1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification")).
		WithArgs("n1", "u1", "ev1", "c1", "Jane posted", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification")).
		WithArgs("n2", "u2", "ev1", "c1", "Jane posted", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_queue")).
		WithArgs("m1", "u1@example.com", "candidate_update", "{}", fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.CompleteFanout(context.Background(), "ev1", notes, emails))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteFanout_AlreadyDone(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE change_event SET fanout_done_at = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.CompleteFanout(context.Background(), "ev1", nil, nil)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDonationPaid_NotPending(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE donation SET status = 'paid'")).
		WithArgs(fixedNow, "d1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.MarkDonationPaid(context.Background(), "d1", fixedNow, []models.Email{{ID: "m1"}})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDonationFailed_NotPending(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE donation SET status = 'failed'")).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.MarkDonationFailed(context.Background(), "d1"), ErrConflict)
}

func TestDonorTotal(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount_cents), 0)")).
		WithArgs("c1", "donor@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(250000)))

	total, err := s.DonorTotal(context.Background(), "c1", "Donor@Example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(250000), total)
}

func TestCreateDonationWithinLimit(t *testing.T) {
	d := models.Donation{ID: "d1", CandidateID: "c1", DonorEmail: "Donor@Example.com", AmountCents: 100000, Status: "pending", CreatedAt: fixedNow}

	tests := []struct {
		name    string
		total   int64
		wantErr error
	}{
		{"fits under limit", 100000, nil},
		{"exactly at limit", 230000, nil},
		{"over limit", 230001, ErrLimitExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("UPDATE candidate SET updated_at = updated_at WHERE id = $1")).
				WithArgs("c1").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount_cents), 0)")).
				WithArgs("c1", "donor@example.com").
				WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(tt.total))
			if tt.wantErr == nil {
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO donation")).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			err := s.CreateDonationWithinLimit(context.Background(), d, 330000)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateDonationWithinLimit_NoCandidate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE candidate SET updated_at = updated_at")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.CreateDonationWithinLimit(context.Background(), models.Donation{CandidateID: "gone", AmountCents: 100}, 330000)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCandidateStatus(t *testing.T) {
	const update = "UPDATE candidate SET status = $1, updated_at = $2 WHERE id = $3 AND status <> $1"
	const exists = "UPDATE candidate SET status = status WHERE id = $1"

	t.Run("changed", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta(update)).
			WithArgs("verified", fixedNow, "c1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := s.SetCandidateStatus(context.Background(), s.DB(), "c1", "verified")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already in status", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta(update)).
			WithArgs("verified", fixedNow, "c1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(exists)).
			WithArgs("c1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := s.SetCandidateStatus(context.Background(), s.DB(), "c1", "verified")
		require.NoError(t, err)
		assert.False(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta(update)).
			WithArgs("verified", fixedNow, "nope").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(exists)).
			WithArgs("nope").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := s.SetCandidateStatus(context.Background(), s.DB(), "nope", "verified")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSetVendorStatus_AlreadyApproved(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE vendor SET status = $1 WHERE id = $2 AND status <> $1")).
		WithArgs("approved", "v1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vendor SET status = status WHERE id = $1")).
		WithArgs("v1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := s.SetVendorStatus(context.Background(), s.DB(), "v1", "approved")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var emailCols = []string{"id", "to_addr", "kind", "payload", "status", "attempts", "last_error", "next_attempt_at", "created_at", "sent_at"}

func TestClaimEmails(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows(emailCols).
		AddRow("m1", "a@example.com", "donation_receipt", "{}", "sending", 1, nil, fixedNow, fixedNow, nil).
		AddRow("m2", "b@example.com", "candidate_update", "{}", "sending", 3, "timeout", fixedNow, fixedNow, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SET status = 'sending', attempts = attempts + 1")).
		WithArgs(fixedNow, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m1").AddRow("m2"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM email_queue WHERE id IN ($1, $2)")).
		WithArgs("m1", "m2").
		WillReturnRows(rows)

	emails, err := s.ClaimEmails(context.Background(), fixedNow, 10)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, 3, emails[1].Attempts)
	require.NotNil(t, emails[1].LastError)
	assert.Equal(t, "timeout", *emails[1].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimEmails_NothingDue(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE email_queue")).
		WithArgs(fixedNow, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	emails, err := s.ClaimEmails(context.Background(), fixedNow, 10)
	require.NoError(t, err)
	assert.Empty(t, emails)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryEmail_OnlyFailed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $2 AND status = 'failed'")).
		WithArgs(fixedNow, "m1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.RetryEmail(context.Background(), "m1"), ErrNotFound)
}

func TestStats(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT role, COUNT(*) FROM app_user")).
		WillReturnRows(sqlmock.NewRows([]string{"role", "count"}).AddRow("voter", 10).AddRow("admin", 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM election")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM candidate")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("verified", 4))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM vendor")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("pending", 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM donation WHERE status = 'paid'")).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(12500)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM email_queue")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("sent", 7))
	mock.ExpectQuery(regexp.QuoteMeta("FROM change_event WHERE fanout_done_at IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, st.Users["voter"])
	assert.Equal(t, 2, st.Elections)
	assert.Equal(t, 4, st.CandidatesByStatus["verified"])
	assert.Equal(t, int64(12500), st.DonationsPaidCents)
	assert.Equal(t, 7, st.EmailsByStatus["sent"])
	assert.Equal(t, 3, st.PendingEvents)
	assert.NoError(t, mock.ExpectationsWereMet())
}
