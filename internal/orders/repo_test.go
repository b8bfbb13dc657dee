package orders

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCols = []string{"id", "amount_minor", "currency", "status", "external_ref", "last_event_at", "version", "created_at", "updated_at"}

func setupMockRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &Repo{DB: mock}, mock
}

func orderRow(o Order) *pgxmock.Rows {
	return pgxmock.NewRows(orderCols).AddRow(o.ID, o.AmountMinor, o.Currency, string(o.Status),
		o.ExternalRef, o.LastEventAt, o.Version, o.CreatedAt, o.UpdatedAt)
}

func fixture(status Status, version int64, last time.Time) Order {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return Order{ID: "o1", AmountMinor: 5000, Currency: "usd", Status: status, ExternalRef: "cs_1",
		LastEventAt: last, Version: version, CreatedAt: now, UpdatedAt: now}
}

func TestRepoGet(t *testing.T) {
	repo, mock := setupMockRepo(t)
	want := fixture(StatusAuthorized, 2, ts(100))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id=$1`)).
		WithArgs("o1").
		WillReturnRows(orderRow(want))

	got, err := repo.Get(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoGetNotFound(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id=$1`)).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoCreateDuplicateID(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders`)).
		WithArgs("o1", int64(5000), "usd", "pending", int64(0)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), Order{ID: "o1", AmountMinor: 5000, Currency: "usd", Status: StatusPending})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoAttachExternalRefConflict(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE orders SET external_ref=$2`)).
		WithArgs("o1", "cs_2").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id=$1`)).
		WithArgs("o1").
		WillReturnRows(orderRow(fixture(StatusPending, 1, time.Unix(0, 0).UTC())))

	_, err := repo.AttachExternalRef(context.Background(), "o1", "cs_2")
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoAttachExternalRefMissingOrder(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE orders SET external_ref=$2`)).
		WithArgs("o9", "cs_2").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id=$1`)).
		WithArgs("o9").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.AttachExternalRef(context.Background(), "o9", "cs_2")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoApplyEventCommitsTransition(t *testing.T) {
	repo, mock := setupMockRepo(t)
	cur := fixture(StatusPending, 1, time.Unix(0, 0).UTC())
	ev := PaymentEvent{ID: "e1", Type: EventAuthorized, OrderID: "o1", OccurredAt: ts(100), PayloadDigest: "abc"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders WHERE id=$1 FOR UPDATE`)).
		WithArgs("o1").
		WillReturnRows(orderRow(cur))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO payment_events`)).
		WithArgs("e1", "o1", "authorized", ts(100), "abc", "applied").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders SET status=$2`)).
		WithArgs("o1", "authorized", ts(100), int64(2), pgxmock.AnyArg(), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	o, err := repo.ApplyEvent(context.Background(), ev, Decide)
	require.NoError(t, err)
	assert.Equal(t, StatusAuthorized, o.Status)
	assert.Equal(t, int64(2), o.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoApplyEventDuplicateRollsBack(t *testing.T) {
	repo, mock := setupMockRepo(t)
	cur := fixture(StatusAuthorized, 2, ts(100))
	ev := PaymentEvent{ID: "e1", Type: EventAuthorized, OrderID: "o1", OccurredAt: ts(100)}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("o1").
		WillReturnRows(orderRow(cur))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO payment_events`)).
		WithArgs("e1", "o1", "authorized", ts(100), "", "rejected_illegal").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	_, err := repo.ApplyEvent(context.Background(), ev, Decide)
	assert.ErrorIs(t, err, ErrDuplicateEvent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoApplyEventStaleRecordsRejection(t *testing.T) {
	repo, mock := setupMockRepo(t)
	cur := fixture(StatusAuthorized, 2, ts(100))
	ev := PaymentEvent{ID: "e2", Type: EventCaptured, OrderID: "o1", OccurredAt: ts(50)}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("o1").
		WillReturnRows(orderRow(cur))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO payment_events`)).
		WithArgs("e2", "o1", "captured", ts(50), "", "rejected_stale").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	o, err := repo.ApplyEvent(context.Background(), ev, Decide)
	assert.ErrorIs(t, err, ErrStaleEvent)
	assert.Equal(t, cur, o)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoApplyEventUnknownOrder(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("o9").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.ApplyEvent(context.Background(),
		PaymentEvent{ID: "e1", Type: EventAuthorized, OrderID: "o9", OccurredAt: ts(1)}, Decide)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoApplyEventVersionRace(t *testing.T) {
	repo, mock := setupMockRepo(t)
	cur := fixture(StatusPending, 1, time.Unix(0, 0).UTC())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("o1").
		WillReturnRows(orderRow(cur))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO payment_events`)).
		WithArgs("e1", "o1", "authorized", ts(100), "", "applied").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders SET status=$2`)).
		WithArgs("o1", "authorized", ts(100), int64(2), pgxmock.AnyArg(), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := repo.ApplyEvent(context.Background(),
		PaymentEvent{ID: "e1", Type: EventAuthorized, OrderID: "o1", OccurredAt: ts(100)}, Decide)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoEventProcessed(t *testing.T) {
	repo, mock := setupMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("e1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	seen, err := repo.EventProcessed(context.Background(), "e1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoCreateRejectsInvalidOrder(t *testing.T) {
	repo, mock := setupMockRepo(t)

	_, err := repo.Create(context.Background(), Order{ID: "o1", AmountMinor: -5, Currency: "usd", Status: StatusPending})
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}
