package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo is the Postgres Store. Orders are locked with SELECT ... FOR UPDATE,
// so concurrent deliveries for one order serialize on its row only.
type Repo struct{ DB DB }

const orderColumns = `id, amount_minor, currency, status, COALESCE(external_ref, ''), last_event_at, version, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.AmountMinor, &o.Currency, &status, &o.ExternalRef,
		&o.LastEventAt, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

func (r *Repo) Create(ctx context.Context, o Order) (Order, error) {
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO orders(id, amount_minor, currency, status, version)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+orderColumns,
		o.ID, o.AmountMinor, o.Currency, string(o.Status), o.Version)
	created, err := scanOrder(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Order{}, fmt.Errorf("%w: id %s already exists", ErrConflict, o.ID)
		}
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

// AttachExternalRef sets the session handle exactly once, on a pending order.
func (r *Repo) AttachExternalRef(ctx context.Context, id, ref string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET external_ref=$2, version=version+1, updated_at=now()
		WHERE id=$1 AND status='pending' AND external_ref IS NULL
		RETURNING `+orderColumns, id, ref))
	if !errors.Is(err, ErrNotFound) {
		return o, err
	}
	// no row updated: either missing or already has a session
	if _, gerr := r.Get(ctx, id); gerr != nil {
		return Order{}, gerr
	}
	return Order{}, fmt.Errorf("%w: session already created for order %s", ErrConflict, id)
}

func (r *Repo) ApplyEvent(ctx context.Context, ev PaymentEvent, decide DecideFunc) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, ev.OrderID))
	if err != nil {
		return Order{}, err
	}

	next, outcome, derr := decide(cur, ev)
	if derr != nil && outcome == "" {
		return cur, derr
	}

	// ledger insert-if-absent; a conflict means the event was already handled
	ct, err := tx.Exec(ctx, `
		INSERT INTO payment_events(event_id, order_id, event_type, occurred_at, payload_digest, outcome)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.ID, ev.OrderID, string(ev.Type), ev.OccurredAt, ev.PayloadDigest, string(outcome))
	if err != nil {
		return cur, fmt.Errorf("insert payment event: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return cur, ErrDuplicateEvent
	}

	if derr != nil {
		if err := tx.Commit(ctx); err != nil {
			return cur, err
		}
		return cur, derr
	}

	next.UpdatedAt = time.Now().UTC()
	ct, err = tx.Exec(ctx, `
		UPDATE orders SET status=$2, last_event_at=$3, version=$4, updated_at=$5
		WHERE id=$1 AND version=$6`,
		cur.ID, string(next.Status), next.LastEventAt, next.Version, next.UpdatedAt, cur.Version)
	if err != nil {
		return cur, fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return cur, ErrVersionConflict
	}
	if err := tx.Commit(ctx); err != nil {
		return cur, err
	}
	return next, nil
}

func (r *Repo) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM payment_events WHERE event_id=$1)`, eventID).Scan(&exists)
	return exists, err
}
